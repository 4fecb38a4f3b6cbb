package terrasqlctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("terrasqlctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "TerraSQL API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	table := fs.String("table", "", "Target table for translate")
	schema := fs.String("schema", "", "Target schema for translate and train-ddl")
	confirmed := fs.Bool("confirmed", false, "Execute without staging a confirmation session")
	rowLimit := fs.Int("row-limit", 0, "Row limit for execute")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 10*time.Second), "HTTP timeout (e.g. 10s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	argument := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))

	method := ""
	path := ""
	var body any
	switch command {
	case "health":
		method, path = http.MethodGet, "/v1/health"
	case "ready":
		method, path = http.MethodGet, "/v1/ready"
	case "translate":
		if argument == "" {
			_, _ = fmt.Fprintln(stderr, "translate needs the question text")
			return 2
		}
		method, path = http.MethodPost, "/v1/translate"
		body = map[string]any{"text": argument, "table": *table, "schema": *schema}
	case "generate":
		if argument == "" {
			_, _ = fmt.Fprintln(stderr, "generate needs the question text")
			return 2
		}
		method, path = http.MethodPost, "/v1/generate"
		body = map[string]any{"question": argument}
	case "execute":
		if argument == "" {
			_, _ = fmt.Fprintln(stderr, "execute needs the SQL text")
			return 2
		}
		method, path = http.MethodPost, "/v1/execute"
		body = map[string]any{"sql": argument, "confirmed": *confirmed, "row_limit": *rowLimit}
	case "confirm":
		if argument == "" {
			_, _ = fmt.Fprintln(stderr, "confirm needs a session id")
			return 2
		}
		method, path = http.MethodPost, "/v1/sessions/"+url.PathEscape(argument)+"/confirm"
	case "cancel":
		if argument == "" {
			_, _ = fmt.Fprintln(stderr, "cancel needs a session id")
			return 2
		}
		method, path = http.MethodPost, "/v1/sessions/"+url.PathEscape(argument)+"/cancel"
	case "session":
		if argument == "" {
			_, _ = fmt.Fprintln(stderr, "session needs a session id")
			return 2
		}
		method, path = http.MethodGet, "/v1/sessions/"+url.PathEscape(argument)
	case "train-ddl":
		method, path = http.MethodPost, "/v1/train/ddl/preview"
		body = map[string]any{"schema": *schema}
	case "training-data":
		method, path = http.MethodGet, "/v1/training-data"
	case "forget":
		if argument == "" {
			_, _ = fmt.Fprintln(stderr, "forget needs a training data id")
			return 2
		}
		method, path = http.MethodDelete, "/v1/training-data/"+url.PathEscape(argument)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, method, endpoint, *apiKey, body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, endpoint, apiKey string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: terrasqlctl [flags] <command> [argument]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                 GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                  GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  translate <text>       POST /v1/translate")
	_, _ = fmt.Fprintln(w, "  generate <question>    POST /v1/generate")
	_, _ = fmt.Fprintln(w, "  execute <sql>          POST /v1/execute")
	_, _ = fmt.Fprintln(w, "  confirm <session-id>   POST /v1/sessions/{id}/confirm")
	_, _ = fmt.Fprintln(w, "  cancel <session-id>    POST /v1/sessions/{id}/cancel")
	_, _ = fmt.Fprintln(w, "  session <session-id>   GET /v1/sessions/{id}")
	_, _ = fmt.Fprintln(w, "  train-ddl              POST /v1/train/ddl/preview")
	_, _ = fmt.Fprintln(w, "  training-data          GET /v1/training-data")
	_, _ = fmt.Fprintln(w, "  forget <id>            DELETE /v1/training-data/{id}")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
