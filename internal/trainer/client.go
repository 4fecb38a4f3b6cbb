package trainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to a vanna-style REST service. Failures surface the service's
// own error text verbatim; retrying is the caller's decision.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("trainer base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) GenerateSQL(ctx context.Context, question string) (Generated, error) {
	var response struct {
		Success      bool   `json:"success"`
		Error        string `json:"error"`
		GeneratedSQL string `json:"generated_sql"`
	}
	err := c.post(ctx, "/api/vanna/generate_sql", map[string]any{"question": question}, &response)
	if err != nil {
		return Generated{}, err
	}
	if !response.Success {
		return Generated{}, fmt.Errorf("generate sql: %s", response.Error)
	}

	sql := stripMarkdownSQL(response.GeneratedSQL)
	if strings.TrimSpace(sql) == "" {
		return Generated{}, fmt.Errorf("trainer returned empty SQL")
	}
	return Generated{Question: question, SQL: sql}, nil
}

func (c *Client) TrainDDL(ctx context.Context, ddl string) error {
	return c.train(ctx, map[string]any{"ddl": ddl})
}

func (c *Client) TrainDocumentation(ctx context.Context, documentation string) error {
	return c.train(ctx, map[string]any{"documentation": documentation})
}

func (c *Client) TrainExample(ctx context.Context, question, sql string) error {
	return c.train(ctx, map[string]any{"question": question, "sql": sql})
}

func (c *Client) train(ctx context.Context, payload map[string]any) error {
	var response struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := c.post(ctx, "/api/vanna/train", payload, &response); err != nil {
		return err
	}
	if !response.Success {
		return fmt.Errorf("train: %s", response.Error)
	}
	return nil
}

func (c *Client) ListTrainingData(ctx context.Context) ([]TrainingItem, error) {
	var response struct {
		Success      bool           `json:"success"`
		Error        string         `json:"error"`
		TrainingData []TrainingItem `json:"training_data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/vanna/training_data", nil, &response); err != nil {
		return nil, err
	}
	if !response.Success {
		return nil, fmt.Errorf("list training data: %s", response.Error)
	}
	return response.TrainingData, nil
}

func (c *Client) RemoveTrainingData(ctx context.Context, id string) error {
	var response struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	path := "/api/vanna/training_data/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodDelete, path, nil, &response); err != nil {
		return err
	}
	if !response.Success {
		return fmt.Errorf("remove training data: %s", response.Error)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal trainer request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build trainer request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request trainer service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read trainer response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("trainer service failed status=%d body=%s", resp.StatusCode, string(rawBody))
	}
	if err := json.Unmarshal(rawBody, out); err != nil {
		// A 4xx from a proxy or gateway often carries a plain-text or HTML
		// body; report what the service actually said, not the decode failure.
		if resp.StatusCode >= 300 {
			return fmt.Errorf("trainer service failed status=%d body=%s", resp.StatusCode, string(rawBody))
		}
		return fmt.Errorf("decode trainer response: %w", err)
	}
	return nil
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
