package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/terrasql/terrasql/internal/catalog"
	"github.com/terrasql/terrasql/internal/config"
	"github.com/terrasql/terrasql/internal/observability"
	"github.com/terrasql/terrasql/internal/pending"
	"github.com/terrasql/terrasql/internal/query"
	"github.com/terrasql/terrasql/internal/sqlgen"
	"github.com/terrasql/terrasql/internal/trainer"
)

type ReadinessCheck func(ctx context.Context) error

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Catalog           catalog.GeometryResolver
	Executor          query.Executor
	Trainer           trainer.Service
	Sessions          *pending.Store
	Generator         *sqlgen.Generator
	DefaultRowLimit   int
	MaxRowLimit       int
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/translate", func(w http.ResponseWriter, r *http.Request) {
		handleTranslate(deps, w, r)
	})
	protected.HandleFunc("POST /v1/generate", func(w http.ResponseWriter, r *http.Request) {
		handleGenerate(deps, w, r)
	})
	protected.HandleFunc("POST /v1/execute", func(w http.ResponseWriter, r *http.Request) {
		handleExecute(deps, w, r)
	})
	protected.HandleFunc("GET /v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleGetSession(deps, w, r)
	})
	protected.HandleFunc("POST /v1/sessions/{id}/confirm", func(w http.ResponseWriter, r *http.Request) {
		handleConfirmSession(deps, w, r)
	})
	protected.HandleFunc("POST /v1/sessions/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		handleCancelSession(deps, w, r)
	})
	protected.HandleFunc("POST /v1/train/ddl/preview", func(w http.ResponseWriter, r *http.Request) {
		handleTrainDDLPreview(deps, w, r)
	})
	protected.HandleFunc("POST /v1/train/documentation/preview", func(w http.ResponseWriter, r *http.Request) {
		handleTrainDocumentationPreview(deps, w, r)
	})
	protected.HandleFunc("POST /v1/train/example/preview", func(w http.ResponseWriter, r *http.Request) {
		handleTrainExamplePreview(deps, w, r)
	})
	protected.HandleFunc("GET /v1/training-data", func(w http.ResponseWriter, r *http.Request) {
		handleListTrainingData(deps, w, r)
	})
	protected.HandleFunc("DELETE /v1/training-data/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleRemoveTrainingData(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "auth middleware is required by configuration")
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("POST /v1/translate", protectedHandler)
	mux.Handle("POST /v1/generate", protectedHandler)
	mux.Handle("POST /v1/execute", protectedHandler)
	mux.Handle("GET /v1/sessions/{id}", protectedHandler)
	mux.Handle("POST /v1/sessions/{id}/confirm", protectedHandler)
	mux.Handle("POST /v1/sessions/{id}/cancel", protectedHandler)
	mux.Handle("POST /v1/train/ddl/preview", protectedHandler)
	mux.Handle("POST /v1/train/documentation/preview", protectedHandler)
	mux.Handle("POST /v1/train/example/preview", protectedHandler)
	mux.Handle("GET /v1/training-data", protectedHandler)
	mux.Handle("DELETE /v1/training-data/{id}", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckDatabaseDSN(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.Database.DSN == "" {
			return errors.New("database dsn is not configured")
		}
		return nil
	}
}

func CheckTrainerConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if !cfg.Trainer.Enabled {
			return nil
		}
		if cfg.Trainer.BaseURL == "" {
			return errors.New("trainer base url is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError keeps the tool-facing contract: callers branch on "success" and
// show "error" to a human, never parse it.
func writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success":  false,
		"error":    message,
		"trace_id": observability.TraceIDFromContext(ctx),
	})
}
