package api

import (
	"net/http"
	"strings"

	"github.com/terrasql/terrasql/internal/auth"
	"github.com/terrasql/terrasql/internal/observability"
	"github.com/terrasql/terrasql/internal/pending"
)

type generateRequest struct {
	Question string `json:"question"`
}

func handleGenerate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Trainer == nil || deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "trainer service is not configured")
		return
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, err.Error())
		return
	}

	var request generateRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "invalid generate request body")
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "question is required")
		return
	}

	generated, err := deps.Trainer.GenerateSQL(r.Context(), request.Question)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, err.Error())
		return
	}

	action := deps.Sessions.Stage(pending.KindSQLExecution, pending.Payload{
		SQL:      generated.SQL,
		RowLimit: deps.clampRowLimit(0),
		Question: request.Question,
	})
	observability.ObserveSessionStaged(string(action.Kind))

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"question":   request.Question,
		"sql":        generated.SQL,
		"session_id": action.SessionID,
		"message":    confirmHint(action.SessionID),
	})
}
