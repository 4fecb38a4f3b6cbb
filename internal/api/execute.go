package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/terrasql/terrasql/internal/auth"
	"github.com/terrasql/terrasql/internal/gate"
	"github.com/terrasql/terrasql/internal/observability"
	"github.com/terrasql/terrasql/internal/pending"
	"github.com/terrasql/terrasql/internal/query"
)

type executeRequest struct {
	SQL       string `json:"sql"`
	Confirmed bool   `json:"confirmed"`
	RowLimit  int    `json:"row_limit"`
}

func handleExecute(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Executor == nil || deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "execution dependencies are not configured")
		return
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, err.Error())
		return
	}

	var request executeRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "invalid execute request body")
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "sql is required")
		return
	}

	rowLimit := deps.clampRowLimit(request.RowLimit)
	if err := gate.Admit(request.SQL, request.Confirmed); err != nil {
		observability.ObserveGateRejection(gate.RejectionReason(err))
		if errors.Is(err, gate.ErrConfirmationRequired) {
			// Stage the statement so the caller can complete it through the
			// confirmation protocol instead of resending with confirmed=true.
			action := deps.Sessions.Stage(pending.KindSQLExecution, pending.Payload{
				SQL:      request.SQL,
				RowLimit: rowLimit,
			})
			observability.ObserveSessionStaged(string(action.Kind))
			writeJSON(w, http.StatusOK, map[string]any{
				"success":    false,
				"error":      err.Error(),
				"session_id": action.SessionID,
				"message":    confirmHint(action.SessionID),
			})
			return
		}
		writeError(r.Context(), w, http.StatusForbidden, err.Error())
		return
	}

	result, err := executeAdmitted(deps, r, request.SQL, rowLimit)
	if err != nil {
		// Database errors go back verbatim so the caller sees PostGIS's own
		// diagnostics.
		writeError(r.Context(), w, http.StatusBadRequest, err.Error())
		return
	}
	writeExecutionResult(w, result)
}

func executeAdmitted(deps Dependencies, r *http.Request, sqlText string, rowLimit int) (query.Result, error) {
	bounded := gate.EnsureLimit(sqlText, rowLimit)
	result, err := deps.Executor.Execute(r.Context(), query.Request{SQL: bounded})
	if err != nil {
		observability.ObserveSQLExecution("error", 0)
		return query.Result{}, err
	}
	observability.ObserveSQLExecution("ok", result.Duration)
	return result, nil
}

func writeExecutionResult(w http.ResponseWriter, result query.Result) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"columns":     result.Columns,
		"rows":        result.Rows,
		"row_count":   result.RowCount,
		"duration_ms": result.Duration.Milliseconds(),
	})
}
