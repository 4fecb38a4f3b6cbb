package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/terrasql/terrasql/internal/auth"
	"github.com/terrasql/terrasql/internal/gate"
	"github.com/terrasql/terrasql/internal/observability"
	"github.com/terrasql/terrasql/internal/pending"
	"github.com/terrasql/terrasql/internal/query"
)

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "session store is not configured")
		return
	}
	action, err := deps.Sessions.Get(r.PathValue("id"))
	if err != nil {
		writeSessionError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": sessionView(action),
	})
}

func handleCancelSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "session store is not configured")
		return
	}
	action, err := deps.Sessions.Cancel(r.PathValue("id"))
	if err != nil {
		writeSessionError(r, w, err)
		return
	}
	observability.ObserveSessionFinalized(string(action.Kind), "cancelled")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": sessionView(action),
		"message": "session cancelled; nothing was executed",
	})
}

func handleConfirmSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "session store is not configured")
		return
	}

	sessionID := r.PathValue("id")
	staged, err := deps.Sessions.Get(sessionID)
	if err != nil {
		writeSessionError(r, w, err)
		return
	}
	if err := requireRole(r, roleForKind(staged.Kind)); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, err.Error())
		return
	}

	var result query.Result
	action, err := deps.Sessions.Confirm(r.Context(), sessionID, func(ctx context.Context, action pending.Action) error {
		var execErr error
		result, execErr = runConfirmedAction(ctx, deps, r, action)
		return execErr
	})
	if err != nil {
		if errors.Is(err, pending.ErrUnknownSession) || errors.Is(err, pending.ErrAlreadyFinalized) {
			writeSessionError(r, w, err)
			return
		}
		// The action failed but the session stays pending, so the caller may
		// confirm again once the underlying problem is fixed.
		writeError(r.Context(), w, http.StatusBadRequest, err.Error())
		return
	}
	observability.ObserveSessionFinalized(string(action.Kind), "confirmed")

	if action.Kind == pending.KindSQLExecution {
		writeExecutionResult(w, result)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": sessionView(action),
		"message": fmt.Sprintf("%s applied", action.Kind),
	})
}

func runConfirmedAction(ctx context.Context, deps Dependencies, r *http.Request, action pending.Action) (query.Result, error) {
	switch action.Kind {
	case pending.KindSQLExecution:
		if deps.Executor == nil {
			return query.Result{}, errors.New("execution dependencies are not configured")
		}
		if err := gate.Admit(action.Payload.SQL, true); err != nil {
			observability.ObserveGateRejection(gate.RejectionReason(err))
			return query.Result{}, err
		}
		return executeAdmitted(deps, r.WithContext(ctx), action.Payload.SQL, action.Payload.RowLimit)
	case pending.KindDDLTraining:
		if deps.Trainer == nil {
			return query.Result{}, errors.New("trainer service is not configured")
		}
		for _, ddl := range action.Payload.DDLStatements {
			if err := deps.Trainer.TrainDDL(ctx, ddl); err != nil {
				return query.Result{}, err
			}
		}
		return query.Result{}, nil
	case pending.KindDocumentationTraining:
		if deps.Trainer == nil {
			return query.Result{}, errors.New("trainer service is not configured")
		}
		return query.Result{}, deps.Trainer.TrainDocumentation(ctx, action.Payload.Documentation)
	case pending.KindSQLExampleTraining:
		if deps.Trainer == nil {
			return query.Result{}, errors.New("trainer service is not configured")
		}
		return query.Result{}, deps.Trainer.TrainExample(ctx, action.Payload.Question, action.Payload.SQL)
	default:
		return query.Result{}, fmt.Errorf("unknown session kind %q", action.Kind)
	}
}

func roleForKind(kind pending.Kind) string {
	if kind == pending.KindSQLExecution {
		return auth.RoleQueryReader
	}
	return auth.RoleTrainer
}

func writeSessionError(r *http.Request, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pending.ErrUnknownSession):
		writeError(r.Context(), w, http.StatusNotFound, err.Error())
	case errors.Is(err, pending.ErrAlreadyFinalized):
		writeError(r.Context(), w, http.StatusConflict, err.Error())
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, err.Error())
	}
}

func sessionView(action pending.Action) map[string]any {
	view := map[string]any{
		"id":         action.SessionID,
		"kind":       string(action.Kind),
		"status":     string(action.Status),
		"created_at": action.CreatedAt,
	}
	if action.Payload.SQL != "" {
		view["sql"] = action.Payload.SQL
	}
	if action.Payload.Question != "" {
		view["question"] = action.Payload.Question
	}
	if len(action.Payload.DDLStatements) > 0 {
		view["ddl_statements"] = action.Payload.DDLStatements
	}
	if action.Payload.Documentation != "" {
		view["documentation"] = action.Payload.Documentation
	}
	return view
}
