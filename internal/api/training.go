package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/terrasql/terrasql/internal/auth"
	"github.com/terrasql/terrasql/internal/catalog"
	"github.com/terrasql/terrasql/internal/observability"
	"github.com/terrasql/terrasql/internal/pending"
)

type trainDDLRequest struct {
	Schema string   `json:"schema"`
	Tables []string `json:"tables"`
}

// handleTrainDDLPreview renders the DDL the trainer would learn from and
// stages it; nothing reaches the trainer until the session is confirmed.
func handleTrainDDLPreview(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Catalog == nil || deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "training dependencies are not configured")
		return
	}
	if err := requireRole(r, auth.RoleTrainer); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, err.Error())
		return
	}

	var request trainDDLRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "invalid training request body")
		return
	}
	schema := strings.TrimSpace(request.Schema)
	if schema == "" {
		schema = "public"
	}

	tables := request.Tables
	if len(tables) == 0 {
		geometryTables, err := deps.Catalog.ListGeometryTables(r.Context(), schema)
		if err != nil {
			writeError(r.Context(), w, http.StatusInternalServerError, err.Error())
			return
		}
		if len(geometryTables) == 0 {
			writeJSON(w, http.StatusOK, map[string]any{
				"success": false,
				"error":   fmt.Sprintf("schema %q has no tables with a registered geometry column", schema),
			})
			return
		}
		for _, geometryTable := range geometryTables {
			tables = append(tables, geometryTable.Table)
		}
	}

	statements := make([]string, 0, len(tables))
	for _, table := range tables {
		ddl, err := deps.Catalog.BuildTableDDL(r.Context(), schema, table)
		if err != nil {
			if errors.Is(err, catalog.ErrUnknownTable) {
				writeError(r.Context(), w, http.StatusNotFound, err.Error())
				return
			}
			writeError(r.Context(), w, http.StatusInternalServerError, err.Error())
			return
		}
		statements = append(statements, ddl)
	}

	action := deps.Sessions.Stage(pending.KindDDLTraining, pending.Payload{
		Schema:        schema,
		DDLStatements: statements,
	})
	observability.ObserveSessionStaged(string(action.Kind))

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"schema":         schema,
		"ddl_statements": statements,
		"session_id":     action.SessionID,
		"message":        confirmHint(action.SessionID),
	})
}

type trainDocumentationRequest struct {
	Documentation string `json:"documentation"`
}

func handleTrainDocumentationPreview(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "training dependencies are not configured")
		return
	}
	if err := requireRole(r, auth.RoleTrainer); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, err.Error())
		return
	}

	var request trainDocumentationRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "invalid training request body")
		return
	}
	if strings.TrimSpace(request.Documentation) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "documentation is required")
		return
	}

	action := deps.Sessions.Stage(pending.KindDocumentationTraining, pending.Payload{
		Documentation: request.Documentation,
	})
	observability.ObserveSessionStaged(string(action.Kind))

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"documentation": request.Documentation,
		"session_id":    action.SessionID,
		"message":       confirmHint(action.SessionID),
	})
}

type trainExampleRequest struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
}

func handleTrainExamplePreview(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "training dependencies are not configured")
		return
	}
	if err := requireRole(r, auth.RoleTrainer); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, err.Error())
		return
	}

	var request trainExampleRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "invalid training request body")
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "question is required")
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "sql is required")
		return
	}

	action := deps.Sessions.Stage(pending.KindSQLExampleTraining, pending.Payload{
		Question: request.Question,
		SQL:      request.SQL,
	})
	observability.ObserveSessionStaged(string(action.Kind))

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"question":   request.Question,
		"sql":        request.SQL,
		"session_id": action.SessionID,
		"message":    confirmHint(action.SessionID),
	})
}

func handleListTrainingData(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Trainer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "trainer service is not configured")
		return
	}
	if err := requireRole(r, auth.RoleTrainer); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, err.Error())
		return
	}

	items, err := deps.Trainer.ListTrainingData(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"items":   items,
		"count":   len(items),
	})
}

func handleRemoveTrainingData(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Trainer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "trainer service is not configured")
		return
	}
	if err := requireRole(r, auth.RoleTrainer); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, err.Error())
		return
	}

	id := r.PathValue("id")
	if err := deps.Trainer.RemoveTrainingData(r.Context(), id); err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("training data %s removed", id),
	})
}
