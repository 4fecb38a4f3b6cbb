package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/terrasql/terrasql/internal/auth"
	"github.com/terrasql/terrasql/internal/catalog"
	"github.com/terrasql/terrasql/internal/intent"
	"github.com/terrasql/terrasql/internal/observability"
	"github.com/terrasql/terrasql/internal/pending"
	"github.com/terrasql/terrasql/internal/sqlgen"
)

type translateRequest struct {
	Text   string `json:"text"`
	Table  string `json:"table"`
	Schema string `json:"schema"`
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Catalog == nil || deps.Generator == nil || deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "translate dependencies are not configured")
		return
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, err.Error())
		return
	}

	var request translateRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "invalid translate request body")
		return
	}
	if strings.TrimSpace(request.Text) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "text is required")
		return
	}

	it, ok := intent.Classify(request.Text)
	if !ok {
		observability.ObserveClassification("")
		// A miss is guidance for the caller, not a transport failure.
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   "could not recognize a spatial query in the text; supported queries are nearby, buffer, intersection, within, area, distance and count, e.g. \"查询表 poi 附近500米的要素\" or \"count features in table parcels\"",
		})
		return
	}
	observability.ObserveClassification(string(it))

	slots := intent.ExtractSlots(request.Text)
	if table := strings.TrimSpace(request.Table); table != "" {
		slots.Table = table
	}
	if schema := strings.TrimSpace(request.Schema); schema != "" {
		slots.Schema = schema
	}
	if slots.Schema == "" {
		slots.Schema = "public"
	}
	if slots.Table == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   "could not determine the target table; name it in the text (表: name / table name) or pass the table field",
		})
		return
	}

	primary, err := deps.Catalog.ResolveGeometry(r.Context(), slots.Schema, slots.Table)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownTable) {
			writeError(r.Context(), w, http.StatusNotFound, err.Error())
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, err.Error())
		return
	}

	var secondary *catalog.GeometryDescriptor
	if it == intent.IntentIntersection && slots.SecondTable != "" {
		descriptor, err := deps.Catalog.ResolveGeometry(r.Context(), slots.Schema, slots.SecondTable)
		if err != nil {
			if errors.Is(err, catalog.ErrUnknownTable) {
				writeError(r.Context(), w, http.StatusNotFound, err.Error())
				return
			}
			writeError(r.Context(), w, http.StatusInternalServerError, err.Error())
			return
		}
		secondary = &descriptor
	}

	sqlText, err := deps.Generator.Generate(it, slots, primary, secondary)
	if err != nil {
		var missing *sqlgen.MissingSlotError
		var badIdentifier *sqlgen.BadIdentifierError
		if errors.As(err, &missing) || errors.As(err, &badIdentifier) {
			writeError(r.Context(), w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, err.Error())
		return
	}

	action := deps.Sessions.Stage(pending.KindSQLExecution, pending.Payload{
		SQL:      sqlText,
		RowLimit: deps.clampRowLimit(0),
		Schema:   slots.Schema,
		Question: request.Text,
	})
	observability.ObserveSessionStaged(string(action.Kind))

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"intent":     string(it),
		"sql":        sqlText,
		"table":      slots.Table,
		"schema":     slots.Schema,
		"session_id": action.SessionID,
		"message":    confirmHint(action.SessionID),
	})
}
