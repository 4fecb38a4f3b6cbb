package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/terrasql/terrasql/internal/auth"
)

// requireRole is a no-op when no identity is attached, which is the case when
// authentication is disabled by configuration.
func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func (deps Dependencies) clampRowLimit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = deps.DefaultRowLimit
	}
	if deps.MaxRowLimit > 0 && limit > deps.MaxRowLimit {
		limit = deps.MaxRowLimit
	}
	return limit
}

func confirmHint(sessionID string) string {
	return fmt.Sprintf("review the SQL and POST /v1/sessions/%s/confirm to run it, or POST /v1/sessions/%s/cancel to discard it", sessionID, sessionID)
}
