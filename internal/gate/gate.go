// Package gate vets SQL text before it reaches the database. The checks are
// textual, not parsed: a literal or identifier containing a denylisted word is
// rejected too. That over-approximation is deliberate and load-bearing; run
// the server against a read-only database role rather than loosening it here.
package gate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfirmationRequired = errors.New("execution requires confirmed=true")
	ErrNotASelect           = errors.New("only SELECT statements may be executed")
)

// ForbiddenKeywordError names the first denylisted keyword found in the text.
type ForbiddenKeywordError struct {
	Keyword string
}

func (e *ForbiddenKeywordError) Error() string {
	return fmt.Sprintf("statement contains forbidden keyword %s", e.Keyword)
}

// deniedKeywords is checked in declaration order; the first hit is reported.
var deniedKeywords = []string{"DROP", "DELETE", "TRUNCATE", "INSERT", "UPDATE", "ALTER", "CREATE"}

// Admit applies the gate rules in fixed order and returns the first failure:
// confirmation, then statement shape, then the keyword denylist. An admitted
// statement is forwarded unmodified; use EnsureLimit separately.
func Admit(sqlText string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	upper := strings.ToUpper(strings.TrimSpace(sqlText))
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "--") {
		return ErrNotASelect
	}

	for _, keyword := range deniedKeywords {
		if strings.Contains(upper, keyword) {
			return &ForbiddenKeywordError{Keyword: keyword}
		}
	}
	return nil
}

// RejectionReason maps a gate error to a short metric label.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrConfirmationRequired):
		return "confirmation_required"
	case errors.Is(err, ErrNotASelect):
		return "not_a_select"
	default:
		var forbidden *ForbiddenKeywordError
		if errors.As(err, &forbidden) {
			return "forbidden_keyword"
		}
		return "unknown"
	}
}

// EnsureLimit appends "LIMIT n" to statements that do not already carry a
// LIMIT clause anywhere. Statements with their own LIMIT pass through
// untouched.
func EnsureLimit(sqlText string, limit int) string {
	if limit <= 0 {
		return sqlText
	}
	if strings.Contains(strings.ToUpper(sqlText), "LIMIT") {
		return sqlText
	}
	trimmed := strings.TrimRight(strings.TrimSpace(sqlText), ";")
	return fmt.Sprintf("%s\nLIMIT %d;", trimmed, limit)
}
