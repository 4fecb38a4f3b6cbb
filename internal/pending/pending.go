// Package pending holds staged actions between preview and confirmation.
// Sessions live in process memory only; a restart forgets them and callers
// stage again. Confirm and cancel are both terminal, and a terminal session
// can never re-execute its side effect.
package pending

import (
	"errors"
	"time"
)

type Kind string

const (
	KindSQLExecution          Kind = "sql_execution"
	KindDDLTraining           Kind = "ddl_training"
	KindDocumentationTraining Kind = "documentation_training"
	KindSQLExampleTraining    Kind = "sql_example_training"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

var (
	ErrUnknownSession   = errors.New("pending: unknown session id")
	ErrAlreadyFinalized = errors.New("pending: session already finalized")
)

// Payload carries the staged data for every kind; only the fields for the
// action's kind are set.
type Payload struct {
	SQL           string
	RowLimit      int
	Schema        string
	DDLStatements []string
	Documentation string
	Question      string
}

type Action struct {
	SessionID string
	Kind      Kind
	Payload   Payload
	Status    Status
	CreatedAt time.Time
}
