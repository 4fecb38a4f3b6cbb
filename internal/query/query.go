package query

import (
	"context"
	"time"
)

type Request struct {
	SQL string
}

type Result struct {
	Columns  []string
	Rows     [][]any
	RowCount int
	Duration time.Duration
}

// Executor runs an admitted, already-vetted statement. Implementations do not
// re-check the statement; the execution gate has the only veto.
type Executor interface {
	Execute(ctx context.Context, request Request) (Result, error)
}
