package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/terrasql/terrasql/internal/query"
)

// Executor runs read-only statements on the spatial database. Driver errors
// are returned as-is so the API layer can surface the database's own message;
// nothing is retried here.
type Executor struct {
	db *sql.DB
}

func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db}
}

func (e *Executor) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	start := time.Now()

	rows, err := e.db.QueryContext(ctx, request.SQL)
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("read result columns: %w", err)
	}

	result := query.Result{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return query.Result{}, fmt.Errorf("scan result row: %w", err)
		}
		for i, value := range values {
			// Geometry columns come back as raw bytes; render them as
			// text so the response stays JSON-encodable.
			if raw, ok := value.([]byte); ok {
				values[i] = string(raw)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, err
	}

	result.RowCount = len(result.Rows)
	result.Duration = time.Since(start)
	return result, nil
}
