package postgres

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/terrasql/terrasql/internal/query"
)

func TestExecuteReturnsColumnsAndRows(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT name, geom FROM poi LIMIT 2").
		WillReturnRows(sqlmock.NewRows([]string{"name", "geom"}).
			AddRow("station", []byte("POINT (120.5 30.2)")).
			AddRow("school", []byte("POINT (121 31)")))

	executor := NewExecutor(db)
	result, err := executor.Execute(context.Background(), query.Request{SQL: "SELECT name, geom FROM poi LIMIT 2"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Columns) != 2 || result.Columns[0] != "name" {
		t.Fatalf("Columns = %v", result.Columns)
	}
	if result.RowCount != 2 {
		t.Fatalf("RowCount = %d", result.RowCount)
	}
	if result.Rows[0][1] != "POINT (120.5 30.2)" {
		t.Fatalf("geometry bytes should be stringified, got %T %v", result.Rows[0][1], result.Rows[0][1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestExecuteSurfacesDriverError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	driverErr := errors.New(`invalid input syntax for type geometry: "POINT(bad)"`)
	mock.ExpectQuery("SELECT broken").WillReturnError(driverErr)

	executor := NewExecutor(db)
	_, err = executor.Execute(context.Background(), query.Request{SQL: "SELECT broken"})
	if !errors.Is(err, driverErr) {
		t.Fatalf("Execute() error = %v, want driver error verbatim", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
