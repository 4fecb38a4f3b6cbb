package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/terrasql/terrasql/internal/catalog"
)

// Resolver answers geometry-metadata questions from the PostGIS system views.
// It never caches: a descriptor is valid only for the request that fetched it.
type Resolver struct {
	db *sql.DB
}

func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{db: db}
}

func (r *Resolver) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func (r *Resolver) ResolveGeometry(ctx context.Context, schema, table string) (catalog.GeometryDescriptor, error) {
	query := `
SELECT f_geometry_column, type, srid
FROM geometry_columns
WHERE f_table_schema = $1 AND f_table_name = $2
LIMIT 1`

	var descriptor catalog.GeometryDescriptor
	err := r.db.QueryRowContext(ctx, query, schema, table).Scan(
		&descriptor.Column,
		&descriptor.Type,
		&descriptor.SRID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.GeometryDescriptor{}, fmt.Errorf("%w: %s.%s", catalog.ErrUnknownTable, schema, table)
		}
		return catalog.GeometryDescriptor{}, fmt.Errorf("resolve geometry column: %w", err)
	}
	return descriptor, nil
}

func (r *Resolver) ListColumns(ctx context.Context, schema, table string) ([]catalog.ColumnInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]catalog.ColumnInfo, 0)
	for rows.Next() {
		var column catalog.ColumnInfo
		if err := rows.Scan(&column.Name, &column.DataType); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	return columns, nil
}

func (r *Resolver) ListGeometryTables(ctx context.Context, schema string) ([]catalog.GeometryTable, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT f_table_name, f_geometry_column, type, srid
FROM geometry_columns
WHERE f_table_schema = $1
ORDER BY f_table_name ASC`, schema)
	if err != nil {
		return nil, fmt.Errorf("list geometry tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]catalog.GeometryTable, 0)
	for rows.Next() {
		table := catalog.GeometryTable{Schema: schema}
		if err := rows.Scan(&table.Table, &table.Geometry.Column, &table.Geometry.Type, &table.Geometry.SRID); err != nil {
			return nil, fmt.Errorf("scan geometry table row: %w", err)
		}
		tables = append(tables, table)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate geometry table rows: %w", err)
	}
	return tables, nil
}

// BuildTableDDL renders a simplified CREATE TABLE statement from the
// information schema, prefixed with the PostGIS geometry metadata the trainer
// needs for spatial context.
func (r *Resolver) BuildTableDDL(ctx context.Context, schema, table string) (string, error) {
	descriptor, err := r.ResolveGeometry(ctx, schema, table)
	if err != nil {
		return "", err
	}
	columns, err := r.ListColumns(ctx, schema, table)
	if err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("%w: %s.%s", catalog.ErrUnknownTable, schema, table)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-- PostGIS table: %s.%s\n", schema, table)
	fmt.Fprintf(&b, "-- Geometry column: %s\n", descriptor.Column)
	fmt.Fprintf(&b, "-- Geometry type: %s\n", descriptor.Type)
	fmt.Fprintf(&b, "-- SRID: %d\n\n", descriptor.SRID)
	fmt.Fprintf(&b, "CREATE TABLE %s.%s (", schema, table)
	for i, column := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", column.Name, column.DataType)
	}
	b.WriteString(");")
	return b.String(), nil
}
