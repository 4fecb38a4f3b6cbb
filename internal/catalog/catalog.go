// Package catalog describes how a table stores its geometry. Descriptors are
// looked up fresh for every request because spatial schemas change out from
// under a long-running server; callers must not cache them.
package catalog

import (
	"context"
	"errors"
)

// ErrUnknownTable reports that the catalog has no registered geometry column
// for a (schema, table) pair.
var ErrUnknownTable = errors.New("catalog: table has no registered geometry column")

// GeometryDescriptor identifies the geometry storage of one table as recorded
// in the PostGIS geometry_columns view.
type GeometryDescriptor struct {
	Column string
	Type   string
	SRID   int
}

type ColumnInfo struct {
	Name     string
	DataType string
}

// GeometryTable is one spatial table of a schema, used for DDL training
// previews.
type GeometryTable struct {
	Schema   string
	Table    string
	Geometry GeometryDescriptor
}

type GeometryResolver interface {
	ResolveGeometry(ctx context.Context, schema, table string) (GeometryDescriptor, error)
	ListColumns(ctx context.Context, schema, table string) ([]ColumnInfo, error)
	ListGeometryTables(ctx context.Context, schema string) ([]GeometryTable, error)
	BuildTableDDL(ctx context.Context, schema, table string) (string, error)
}
