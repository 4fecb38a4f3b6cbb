package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/terrasql/terrasql/internal/catalog"
	"github.com/terrasql/terrasql/internal/query"
	"github.com/terrasql/terrasql/internal/trainer"
)

type fakeResolver struct {
	tables map[string]catalog.GeometryDescriptor
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{tables: map[string]catalog.GeometryDescriptor{
		"public.poi":     {Column: "geom", Type: "POINT", SRID: 4326},
		"public.parcels": {Column: "geom", Type: "POLYGON", SRID: 4326},
	}}
}

func (f *fakeResolver) ResolveGeometry(_ context.Context, schema, table string) (catalog.GeometryDescriptor, error) {
	descriptor, ok := f.tables[schema+"."+table]
	if !ok {
		return catalog.GeometryDescriptor{}, fmt.Errorf("%w: %s.%s", catalog.ErrUnknownTable, schema, table)
	}
	return descriptor, nil
}

func (f *fakeResolver) ListColumns(_ context.Context, _, _ string) ([]catalog.ColumnInfo, error) {
	return []catalog.ColumnInfo{{Name: "id", DataType: "integer"}, {Name: "geom", DataType: "geometry"}}, nil
}

func (f *fakeResolver) ListGeometryTables(_ context.Context, schema string) ([]catalog.GeometryTable, error) {
	tables := make([]catalog.GeometryTable, 0, len(f.tables))
	for key, descriptor := range f.tables {
		parts := strings.SplitN(key, ".", 2)
		if parts[0] != schema {
			continue
		}
		tables = append(tables, catalog.GeometryTable{Schema: parts[0], Table: parts[1], Geometry: descriptor})
	}
	return tables, nil
}

func (f *fakeResolver) BuildTableDDL(_ context.Context, schema, table string) (string, error) {
	if _, err := f.ResolveGeometry(context.Background(), schema, table); err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE TABLE %s.%s (\n  id integer,\n  geom geometry\n);", schema, table), nil
}

type fakeExecutor struct {
	mu       sync.Mutex
	executed []string
	result   query.Result
	err      error
}

func (f *fakeExecutor) Execute(_ context.Context, request query.Request) (query.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, request.SQL)
	if f.err != nil {
		return query.Result{}, f.err
	}
	return f.result, nil
}

func (f *fakeExecutor) lastSQL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.executed) == 0 {
		return ""
	}
	return f.executed[len(f.executed)-1]
}

type fakeTrainer struct {
	mu        sync.Mutex
	items     []trainer.TrainingItem
	generated trainer.Generated
	failWith  error
}

func (f *fakeTrainer) GenerateSQL(_ context.Context, question string) (trainer.Generated, error) {
	if f.failWith != nil {
		return trainer.Generated{}, f.failWith
	}
	generated := f.generated
	generated.Question = question
	return generated, nil
}

func (f *fakeTrainer) TrainDDL(_ context.Context, ddl string) error {
	return f.record(trainer.TrainingItem{Type: "ddl", Content: ddl})
}

func (f *fakeTrainer) TrainDocumentation(_ context.Context, documentation string) error {
	return f.record(trainer.TrainingItem{Type: "documentation", Content: documentation})
}

func (f *fakeTrainer) TrainExample(_ context.Context, question, sql string) error {
	return f.record(trainer.TrainingItem{Type: "sql", Question: question, Content: sql})
}

func (f *fakeTrainer) record(item trainer.TrainingItem) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ID = fmt.Sprintf("item-%d", len(f.items)+1)
	f.items = append(f.items, item)
	return nil
}

func (f *fakeTrainer) ListTrainingData(_ context.Context) ([]trainer.TrainingItem, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]trainer.TrainingItem(nil), f.items...), nil
}

func fakeTrainingItem(id string) trainer.TrainingItem {
	return trainer.TrainingItem{ID: id, Type: "documentation", Content: "poi holds points of interest"}
}

func (f *fakeTrainer) RemoveTrainingData(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, item := range f.items {
		if item.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return errors.New("training data not found")
}
