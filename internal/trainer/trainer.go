// Package trainer is the boundary to the learned SQL-generation service. The
// service owns the model and its vector store; this package only asks it for
// candidate SQL and commits confirmed training examples to it.
package trainer

import "context"

type Generated struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
}

type TrainingItem struct {
	ID       string `json:"id"`
	Type     string `json:"training_data_type"`
	Question string `json:"question"`
	Content  string `json:"content"`
}

type Service interface {
	GenerateSQL(ctx context.Context, question string) (Generated, error)
	TrainDDL(ctx context.Context, ddl string) error
	TrainDocumentation(ctx context.Context, documentation string) error
	TrainExample(ctx context.Context, question, sql string) error
	ListTrainingData(ctx context.Context) ([]TrainingItem, error)
	RemoveTrainingData(ctx context.Context, id string) error
}
