package store

import (
	"context"

	"github.com/me/edaq/pkg/model"
)

// Journal defines the persistence layer for runs and executed events.
type Journal interface {
	// Runs
	EnsureRun(ctx context.Context, run *model.RunRecord) error
	FinishRun(ctx context.Context, run *model.RunRecord) error
	GetRun(ctx context.Context, id string) (*model.RunRecord, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.RunRecord, int, error)

	// Executions
	RecordExecution(ctx context.Context, rec *model.ExecutionRecord) error
	ListExecutions(ctx context.Context, runID string, opts model.ListOptions) ([]*model.ExecutionRecord, int, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
