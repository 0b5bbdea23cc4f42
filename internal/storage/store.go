package storage

import (
	"context"

	"apomixis/internal/model"
)

// Store defines persistence operations for training artifacts. Lookups
// report absence through the boolean, not through an error.
type Store interface {
	Init(ctx context.Context) error
	SaveChampion(ctx context.Context, champion model.NetworkRecord) error
	GetChampion(ctx context.Context, runID string) (model.NetworkRecord, bool, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []float64) error
	GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveScapeSummary(ctx context.Context, summary model.ScapeSummary) error
	GetScapeSummary(ctx context.Context, name string) (model.ScapeSummary, bool, error)
	ListScapeSummaries(ctx context.Context) ([]model.ScapeSummary, error)
}
