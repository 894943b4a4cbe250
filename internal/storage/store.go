package storage

import (
	"context"

	"neuroflap/internal/model"
)

// Store defines transaction-like persistence operations for training runs.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SavePopulation(ctx context.Context, snapshot model.PopulationSnapshot) error
	GetPopulation(ctx context.Context, runID, name string) (model.PopulationSnapshot, bool, error)
	AppendGenerationSummary(ctx context.Context, runID, population string, summary model.GenerationSummary) error
	GetGenerationSummaries(ctx context.Context, runID, population string) ([]model.GenerationSummary, bool, error)
	Reset(ctx context.Context) error
}
