// Package store persists training runs, their fitted transform
// artifacts, the serialized model bundle, and scored predictions.
package store

import (
	"context"

	"github.com/triguard/subro-cli/internal/feature"
	"github.com/triguard/subro-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the training pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, configJSON string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, metrics *model.RunMetrics) error
	FailRun(ctx context.Context, runID string, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	LatestCompleteRun(ctx context.Context) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Fitted state
	SaveArtifacts(ctx context.Context, runID string, arts feature.Artifacts) error
	GetArtifacts(ctx context.Context, runID string) (feature.Artifacts, error)
	SaveBundle(ctx context.Context, runID string, bundle []byte) error
	GetBundle(ctx context.Context, runID string) ([]byte, error)

	// Predictions
	SavePredictions(ctx context.Context, runID string, preds []model.Prediction) error
	ListPredictions(ctx context.Context, runID string) ([]model.Prediction, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
