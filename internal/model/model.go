// Package model holds the shared domain types for the subrogation pipeline.
package model

import "time"

// RunStatus is the lifecycle state of a training run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one training run: configuration snapshot, status, and headline
// metrics. Artifacts and the model bundle are stored alongside it keyed by
// run ID so inference always pairs the statistics with the model that
// produced them.
type Run struct {
	ID        string      `json:"id"`
	Status    RunStatus   `json:"status"`
	Config    string      `json:"config,omitempty"` // JSON snapshot of the training config
	Metrics   *RunMetrics `json:"metrics,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunMetrics are the headline numbers of a completed run.
type RunMetrics struct {
	OOFF1        float64            `json:"oof_f1"`
	OOFAUC       float64            `json:"oof_auc"`
	Threshold    float64            `json:"threshold"`
	Weights      map[string]float64 `json:"weights"`
	TrainRows    int                `json:"train_rows"`
	TestRows     int                `json:"test_rows"`
	PositiveRate float64            `json:"positive_rate"`
}

// Prediction is the per-claim output record.
type Prediction struct {
	ClaimNumber string  `json:"claim_number"`
	Probability float64 `json:"probability"`
	Label       int     `json:"label"`
}
