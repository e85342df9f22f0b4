// Package storage persists experiment run records so success rates can be
// compared across attack configurations.
package storage

import (
	"context"
	"time"
)

// RunRecord summarizes one batch attack: configuration digest, budget, the
// distance threshold used for evaluation and the resulting o1..o7 success
// rates.
type RunRecord struct {
	ID           string
	Experiment   string
	ConfigDigest string

	Norm string
	NPop int
	NGen int
	Eps  float64

	SuccessRates []float64
	Duration     time.Duration
	CreatedAt    time.Time
}

// Store defines persistence operations for experiment runs.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, record RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, bool, error)
	ListRuns(ctx context.Context, experiment string) ([]RunRecord, error)
	Close() error
}
