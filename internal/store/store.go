// Package store persists extraction runs. The pipeline treats it as an
// opaque record store: insert a run, get back an id.
package store

import (
	"context"

	"github.com/construdata/proposta-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus        `json:"status,omitempty"`
	Method model.ExtractionMethod `json:"method,omitempty"`
	UserID string                 `json:"user_id,omitempty"`
	Limit  int                    `json:"limit,omitempty"`
	Offset int                    `json:"offset,omitempty"`
}

// Store defines the persistence interface for extraction runs.
type Store interface {
	SaveRun(ctx context.Context, run *model.ExtractionRun) (string, error)
	GetRun(ctx context.Context, runID string) (*model.ExtractionRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ExtractionRun, error)

	Migrate(ctx context.Context) error
	Close() error
}
