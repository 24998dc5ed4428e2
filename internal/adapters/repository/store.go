// Package repository persists run reports.
package repository

import (
	"context"

	"github.com/okian/guardrail/internal/domain/model"
)

// Store provides read/write access to run reports.
type Store interface {
	// Put inserts or replaces the report for r.RunID.
	Put(ctx context.Context, r model.Report) error

	// Get returns the report of a run.
	// Returns ErrNotFound if the run is unknown.
	Get(ctx context.Context, runID string) (model.Report, error)

	// List returns up to limit reports, most recently submitted first.
	List(ctx context.Context, limit int) ([]model.Report, error)

	// Count returns the number of stored reports.
	Count(ctx context.Context) (int, error)

	// Close releases the store's resources.
	Close() error
}
