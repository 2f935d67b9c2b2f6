package storage

import (
	"context"
	"errors"
	"fmt"

	"rightmove-scraper/models"
)

// SnapshotStore persists the merged table between runs.
type SnapshotStore interface {
	// Load returns the previous snapshot, or nil when there is none.
	Load(ctx context.Context) (*models.Table, error)
	// Save replaces the snapshot. With overwrite false an existing snapshot
	// is left alone and an OutputConflictError is returned.
	Save(ctx context.Context, table *models.Table, overwrite bool) error
	Close() error
}

// ErrOutputExists is matched by every OutputConflictError.
var ErrOutputExists = errors.New("output already exists")

// OutputConflictError reports a refused overwrite.
type OutputConflictError struct {
	Target string
}

func (e *OutputConflictError) Error() string {
	return fmt.Sprintf("%s exists and overwrite is disabled", e.Target)
}

func (e *OutputConflictError) Unwrap() error { return ErrOutputExists }

// SchemaError reports a snapshot whose columns do not fit the run's mode.
type SchemaError struct {
	Target  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: snapshot is missing columns %q", e.Target, e.Missing)
}
