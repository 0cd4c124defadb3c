// Package runrecord persists the history of worker runs.
package runrecord

import (
	"context"

	"nodeflow/internal/runner"
)

const DefaultListLimit = 20

// Store keeps run records. List returns the newest records first.
type Store interface {
	Save(ctx context.Context, rec runner.Record) error
	List(ctx context.Context, nodeID string, limit int) ([]runner.Record, error)
}
