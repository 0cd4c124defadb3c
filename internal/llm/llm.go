package llm

import (
	"context"

	"nodeflow/internal/job"
)

// Generator produces text from an ordered list of request parts.
type Generator interface {
	Name() string
	Generate(ctx context.Context, model string, parts []job.Part) (string, error)
	Close() error
}
