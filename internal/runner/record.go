package runner

import (
	"context"
	"time"
)

// Record is the persisted history entry of one run.
type Record struct {
	RunID      string    `json:"runId"`
	NodeID     string    `json:"nodeId"`
	JobID      string    `json:"jobId,omitempty"`
	Success    bool      `json:"success"`
	Output     string    `json:"output,omitempty"`
	ErrorKind  string    `json:"error,omitempty"`
	Message    string    `json:"message,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Recorder keeps run history. Save errors are logged, never surfaced to the run.
type Recorder interface {
	Save(ctx context.Context, rec Record) error
}
