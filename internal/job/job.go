// Package job defines the boundary to the asynchronous compute service that
// runs generation jobs, and the poller that waits for their outcome.
package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDispatch   = errors.New("job: dispatch rejected")
	ErrTaskFailed = errors.New("job: task failed to complete")
	ErrTimeout    = errors.New("job: timed out waiting for task")
)

// InlineData is base64 content tagged with its MIME type.
type InlineData struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

// Part is one unit of request content: either text or inline media.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

func TextPart(s string) Part { return Part{Text: s} }

func InlinePart(data, mimeType string) Part {
	return Part{InlineData: &InlineData{Data: data, MIMEType: mimeType}}
}

// Request is what gets submitted for one generation run.
type Request struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Parts []Part `json:"parts"`
}

// Handle identifies a submitted job for the lifetime of a run.
type Handle struct {
	ID string `json:"id"`
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusExecuting Status = "EXECUTING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCanceled  Status = "CANCELED"
	StatusCrashed   Status = "CRASHED"
)

// ParseStatus maps a service status string onto Status. Queue-like states
// reported by task runners are folded into PENDING.
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PENDING", "QUEUED", "WAITING_FOR_DEPLOY", "DELAYED", "PENDING_VERSION":
		return StatusPending, true
	case "EXECUTING", "REATTEMPTING", "FROZEN", "DEQUEUED":
		return StatusExecuting, true
	case "COMPLETED":
		return StatusCompleted, true
	case "FAILED", "SYSTEM_FAILURE", "TIMED_OUT", "EXPIRED":
		return StatusFailed, true
	case "CANCELED", "CANCELLED":
		return StatusCanceled, true
	case "CRASHED":
		return StatusCrashed, true
	default:
		return "", false
	}
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled, StatusCrashed:
		return true
	}
	return false
}

// Output is the payload of a completed job.
type Output struct {
	Text string `json:"text"`
}

// StatusReport is one answer from the status query boundary.
type StatusReport struct {
	Status Status  `json:"status"`
	Output *Output `json:"output,omitempty"`
}

// Dispatcher submits a request and returns as soon as the service accepts it.
type Dispatcher interface {
	Submit(ctx context.Context, req Request) (Handle, error)
}

// StatusQuerier reports the current state of a submitted job.
type StatusQuerier interface {
	Status(ctx context.Context, h Handle) (StatusReport, error)
}

// DispatchError wraps a rejected submission.
type DispatchError struct {
	Reason string
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch rejected: %s: %v", e.Reason, e.Err)
	}
	return "dispatch rejected: " + e.Reason
}

func (e *DispatchError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDispatch, e.Err}
	}
	return []error{ErrDispatch}
}
