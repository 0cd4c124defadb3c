// Package runner executes a single worker node: resolve its inputs, prepare
// media, dispatch a generation job, wait for it and store the result.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"nodeflow/internal/graph"
	"nodeflow/internal/job"
	"nodeflow/internal/llm"
	"nodeflow/internal/resolver"
)

// ErrorKind names why a run did not succeed.
type ErrorKind string

const (
	KindNoInput    ErrorKind = "NoInput"
	KindDispatch   ErrorKind = "DispatchError"
	KindTaskFailed ErrorKind = "TaskFailed"
	KindTimeout    ErrorKind = "Timeout"
	KindNotFound   ErrorKind = "NotFound"
	KindNotWorker  ErrorKind = "NotWorker"
	KindCanceled   ErrorKind = "Canceled"
	KindInternal   ErrorKind = "Internal"
)

// Result is the outcome of one run as reported to the caller.
type Result struct {
	RunID   string    `json:"runId"`
	NodeID  string    `json:"nodeId"`
	Success bool      `json:"success"`
	Output  string    `json:"output,omitempty"`
	Error   ErrorKind `json:"error,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Graph is the store access a run needs.
type Graph interface {
	resolver.GraphReader
	SetValue(id string, v graph.Value) error
}

// MediaNormalizer prepares media refs, dropping the ones that fail.
type MediaNormalizer interface {
	NormalizeAll(ctx context.Context, refs []graph.MediaRef) []job.Part
}

// Awaiter waits for a dispatched job to finish.
type Awaiter interface {
	Await(ctx context.Context, h job.Handle) (job.Output, error)
}

type Options struct {
	Events       Emitter
	Recorder     Recorder
	DefaultModel string
}

// Controller runs worker nodes. It holds no per-run state, so independent
// runs may execute concurrently. Two runs of the same node are not serialized.
type Controller struct {
	graph      Graph
	normalizer MediaNormalizer
	dispatcher job.Dispatcher
	awaiter    Awaiter
	events     Emitter
	recorder   Recorder
	model      string
	now        func() time.Time
}

func New(g Graph, n MediaNormalizer, d job.Dispatcher, a Awaiter, opts Options) *Controller {
	c := &Controller{
		graph:      g,
		normalizer: n,
		dispatcher: d,
		awaiter:    a,
		events:     opts.Events,
		recorder:   opts.Recorder,
		model:      opts.DefaultModel,
		now:        time.Now,
	}
	if c.events == nil {
		c.events = noopEmitter{}
	}
	if c.model == "" {
		c.model = llm.DefaultModel
	}
	return c
}

// Run executes workerID once. Failures are reported in the Result; the
// node's stored value changes only when the job completes successfully.
func (c *Controller) Run(ctx context.Context, workerID string) Result {
	runID := uuid.NewString()
	started := c.now()
	c.emit(Event{Type: EventStarted, RunID: runID, NodeID: workerID})

	var jobID string
	res := c.execute(ctx, runID, workerID, &jobID)
	res.RunID = runID
	res.NodeID = workerID

	outcome := "ok"
	if !res.Success {
		outcome = string(res.Error)
		log.Printf("runner: run %s on %s failed: %s: %s", runID, workerID, res.Error, res.Message)
		c.emit(Event{Type: EventFailed, RunID: runID, NodeID: workerID, JobID: jobID, Error: res.Error, Message: res.Message})
	} else {
		c.emit(Event{Type: EventCompleted, RunID: runID, NodeID: workerID, JobID: jobID, Output: res.Output})
	}
	finished := c.now()
	runsTotal.WithLabelValues(outcome).Inc()
	runDuration.WithLabelValues(outcome).Observe(finished.Sub(started).Seconds())
	c.record(ctx, Record{
		RunID:      runID,
		NodeID:     workerID,
		JobID:      jobID,
		Success:    res.Success,
		Output:     res.Output,
		ErrorKind:  string(res.Error),
		Message:    res.Message,
		StartedAt:  started,
		FinishedAt: finished,
	})
	return res
}

func (c *Controller) execute(ctx context.Context, runID, workerID string, jobID *string) Result {
	node, err := c.graph.Node(workerID)
	if err != nil {
		return failure(KindNotFound, err.Error())
	}
	if node.Kind != graph.KindWorker {
		return failure(KindNotWorker, fmt.Sprintf("node %s is a %s node", workerID, node.Kind))
	}

	prepared, err := resolver.Prepare(c.graph, workerID)
	if err != nil {
		if errors.Is(err, resolver.ErrNoInput) {
			return failure(KindNoInput, "No input! Connect a text node or image node.")
		}
		return failure(KindNotFound, err.Error())
	}

	var parts []job.Part
	if len(prepared.Media) > 0 {
		parts = c.normalizer.NormalizeAll(ctx, prepared.Media)
		if dropped := len(prepared.Media) - len(parts); dropped > 0 {
			mediaDropped.Add(float64(dropped))
			log.Printf("runner: run %s continues without %d of %d media inputs", runID, dropped, len(prepared.Media))
		}
	}

	model := node.Model
	if model == "" {
		model = c.model
	}
	handle, err := c.dispatcher.Submit(ctx, job.Request{Text: prepared.Text, Model: model, Parts: parts})
	if err != nil {
		return failure(KindDispatch, err.Error())
	}
	*jobID = handle.ID
	c.emit(Event{Type: EventDispatched, RunID: runID, NodeID: workerID, JobID: handle.ID})

	out, err := c.awaiter.Await(ctx, handle)
	switch {
	case err == nil:
	case errors.Is(err, job.ErrTimeout):
		return failure(KindTimeout, c.timeoutMessage())
	case errors.Is(err, job.ErrTaskFailed):
		return failure(KindTaskFailed, "Task failed to complete.")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return failure(KindCanceled, err.Error())
	default:
		return failure(KindTaskFailed, err.Error())
	}

	if strings.TrimSpace(out.Text) == "" {
		// a completed job with nothing to show must not blank the node
		return failure(KindTaskFailed, "AI failed to respond.")
	}
	if err := c.graph.SetValue(workerID, graph.Text(out.Text)); err != nil {
		// the node vanished while the job ran
		return failure(KindInternal, err.Error())
	}
	return Result{Success: true, Output: out.Text}
}

func (c *Controller) timeoutMessage() string {
	if b, ok := c.awaiter.(interface{ Budget() time.Duration }); ok {
		return fmt.Sprintf("Task timed out (took longer than %s).", b.Budget())
	}
	return "Task timed out."
}

func (c *Controller) emit(ev Event) {
	ev.At = c.now()
	c.events.Emit(ev)
}

func (c *Controller) record(ctx context.Context, rec Record) {
	if c.recorder == nil {
		return
	}
	// the caller may have given up; the record is still worth keeping
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.recorder.Save(ctx, rec); err != nil {
		log.Printf("runner: failed to record run %s: %v", rec.RunID, err)
	}
}

func failure(kind ErrorKind, msg string) Result {
	return Result{Success: false, Error: kind, Message: msg}
}
