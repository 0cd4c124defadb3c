// Package worker is an in-process asynchronous compute service for
// generation jobs. It satisfies job.Dispatcher and job.StatusQuerier so the
// run controller can treat it exactly like a hosted task runner.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nodeflow/internal/job"
	"nodeflow/internal/llm"
)

// DefaultPrompt is sent when a job carries media but no text.
const DefaultPrompt = "What do you see in this image?"

var ErrUnknownJob = errors.New("worker: unknown job")

type Options struct {
	Concurrency int
	QueueSize   int
	JobTimeout  time.Duration
	// Retention is how long finished jobs stay queryable.
	Retention time.Duration
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 2 * time.Minute
	}
	if o.Retention <= 0 {
		o.Retention = 10 * time.Minute
	}
	return o
}

type record struct {
	id       string
	req      job.Request
	status   job.Status
	output   *job.Output
	errMsg   string
	cancel   context.CancelFunc
	created  time.Time
	finished time.Time
}

// Service runs submitted jobs on a fixed pool of goroutines.
type Service struct {
	gen  llm.Generator
	opts Options

	mu     sync.RWMutex
	jobs   map[string]*record
	queue  chan *record
	closed bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(gen llm.Generator, opts Options) *Service {
	opts = opts.withDefaults()
	s := &Service{
		gen:    gen,
		opts:   opts,
		jobs:   make(map[string]*record),
		queue:  make(chan *record, opts.QueueSize),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < opts.Concurrency; i++ {
		s.wg.Add(1)
		go s.loop()
	}
	return s
}

// Submit queues req and returns its handle without waiting for execution.
// An empty request is accepted: it runs with DefaultPrompt, which is what a
// media-only run degrades to when every attachment failed to load.
func (s *Service) Submit(_ context.Context, req job.Request) (job.Handle, error) {
	if s == nil || s.gen == nil {
		return job.Handle{}, &job.DispatchError{Reason: "worker is not configured"}
	}
	rec := &record{
		id:      "run_" + uuid.NewString(),
		req:     req,
		status:  job.StatusPending,
		created: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return job.Handle{}, &job.DispatchError{Reason: "worker is shut down"}
	}
	select {
	case s.queue <- rec:
	default:
		return job.Handle{}, &job.DispatchError{Reason: "worker queue is full"}
	}
	s.jobs[rec.id] = rec
	return job.Handle{ID: rec.id}, nil
}

func (s *Service) Status(_ context.Context, h job.Handle) (job.StatusReport, error) {
	if s == nil {
		return job.StatusReport{}, fmt.Errorf("worker is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[h.ID]
	if !ok {
		return job.StatusReport{}, fmt.Errorf("%w: %s", ErrUnknownJob, h.ID)
	}
	rep := job.StatusReport{Status: rec.status}
	if rec.output != nil {
		out := *rec.output
		rep.Output = &out
	}
	return rep, nil
}

// Cancel stops a pending or executing job. Finished jobs are left as they are.
func (s *Service) Cancel(h job.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[h.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, h.ID)
	}
	switch rec.status {
	case job.StatusPending:
		s.finishLocked(rec, job.StatusCanceled, nil, "canceled before start")
	case job.StatusExecuting:
		if rec.cancel != nil {
			rec.cancel()
		}
		s.finishLocked(rec, job.StatusCanceled, nil, "canceled")
	}
	return nil
}

// Close stops accepting jobs and waits for running ones to finish. Jobs
// still queued are marked CANCELED so pollers see a terminal state.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stopCh)
	s.mu.Unlock()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case rec := <-s.queue:
			if rec.status == job.StatusPending {
				s.finishLocked(rec, job.StatusCanceled, nil, "worker shut down before start")
			}
		default:
			return nil
		}
	}
}

func (s *Service) loop() {
	defer s.wg.Done()
	for {
		// stop wins over queued work once Close has been called
		select {
		case <-s.stopCh:
			return
		default:
		}
		select {
		case <-s.stopCh:
			return
		case rec := <-s.queue:
			s.execute(rec)
		}
	}
}

func (s *Service) execute(rec *record) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.JobTimeout)
	defer cancel()

	s.mu.Lock()
	if rec.status != job.StatusPending {
		s.mu.Unlock()
		return
	}
	rec.status = job.StatusExecuting
	rec.cancel = cancel
	s.mu.Unlock()

	text, err := s.generate(ctx, rec.req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.status != job.StatusExecuting {
		// canceled while generating
		return
	}
	var crashed *crashError
	switch {
	case errors.As(err, &crashed):
		log.Printf("worker: job %s crashed: %v", rec.id, err)
		s.finishLocked(rec, job.StatusCrashed, nil, err.Error())
	case err != nil:
		log.Printf("worker: job %s failed: %v", rec.id, err)
		s.finishLocked(rec, job.StatusFailed, nil, err.Error())
	default:
		s.finishLocked(rec, job.StatusCompleted, &job.Output{Text: text}, "")
	}
}

type crashError struct{ v any }

func (e *crashError) Error() string { return fmt.Sprintf("panic: %v", e.v) }

func (s *Service) generate(ctx context.Context, req job.Request) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &crashError{v: r}
		}
	}()
	prompt := strings.TrimSpace(req.Text)
	if prompt == "" {
		prompt = DefaultPrompt
	}
	parts := make([]job.Part, 0, len(req.Parts)+1)
	parts = append(parts, job.TextPart(prompt))
	parts = append(parts, req.Parts...)
	log.Printf("worker: processing text=%t parts=%d model=%s", req.Text != "", len(req.Parts), req.Model)
	return s.gen.Generate(ctx, req.Model, parts)
}

func (s *Service) finishLocked(rec *record, status job.Status, out *job.Output, msg string) {
	rec.status = status
	rec.output = out
	rec.errMsg = msg
	rec.cancel = nil
	rec.finished = time.Now()
	id := rec.id
	time.AfterFunc(s.opts.Retention, func() {
		s.mu.Lock()
		delete(s.jobs, id)
		s.mu.Unlock()
	})
}
