package job

import (
	"context"
	"fmt"
	"log"
	"time"
)

const (
	DefaultPollInterval = time.Second
	DefaultMaxAttempts  = 15
)

// Poller waits for a job to reach a terminal state by querying its status
// on a fixed interval. It never cancels the job it gives up on.
type Poller struct {
	Querier     StatusQuerier
	Interval    time.Duration
	MaxAttempts int
	// Sleep waits between polls; defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewPoller(q StatusQuerier, interval time.Duration, maxAttempts int) *Poller {
	return &Poller{Querier: q, Interval: interval, MaxAttempts: maxAttempts}
}

// Await returns the job's output on COMPLETED, ErrTaskFailed on any failure
// state and ErrTimeout once MaxAttempts queries saw no terminal state.
func (p *Poller) Await(ctx context.Context, h Handle) (Output, error) {
	if p == nil || p.Querier == nil {
		return Output{}, fmt.Errorf("poller is not configured")
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		report, err := p.Querier.Status(ctx, h)
		switch {
		case err != nil:
			// a failed query is not a job outcome; it only spends an attempt
			pollAttempts.WithLabelValues("error").Inc()
			log.Printf("job: status query for %s failed (attempt %d/%d): %v", h.ID, attempt, maxAttempts, err)
		case report.Status == StatusCompleted:
			pollAttempts.WithLabelValues("completed").Inc()
			if report.Output == nil {
				return Output{}, nil
			}
			return *report.Output, nil
		case report.Status == StatusFailed, report.Status == StatusCanceled, report.Status == StatusCrashed:
			pollAttempts.WithLabelValues("failed").Inc()
			return Output{}, fmt.Errorf("%w: status %s", ErrTaskFailed, report.Status)
		default:
			pollAttempts.WithLabelValues("pending").Inc()
		}
		if attempt >= maxAttempts {
			return Output{}, fmt.Errorf("%w: no terminal status after %d attempts", ErrTimeout, maxAttempts)
		}
		if err := sleep(ctx, interval); err != nil {
			return Output{}, err
		}
	}
}

// Budget is the worst-case wait of a poller.
func (p *Poller) Budget() time.Duration {
	if p == nil {
		return 0
	}
	interval, attempts := p.Interval, p.MaxAttempts
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	return time.Duration(attempts) * interval
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
