package app

import (
	"context"
	"fmt"
	"log"

	"nodeflow/internal/gateway/config"
	"nodeflow/internal/job"
	"nodeflow/internal/llm"
	"nodeflow/internal/media"
	"nodeflow/internal/runner"
	"nodeflow/internal/worker"
)

// Engine is the run pipeline: media normalization, job dispatch, polling
// and the controller tying them to a graph.
type Engine struct {
	Controller *runner.Controller
	Poller     *job.Poller
	worker     *worker.Service
	gen        llm.Generator
}

// NewEngine builds the pipeline for g. In local dispatch mode jobs run on an
// in-process worker; in remote mode they go to the hosted task runner.
func NewEngine(ctx context.Context, cfg *config.Config, g runner.Graph, opts runner.Options) (*Engine, error) {
	normalizer, err := media.NewNormalizer(
		media.NewHTTPFetcher(cfg.Media.FetchTimeout),
		cfg.Media.CacheEntries,
		cfg.Media.Concurrency,
	)
	if err != nil {
		return nil, fmt.Errorf("init media normalizer: %w", err)
	}

	e := &Engine{}
	var (
		dispatcher job.Dispatcher
		querier    job.StatusQuerier
	)
	switch cfg.Dispatch.Mode {
	case config.DispatchRemote:
		if cfg.Dispatch.TriggerSecret == "" {
			return nil, fmt.Errorf("remote dispatch requires TRIGGER_SECRET_KEY")
		}
		client := job.NewHTTPClient(cfg.Dispatch.TriggerURL, cfg.Dispatch.TriggerSecret, cfg.Dispatch.TriggerTaskID)
		dispatcher, querier = client, client
		log.Printf("dispatch: remote task=%s url=%s", client.TaskID, client.BaseURL)
	case config.DispatchLocal, "":
		gen, err := NewGenerator(ctx, cfg.LLM)
		if err != nil {
			return nil, err
		}
		e.gen = gen
		e.worker = worker.New(gen, worker.Options{
			Concurrency: cfg.Dispatch.WorkerConcurrency,
			JobTimeout:  cfg.Dispatch.WorkerJobTimeout,
		})
		dispatcher, querier = e.worker, e.worker
		log.Printf("dispatch: local worker backend=%s", gen.Name())
	default:
		return nil, fmt.Errorf("unknown dispatch mode %q", cfg.Dispatch.Mode)
	}

	e.Poller = job.NewPoller(querier, cfg.Poll.Interval, cfg.Poll.MaxAttempts)
	e.Controller = runner.New(g, normalizer, dispatcher, e.Poller, opts)
	return e, nil
}

// NewGenerator returns the Gemini backend, or the fake one when asked for or
// when no API key is configured.
func NewGenerator(ctx context.Context, cfg config.LLMConfig) (llm.Generator, error) {
	if cfg.Fake {
		return llm.NewFakeClient(), nil
	}
	if cfg.APIKey == "" {
		log.Printf("llm: no GEMINI_API_KEY set, using fake backend")
		return llm.NewFakeClient(), nil
	}
	cli, err := llm.NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.RPS, cfg.Burst)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return cli, nil
}

func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	if e.worker != nil {
		_ = e.worker.Close()
	}
	if e.gen != nil {
		return e.gen.Close()
	}
	return nil
}
