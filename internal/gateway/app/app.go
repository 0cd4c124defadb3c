package app

import (
	"context"
	"fmt"
	"log"

	"nodeflow/internal/gateway/config"
	"nodeflow/internal/gateway/events"
	"nodeflow/internal/gateway/handler"
	"nodeflow/internal/gateway/handler/rpc"
	"nodeflow/internal/gateway/server"
	"nodeflow/internal/graph"
	"nodeflow/internal/runner"
)

type App struct {
	server  *server.Server
	engine  *Engine
	closers []func() error
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(context.Background(), cfg)
}

func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	// Dependencies
	stores, err := initStores(cfg)
	if err != nil {
		return nil, err
	}
	broker := events.NewBroker()
	g := graph.NewStore()
	engine, err := NewEngine(ctx, cfg, g, runner.Options{
		Events:       broker,
		Recorder:     stores.runs,
		DefaultModel: cfg.LLM.Model,
	})
	if err != nil {
		_ = stores.Close()
		return nil, err
	}

	workflowHandler := rpc.NewWorkflowHandler(g, engine.Controller, stores.runs)
	runWatchHandler := handler.NewRunWatchHandler(broker)
	var mediaHandler *handler.MediaHandler
	if stores.uploader != nil {
		mediaHandler = handler.NewMediaHandler(stores.uploader, g)
	} else {
		log.Printf("media uploads disabled: no upload service or bucket configured")
	}

	// Routing & Server
	mux := server.NewMux(workflowHandler, runWatchHandler, mediaHandler, cfg.CORSOrigins)
	srv := server.New(cfg.Port, mux)

	return &App{
		server:  srv,
		engine:  engine,
		closers: []func() error{engine.Close, stores.Close},
	}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	for _, c := range a.closers {
		if cerr := c(); cerr != nil {
			log.Printf("shutdown: %v", cerr)
		}
	}
	return err
}
