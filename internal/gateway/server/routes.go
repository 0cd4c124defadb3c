package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nodeflow/internal/gateway/handler"
	"nodeflow/internal/gateway/handler/rpc"
	"nodeflow/internal/gateway/middleware"
)

func NewMux(
	workflowHandler *rpc.WorkflowHandler,
	runWatchHandler *handler.RunWatchHandler,
	mediaHandler *handler.MediaHandler,
	allowedOrigins []string,
) http.Handler {
	mux := http.NewServeMux()

	// RPC Handlers
	mux.Handle(rpc.NewWorkflowServiceHandler(workflowHandler))

	// Streaming and uploads
	mux.HandleFunc("/ws/runs", runWatchHandler.HandleRunsWS)
	if mediaHandler != nil {
		mux.HandleFunc("/media/upload", mediaHandler.HandleUpload)
	}

	// Ops
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Middleware
	return middleware.CORS(allowedOrigins)(mux)
}
