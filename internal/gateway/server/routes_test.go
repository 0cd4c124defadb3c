package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"nodeflow/internal/gateway/events"
	"nodeflow/internal/gateway/handler"
	"nodeflow/internal/gateway/handler/rpc"
	"nodeflow/internal/graph"
)

func TestMuxServesOpsAndCORS(t *testing.T) {
	mux := NewMux(
		rpc.NewWorkflowHandler(graph.NewStore(), nil, nil),
		handler.NewRunWatchHandler(events.NewBroker()),
		nil,
		nil,
	)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodOptions, rpc.GetNodeProcedure, nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/media/upload", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
