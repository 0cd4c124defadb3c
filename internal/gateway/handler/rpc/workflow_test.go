package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodeflow/internal/graph"
	"nodeflow/internal/runner"
)

type stubRunner struct {
	mu     sync.Mutex
	called []string
	result runner.Result
}

func (s *stubRunner) Run(_ context.Context, id string) runner.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.called = append(s.called, id)
	res := s.result
	res.NodeID = id
	return res
}

type stubRuns struct{ recs []runner.Record }

func (s *stubRuns) List(_ context.Context, nodeID string, _ int) ([]runner.Record, error) {
	var out []runner.Record
	for _, r := range s.recs {
		if nodeID == "" || r.NodeID == nodeID {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T, g *graph.Store, r Runner, runs RunLister) *httptest.Server {
	t.Helper()
	path, h := NewWorkflowServiceHandler(NewWorkflowHandler(g, r, runs))
	mux := http.NewServeMux()
	mux.Handle(path, h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, procedure string, body any, out any) int {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+procedure, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestWorkflowBuildGraphAndRun(t *testing.T) {
	g := graph.NewStore()
	run := &stubRunner{result: runner.Result{RunID: "r1", Success: true, Output: "a cat"}}
	srv := newTestServer(t, g, run, &stubRuns{})

	var node NodeView
	require.Equal(t, http.StatusOK, call(t, srv, AddNodeProcedure, AddNodeRequest{ID: "p", Kind: "textNode", Text: "describe"}, &node))
	assert.Equal(t, "text", node.Kind)
	require.NotNil(t, node.Value)
	assert.Equal(t, "describe", node.Value.Text)

	require.Equal(t, http.StatusOK, call(t, srv, AddNodeProcedure, AddNodeRequest{ID: "img", Kind: "image", Media: "data:image/png;base64,aGk="}, &node))
	assert.Equal(t, "image/png", node.Value.MIMEType)

	require.Equal(t, http.StatusOK, call(t, srv, AddNodeProcedure, AddNodeRequest{ID: "w", Kind: "llm"}, &node))
	assert.Nil(t, node.Value)

	require.Equal(t, http.StatusOK, call(t, srv, AddEdgeProcedure, EdgeRequest{Source: "p", Target: "w", TargetSlot: "user"}, nil))
	require.Equal(t, http.StatusOK, call(t, srv, AddEdgeProcedure, EdgeRequest{Source: "img", Target: "w", TargetSlot: "images"}, nil))

	var view GraphView
	require.Equal(t, http.StatusOK, call(t, srv, GetGraphProcedure, Empty{}, &view))
	require.Len(t, view.Nodes, 3)
	assert.Equal(t, "img", view.Nodes[0].ID)
	assert.Len(t, view.Edges, 2)

	var res runner.Result
	require.Equal(t, http.StatusOK, call(t, srv, RunNodeProcedure, NodeRequest{ID: "w"}, &res))
	assert.True(t, res.Success)
	assert.Equal(t, "a cat", res.Output)
	run.mu.Lock()
	defer run.mu.Unlock()
	assert.Equal(t, []string{"w"}, run.called)
}

func TestWorkflowRunFailureIsNotAnRPCError(t *testing.T) {
	g := graph.NewStore()
	run := &stubRunner{result: runner.Result{Error: runner.KindNoInput, Message: "No input"}}
	srv := newTestServer(t, g, run, nil)

	var res runner.Result
	require.Equal(t, http.StatusOK, call(t, srv, RunNodeProcedure, NodeRequest{ID: "w"}, &res))
	assert.False(t, res.Success)
	assert.Equal(t, runner.KindNoInput, res.Error)
}

func TestWorkflowErrorCodes(t *testing.T) {
	g := graph.NewStore()
	srv := newTestServer(t, g, &stubRunner{}, nil)

	assert.Equal(t, http.StatusBadRequest, call(t, srv, AddNodeProcedure, AddNodeRequest{Kind: "text"}, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, srv, AddNodeProcedure, AddNodeRequest{ID: "x", Kind: "spreadsheet"}, nil))
	require.Equal(t, http.StatusOK, call(t, srv, AddNodeProcedure, AddNodeRequest{ID: "x", Kind: "text"}, nil))
	assert.Equal(t, http.StatusConflict, call(t, srv, AddNodeProcedure, AddNodeRequest{ID: "x", Kind: "text"}, nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, GetNodeProcedure, NodeRequest{ID: "missing"}, nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, AddEdgeProcedure, EdgeRequest{Source: "x", Target: "missing", TargetSlot: "user"}, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, srv, AddEdgeProcedure, EdgeRequest{Source: "x", Target: "x", TargetSlot: "user"}, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, srv, SetNodeMediaProcedure, SetNodeMediaRequest{ID: "x", Ref: "data:image/png,notbase64"}, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, srv, ListRunsProcedure, ListRunsRequest{Limit: 1000}, nil))
}

func TestWorkflowSetValuesAndListRuns(t *testing.T) {
	g := graph.NewStore()
	require.NoError(t, g.AddNode(graph.Node{ID: "t", Kind: graph.KindText}))
	require.NoError(t, g.AddNode(graph.Node{ID: "i", Kind: graph.KindImage}))
	runs := &stubRuns{recs: []runner.Record{{RunID: "r1", NodeID: "w"}, {RunID: "r2", NodeID: "other"}}}
	srv := newTestServer(t, g, &stubRunner{}, runs)

	var node NodeView
	require.Equal(t, http.StatusOK, call(t, srv, SetNodeTextProcedure, SetNodeTextRequest{ID: "t", Text: "hello"}, &node))
	assert.Equal(t, "hello", node.Value.Text)

	require.Equal(t, http.StatusOK, call(t, srv, SetNodeMediaProcedure, SetNodeMediaRequest{ID: "i", Ref: "https://cdn.example/cat.jpg"}, &node))
	assert.Equal(t, "https://cdn.example/cat.jpg", node.Value.URL)

	var removed RemoveEdgeResponse
	require.Equal(t, http.StatusOK, call(t, srv, RemoveEdgeProcedure, EdgeRequest{Source: "t", Target: "i", TargetSlot: "user"}, &removed))
	assert.False(t, removed.Removed)

	var list ListRunsResponse
	require.Equal(t, http.StatusOK, call(t, srv, ListRunsProcedure, ListRunsRequest{NodeID: "w"}, &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, "r1", list.Runs[0].RunID)

	require.Equal(t, http.StatusOK, call(t, srv, RemoveNodeProcedure, NodeRequest{ID: "t"}, nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, GetNodeProcedure, NodeRequest{ID: "t"}, nil))
}

func TestToGraphErrorMatchesSentinels(t *testing.T) {
	cases := []struct {
		err  error
		code connect.Code
	}{
		{fmt.Errorf("%w: a", graph.ErrNotFound), connect.CodeNotFound},
		{fmt.Errorf("%w: a", graph.ErrDuplicate), connect.CodeAlreadyExists},
		{fmt.Errorf("%w: target slot is required", graph.ErrInvalid), connect.CodeInvalidArgument},
		// wording alone does not make an error a client error
		{errors.New("invalid state: store is nil"), connect.CodeInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, connect.CodeOf(toGraphError(tc.err)), tc.err.Error())
	}
}
