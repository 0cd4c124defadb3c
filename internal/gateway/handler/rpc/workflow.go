package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"

	"nodeflow/internal/graph"
	"nodeflow/internal/media"
	"nodeflow/internal/runner"
)

const WorkflowServiceName = "nodeflow.v1.WorkflowService"

const (
	AddNodeProcedure      = "/" + WorkflowServiceName + "/AddNode"
	RemoveNodeProcedure   = "/" + WorkflowServiceName + "/RemoveNode"
	AddEdgeProcedure      = "/" + WorkflowServiceName + "/AddEdge"
	RemoveEdgeProcedure   = "/" + WorkflowServiceName + "/RemoveEdge"
	SetNodeTextProcedure  = "/" + WorkflowServiceName + "/SetNodeText"
	SetNodeMediaProcedure = "/" + WorkflowServiceName + "/SetNodeMedia"
	GetNodeProcedure      = "/" + WorkflowServiceName + "/GetNode"
	GetGraphProcedure     = "/" + WorkflowServiceName + "/GetGraph"
	RunNodeProcedure      = "/" + WorkflowServiceName + "/RunNode"
	ListRunsProcedure     = "/" + WorkflowServiceName + "/ListRuns"
)

type GraphStore interface {
	AddNode(n graph.Node) error
	RemoveNode(id string) error
	AddEdge(e graph.Edge) error
	RemoveEdge(e graph.Edge) bool
	Node(id string) (graph.Node, error)
	SetValue(id string, v graph.Value) error
	Nodes() []graph.Node
	Edges() []graph.Edge
}

type Runner interface {
	Run(ctx context.Context, workerID string) runner.Result
}

type RunLister interface {
	List(ctx context.Context, nodeID string, limit int) ([]runner.Record, error)
}

// WorkflowHandler edits the graph and triggers worker runs.
type WorkflowHandler struct {
	graph    GraphStore
	runner   Runner
	runs     RunLister
	validate *validator.Validate
}

func NewWorkflowHandler(g GraphStore, r Runner, runs RunLister) *WorkflowHandler {
	return &WorkflowHandler{
		graph:    g,
		runner:   r,
		runs:     runs,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// NewWorkflowServiceHandler mounts every procedure under one path prefix.
func NewWorkflowServiceHandler(h *WorkflowHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	mux := http.NewServeMux()
	mux.Handle(AddNodeProcedure, connect.NewUnaryHandler(AddNodeProcedure, h.AddNode, opts...))
	mux.Handle(RemoveNodeProcedure, connect.NewUnaryHandler(RemoveNodeProcedure, h.RemoveNode, opts...))
	mux.Handle(AddEdgeProcedure, connect.NewUnaryHandler(AddEdgeProcedure, h.AddEdge, opts...))
	mux.Handle(RemoveEdgeProcedure, connect.NewUnaryHandler(RemoveEdgeProcedure, h.RemoveEdge, opts...))
	mux.Handle(SetNodeTextProcedure, connect.NewUnaryHandler(SetNodeTextProcedure, h.SetNodeText, opts...))
	mux.Handle(SetNodeMediaProcedure, connect.NewUnaryHandler(SetNodeMediaProcedure, h.SetNodeMedia, opts...))
	mux.Handle(GetNodeProcedure, connect.NewUnaryHandler(GetNodeProcedure, h.GetNode, opts...))
	mux.Handle(GetGraphProcedure, connect.NewUnaryHandler(GetGraphProcedure, h.GetGraph, opts...))
	mux.Handle(RunNodeProcedure, connect.NewUnaryHandler(RunNodeProcedure, h.RunNode, opts...))
	mux.Handle(ListRunsProcedure, connect.NewUnaryHandler(ListRunsProcedure, h.ListRuns, opts...))
	return "/" + WorkflowServiceName + "/", mux
}

func (h *WorkflowHandler) AddNode(_ context.Context, req *connect.Request[AddNodeRequest]) (*connect.Response[NodeView], error) {
	if err := h.check(req.Msg); err != nil {
		return nil, err
	}
	kind, err := graph.ParseKind(req.Msg.Kind)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	n := graph.Node{ID: req.Msg.ID, Kind: kind, Model: strings.TrimSpace(req.Msg.Model)}
	switch {
	case req.Msg.Media != "":
		ref, err := media.ParseRef(req.Msg.Media)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		n.Value = ref
	case req.Msg.Text != "":
		n.Value = graph.Text(req.Msg.Text)
	}
	if err := h.graph.AddNode(n); err != nil {
		return nil, toGraphError(err)
	}
	stored, err := h.graph.Node(n.ID)
	if err != nil {
		return nil, toGraphError(err)
	}
	return connect.NewResponse(ptr(toNodeView(stored))), nil
}

func (h *WorkflowHandler) RemoveNode(_ context.Context, req *connect.Request[NodeRequest]) (*connect.Response[Empty], error) {
	if err := h.check(req.Msg); err != nil {
		return nil, err
	}
	if err := h.graph.RemoveNode(req.Msg.ID); err != nil {
		return nil, toGraphError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (h *WorkflowHandler) AddEdge(_ context.Context, req *connect.Request[EdgeRequest]) (*connect.Response[EdgeView], error) {
	if err := h.check(req.Msg); err != nil {
		return nil, err
	}
	e := graph.Edge{Source: req.Msg.Source, Target: req.Msg.Target, TargetSlot: req.Msg.TargetSlot}
	if err := h.graph.AddEdge(e); err != nil {
		return nil, toGraphError(err)
	}
	return connect.NewResponse(ptr(toEdgeView(e))), nil
}

func (h *WorkflowHandler) RemoveEdge(_ context.Context, req *connect.Request[EdgeRequest]) (*connect.Response[RemoveEdgeResponse], error) {
	if err := h.check(req.Msg); err != nil {
		return nil, err
	}
	removed := h.graph.RemoveEdge(graph.Edge{Source: req.Msg.Source, Target: req.Msg.Target, TargetSlot: req.Msg.TargetSlot})
	return connect.NewResponse(&RemoveEdgeResponse{Removed: removed}), nil
}

func (h *WorkflowHandler) SetNodeText(_ context.Context, req *connect.Request[SetNodeTextRequest]) (*connect.Response[NodeView], error) {
	if err := h.check(req.Msg); err != nil {
		return nil, err
	}
	return h.setValue(req.Msg.ID, graph.Text(req.Msg.Text))
}

func (h *WorkflowHandler) SetNodeMedia(_ context.Context, req *connect.Request[SetNodeMediaRequest]) (*connect.Response[NodeView], error) {
	if err := h.check(req.Msg); err != nil {
		return nil, err
	}
	ref, err := media.ParseRef(req.Msg.Ref)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return h.setValue(req.Msg.ID, ref)
}

func (h *WorkflowHandler) GetNode(_ context.Context, req *connect.Request[NodeRequest]) (*connect.Response[NodeView], error) {
	if err := h.check(req.Msg); err != nil {
		return nil, err
	}
	n, err := h.graph.Node(req.Msg.ID)
	if err != nil {
		return nil, toGraphError(err)
	}
	return connect.NewResponse(ptr(toNodeView(n))), nil
}

func (h *WorkflowHandler) GetGraph(_ context.Context, _ *connect.Request[Empty]) (*connect.Response[GraphView], error) {
	nodes := h.graph.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	out := &GraphView{Nodes: make([]NodeView, 0, len(nodes)), Edges: []EdgeView{}}
	for _, n := range nodes {
		out.Nodes = append(out.Nodes, toNodeView(n))
	}
	for _, e := range h.graph.Edges() {
		out.Edges = append(out.Edges, toEdgeView(e))
	}
	return connect.NewResponse(out), nil
}

// RunNode blocks until the run settles. Run failures are reported in the
// result body, not as RPC errors.
func (h *WorkflowHandler) RunNode(ctx context.Context, req *connect.Request[NodeRequest]) (*connect.Response[runner.Result], error) {
	if err := h.check(req.Msg); err != nil {
		return nil, err
	}
	if h.runner == nil {
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("runner is not configured"))
	}
	res := h.runner.Run(ctx, strings.TrimSpace(req.Msg.ID))
	return connect.NewResponse(&res), nil
}

func (h *WorkflowHandler) ListRuns(ctx context.Context, req *connect.Request[ListRunsRequest]) (*connect.Response[ListRunsResponse], error) {
	if err := h.check(req.Msg); err != nil {
		return nil, err
	}
	if h.runs == nil {
		return connect.NewResponse(&ListRunsResponse{Runs: []runner.Record{}}), nil
	}
	runs, err := h.runs.List(ctx, req.Msg.NodeID, req.Msg.Limit)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("list runs failed: %w", err))
	}
	return connect.NewResponse(&ListRunsResponse{Runs: runs}), nil
}

func (h *WorkflowHandler) setValue(id string, v graph.Value) (*connect.Response[NodeView], error) {
	id = strings.TrimSpace(id)
	if err := h.graph.SetValue(id, v); err != nil {
		return nil, toGraphError(err)
	}
	n, err := h.graph.Node(id)
	if err != nil {
		return nil, toGraphError(err)
	}
	return connect.NewResponse(ptr(toNodeView(n))), nil
}

func (h *WorkflowHandler) check(msg any) error {
	if msg == nil {
		return connect.NewError(connect.CodeInvalidArgument, errors.New("request is required"))
	}
	if err := h.validate.Struct(msg); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	return nil
}

func toGraphError(err error) error {
	switch {
	case errors.Is(err, graph.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, graph.ErrDuplicate):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, graph.ErrInvalid):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		return connect.NewError(connect.CodeInternal, fmt.Errorf("graph update failed: %w", err))
	}
}

func ptr[T any](v T) *T { return &v }
