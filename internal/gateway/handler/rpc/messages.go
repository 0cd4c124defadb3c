package rpc

import (
	"nodeflow/internal/graph"
	"nodeflow/internal/runner"
)

type AddNodeRequest struct {
	ID    string `json:"id" validate:"required,max=128"`
	Kind  string `json:"kind" validate:"required"`
	Model string `json:"model,omitempty"`
	// Text seeds a text node; Media seeds an image or video node.
	Text  string `json:"text,omitempty"`
	Media string `json:"media,omitempty"`
}

type NodeRequest struct {
	ID string `json:"id" validate:"required"`
}

type EdgeRequest struct {
	Source     string `json:"source" validate:"required"`
	Target     string `json:"target" validate:"required,nefield=Source"`
	TargetSlot string `json:"targetSlot" validate:"required"`
}

type SetNodeTextRequest struct {
	ID   string `json:"id" validate:"required"`
	Text string `json:"text"`
}

// SetNodeMediaRequest carries either a data URL or a remote URL.
type SetNodeMediaRequest struct {
	ID  string `json:"id" validate:"required"`
	Ref string `json:"ref" validate:"required"`
}

type ListRunsRequest struct {
	NodeID string `json:"nodeId,omitempty"`
	Limit  int    `json:"limit,omitempty" validate:"gte=0,lte=200"`
}

type Empty struct{}

type RemoveEdgeResponse struct {
	Removed bool `json:"removed"`
}

type ValueView struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	URL      string `json:"url,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type NodeView struct {
	ID    string     `json:"id"`
	Kind  string     `json:"kind"`
	Model string     `json:"model,omitempty"`
	Value *ValueView `json:"value,omitempty"`
}

type EdgeView struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	TargetSlot string `json:"targetSlot"`
}

type GraphView struct {
	Nodes []NodeView `json:"nodes"`
	Edges []EdgeView `json:"edges"`
}

type ListRunsResponse struct {
	Runs []runner.Record `json:"runs"`
}

func toNodeView(n graph.Node) NodeView {
	v := NodeView{ID: n.ID, Kind: string(n.Kind), Model: n.Model}
	switch val := n.Value.(type) {
	case graph.Text:
		v.Value = &ValueView{Type: "text", Text: string(val)}
	case graph.MediaRef:
		if url, ok := val.URL(); ok {
			v.Value = &ValueView{Type: "media", URL: url}
		} else if data, mime, ok := val.InlineData(); ok {
			v.Value = &ValueView{Type: "media", MIMEType: mime, Data: data}
		}
	}
	return v
}

func toEdgeView(e graph.Edge) EdgeView {
	return EdgeView{Source: e.Source, Target: e.Target, TargetSlot: e.TargetSlot}
}
