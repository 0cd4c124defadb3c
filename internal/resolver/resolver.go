// Package resolver turns a worker node's declared input slots into the
// values currently produced by the nodes wired into them.
package resolver

import (
	"errors"
	"fmt"

	"nodeflow/internal/graph"
)

var ErrNoInput = errors.New("resolver: nothing to send")

// Slot names of the generation worker.
const (
	SlotSystem = "system"
	SlotUser   = "user"
	SlotImages = "images"
)

// SlotSpec declares one input position and whether it accepts many edges.
type SlotSpec struct {
	Name       string
	Collection bool
}

// WorkerSlots is the slot set of a generation worker node.
var WorkerSlots = []SlotSpec{
	{Name: SlotSystem},
	{Name: SlotUser},
	{Name: SlotImages, Collection: true},
}

// GraphReader is the part of the graph store the resolver needs.
type GraphReader interface {
	Node(id string) (graph.Node, error)
	FindEdges(targetID, slot string) []graph.Edge
}

// Inputs holds resolved slot values. Absent single slots have no entry.
type Inputs struct {
	single map[string]graph.Value
	multi  map[string][]graph.Value
}

// Value returns a single slot's value.
func (in Inputs) Value(slot string) (graph.Value, bool) {
	v, ok := in.single[slot]
	return v, ok
}

// Values returns a collection slot's values in edge order.
func (in Inputs) Values(slot string) []graph.Value {
	return in.multi[slot]
}

// Text returns a single slot's text, or "" when absent or not text.
func (in Inputs) Text(slot string) string {
	if t, ok := in.single[slot].(graph.Text); ok {
		return string(t)
	}
	return ""
}

// Media returns the media references of a collection slot, skipping
// values of any other variant.
func (in Inputs) Media(slot string) []graph.MediaRef {
	vals := in.multi[slot]
	out := make([]graph.MediaRef, 0, len(vals))
	for _, v := range vals {
		if m, ok := v.(graph.MediaRef); ok {
			out = append(out, m)
		}
	}
	return out
}

// Resolve reads the currently stored values feeding workerID's slots.
// It never blocks on I/O and an unbound slot is not an error.
func Resolve(g GraphReader, workerID string, specs []SlotSpec) (Inputs, error) {
	if g == nil {
		return Inputs{}, fmt.Errorf("graph is nil")
	}
	if _, err := g.Node(workerID); err != nil {
		return Inputs{}, err
	}
	in := Inputs{
		single: make(map[string]graph.Value),
		multi:  make(map[string][]graph.Value),
	}
	for _, spec := range specs {
		edges := g.FindEdges(workerID, spec.Name)
		if spec.Collection {
			vals := make([]graph.Value, 0, len(edges))
			for _, e := range edges {
				if v, ok := sourceValue(g, e); ok {
					vals = append(vals, v)
				}
			}
			in.multi[spec.Name] = vals
			continue
		}
		// first discovered edge wins on a single-valued slot
		if len(edges) == 0 {
			continue
		}
		if v, ok := sourceValue(g, edges[0]); ok {
			in.single[spec.Name] = v
		}
	}
	return in, nil
}

func sourceValue(g GraphReader, e graph.Edge) (graph.Value, bool) {
	n, err := g.Node(e.Source)
	if err != nil || !n.HasValue() {
		return nil, false
	}
	return n.Value, true
}
