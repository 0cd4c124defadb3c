package graph

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrNotFound  = errors.New("graph: node not found")
	ErrDuplicate = errors.New("graph: node already exists")
	ErrInvalid   = errors.New("graph: invalid argument")
)

// Store is the in-memory node/edge collection shared by every run.
// All methods are safe for concurrent use; a node's value is replaced
// under the write lock so readers never observe a partial update.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]Node
	edges []Edge
}

func NewStore() *Store {
	return &Store{nodes: make(map[string]Node)}
}

func (s *Store) AddNode(n Node) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	n.ID = strings.TrimSpace(n.ID)
	if n.ID == "" {
		return fmt.Errorf("%w: node id is required", ErrInvalid)
	}
	kind, err := ParseKind(string(n.Kind))
	if err != nil {
		return err
	}
	n.Kind = kind
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[n.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, n.ID)
	}
	s.nodes[n.ID] = n
	return nil
}

// RemoveNode deletes the node and every edge touching it.
func (s *Store) RemoveNode(id string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.nodes, id)
	kept := s.edges[:0]
	for _, e := range s.edges {
		if e.Source == id || e.Target == id {
			continue
		}
		kept = append(kept, e)
	}
	// clear the tail so removed edges are not retained by the backing array
	for i := len(kept); i < len(s.edges); i++ {
		s.edges[i] = Edge{}
	}
	s.edges = kept
	return nil
}

// AddEdge appends an edge. Both endpoints must exist.
func (s *Store) AddEdge(e Edge) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	e.Source = strings.TrimSpace(e.Source)
	e.Target = strings.TrimSpace(e.Target)
	e.TargetSlot = strings.TrimSpace(e.TargetSlot)
	if e.TargetSlot == "" {
		return fmt.Errorf("%w: target slot is required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[e.Source]; !ok {
		return fmt.Errorf("%w: source %s", ErrNotFound, e.Source)
	}
	if _, ok := s.nodes[e.Target]; !ok {
		return fmt.Errorf("%w: target %s", ErrNotFound, e.Target)
	}
	s.edges = append(s.edges, e)
	return nil
}

// RemoveEdge deletes the first edge equal to e. It reports whether one was removed.
func (s *Store) RemoveEdge(e Edge) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.edges {
		if cur == e {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) Node(id string) (Node, error) {
	if s == nil {
		return Node{}, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[strings.TrimSpace(id)]
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return n, nil
}

// FindEdges returns the edges bound to targetID's slot in creation order.
func (s *Store) FindEdges(targetID, slot string) []Edge {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Edge
	for _, e := range s.edges {
		if e.Target == targetID && e.TargetSlot == slot {
			out = append(out, e)
		}
	}
	return out
}

// SetValue overwrites the node's produced value. Nothing downstream is recomputed.
func (s *Store) SetValue(id string, v Value) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	n.Value = v
	s.nodes[id] = n
	return nil
}

func (s *Store) Nodes() []Node {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out
}

func (s *Store) Edges() []Edge {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Edge(nil), s.edges...)
}
