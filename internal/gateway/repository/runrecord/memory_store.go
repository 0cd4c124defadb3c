package runrecord

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"nodeflow/internal/runner"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]runner.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]runner.Record)}
}

func (s *MemoryStore) Save(_ context.Context, rec runner.Record) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	rec.RunID = strings.TrimSpace(rec.RunID)
	if rec.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.RunID] = rec
	return nil
}

// List returns records for nodeID, or for all nodes when nodeID is empty.
func (s *MemoryStore) List(_ context.Context, nodeID string, limit int) ([]runner.Record, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	nodeID = strings.TrimSpace(nodeID)
	s.mu.RLock()
	out := make([]runner.Record, 0, len(s.data))
	for _, rec := range s.data {
		if nodeID != "" && rec.NodeID != nodeID {
			continue
		}
		out = append(out, rec)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].RunID > out[j].RunID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
