// Package events fans run events out to live watchers.
package events

import (
	"strings"
	"sync"

	"nodeflow/internal/runner"
)

const defaultBuffer = 16

type subscriber struct {
	nodeID string
	ch     chan runner.Event
}

// Broker implements runner.Emitter. Slow watchers lose events; a run never
// waits on a watcher.
type Broker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscriber
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int]subscriber)}
}

// Subscribe registers a watcher for nodeID, or for every node when nodeID is
// empty. The returned func unsubscribes and closes the channel.
func (b *Broker) Subscribe(nodeID string, size int) (<-chan runner.Event, func()) {
	if size <= 0 {
		size = defaultBuffer
	}
	ch := make(chan runner.Event, size)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscriber{nodeID: strings.TrimSpace(nodeID), ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Broker) Emit(ev runner.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.nodeID != "" && s.nodeID != ev.NodeID {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// Subscribers reports the number of active watchers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
