package runner

import "time"

type EventType string

const (
	EventStarted    EventType = "started"
	EventDispatched EventType = "dispatched"
	EventCompleted  EventType = "completed"
	EventFailed     EventType = "failed"
)

// Event is a lifecycle notification for one run.
type Event struct {
	Type    EventType `json:"type"`
	RunID   string    `json:"runId"`
	NodeID  string    `json:"nodeId"`
	JobID   string    `json:"jobId,omitempty"`
	Output  string    `json:"output,omitempty"`
	Error   ErrorKind `json:"error,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Emitter receives run events. Implementations must not block.
type Emitter interface {
	Emit(event Event)
}

// noopEmitter discards all events.
type noopEmitter struct{}

func (noopEmitter) Emit(Event) {}

// ChannelEmitter sends events to a channel, dropping them when it is full.
type ChannelEmitter struct {
	Ch chan<- Event
}

func (e *ChannelEmitter) Emit(event Event) {
	select {
	case e.Ch <- event:
	default:
	}
}
