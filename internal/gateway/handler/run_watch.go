package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"nodeflow/internal/runner"
)

const (
	runWSWriteWait = 10 * time.Second
	runWSPongWait  = 60 * time.Second
	runWSPingEvery = (runWSPongWait * 9) / 10
)

var runWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// EventSource hands out run event subscriptions.
type EventSource interface {
	Subscribe(nodeID string, size int) (<-chan runner.Event, func())
}

// RunWatchHandler streams run events over a websocket.
type RunWatchHandler struct {
	events EventSource
}

func NewRunWatchHandler(events EventSource) *RunWatchHandler {
	return &RunWatchHandler{events: events}
}

type runWSInbound struct {
	Type string `json:"type"`
}

type runWSOutbound struct {
	Type   string        `json:"type"`
	NodeID string        `json:"nodeId,omitempty"`
	Event  *runner.Event `json:"event,omitempty"`
}

// HandleRunsWS serves /ws/runs?node_id=. Without node_id every run is streamed.
func (h *RunWatchHandler) HandleRunsWS(w http.ResponseWriter, r *http.Request) {
	nodeID := strings.TrimSpace(r.URL.Query().Get("node_id"))

	conn, err := runWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(runWSPongWait)); err != nil {
		log.Printf("run ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(runWSPongWait))
	})

	events, unsubscribe := h.events.Subscribe(nodeID, 32)
	defer unsubscribe()

	writeCh := make(chan runWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(runWSPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(runWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(runWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(runWSOutbound{Type: "run_event", NodeID: ev.NodeID, Event: &ev}); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(runWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	pushRunWS(writeCh, runWSOutbound{Type: "subscribed", NodeID: nodeID})

	for {
		var in runWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushRunWS(writeCh, runWSOutbound{Type: "pong"})
		default:
			pushRunWS(writeCh, runWSOutbound{Type: "error", NodeID: nodeID})
		}
	}
}

// pushRunWS enqueues out, dropping the oldest queued message when full.
func pushRunWS(writeCh chan runWSOutbound, out runWSOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
