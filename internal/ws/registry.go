package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/internal/observability"
)

// Channel is the write side of one connected client. *websocket.Conn
// satisfies it; tests substitute fakes.
type Channel interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type entry struct {
	ch   Channel
	info ConnInfo
}

// Registry maps user identities to their single active channel. The
// transport layer owns channel lifecycles; the registry only holds
// references and must be told about opens and closes.
type Registry struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Attach registers the channel under userID. A reconnect replaces the
// prior entry; the superseded channel is not closed here.
func (r *Registry) Attach(userID string, ch Channel, info ConnInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[userID] = entry{ch: ch, info: info}
}

// Detach removes whatever entry currently holds this exact channel.
// A superseded connection detaching late cannot evict its replacement.
func (r *Registry) Detach(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, e := range r.entries {
		if e.ch == ch {
			delete(r.entries, userID)
			return
		}
	}
}

// Send marshals event and writes it to the user's channel. Returns false
// when the user has no active channel; delivery is best-effort and the
// caller is expected to rely on the store for anything durable. A write
// error closes and detaches the failing channel without affecting others.
func (r *Registry) Send(userID string, event any) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal outbound event: %v", err)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	if !ok {
		return false
	}
	if err := e.ch.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("websocket write error user=%s: %v", userID, err)
		e.ch.Close()
		delete(r.entries, userID)
		r.publishWriteError(e.info, err)
		return false
	}
	return true
}

// Connected reports whether the user currently has a channel attached.
func (r *Registry) Connected(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[userID]
	return ok
}

func (r *Registry) publishWriteError(info ConnInfo, err error) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.relay", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("ws_error")
}
