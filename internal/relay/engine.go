package relay

import (
	"context"
	"log"

	"chat-relay/internal/models"
	"chat-relay/internal/observability"
	"chat-relay/internal/repositories"
	"chat-relay/internal/ws"
)

// Engine interprets inbound chat events: it persists them through the
// message store and dispatches outbound events through the registry.
// Persistence always happens before the delivery attempt, and a failed
// delivery never rolls persistence back.
type Engine struct {
	registry *ws.Registry
	messages repositories.MessageRepository
}

// NewEngine constructs an Engine.
func NewEngine(registry *ws.Registry, messages repositories.MessageRepository) *Engine {
	return &Engine{registry: registry, messages: messages}
}

// HandleInbound decodes and dispatches one frame from a client channel.
// Malformed frames are logged and dropped; the channel stays open and the
// sender gets no response.
func (e *Engine) HandleInbound(ctx context.Context, userID string, data []byte) {
	event, err := DecodeInbound(data)
	if err != nil {
		log.Printf("dropping inbound event user=%s: %v", userID, err)
		observability.IncEventDropped("malformed")
		return
	}

	switch ev := event.(type) {
	case SendEvent:
		e.handleSend(ctx, ev)
	case MarkSeenEvent:
		e.handleMarkSeen(ctx, ev)
	}
}

func (e *Engine) handleSend(ctx context.Context, ev SendEvent) {
	msg, err := e.messages.Append(ctx, ev.From, ev.To, ev.Message)
	if err != nil {
		// Never deliver a message that failed to persist.
		log.Printf("store message from=%s to=%s: %v", ev.From, ev.To, err)
		observability.IncEventDropped("persistence")
		return
	}

	delivered := e.registry.Send(ev.To, models.NewMessageEvent{
		Type:      "new_message",
		From:      msg.SenderID,
		Message:   msg.Body,
		ID:        msg.ID,
		CreatedAt: msg.CreatedAt,
	})
	if delivered {
		observability.IncMessageRelayed("delivered")
	} else {
		// Offline recipient is steady state; the message stays queryable.
		observability.IncMessageRelayed("stored_only")
	}
}

func (e *Engine) handleMarkSeen(ctx context.Context, ev MarkSeenEvent) {
	if _, err := e.messages.MarkSeen(ctx, ev.To, ev.From); err != nil {
		log.Printf("mark seen by=%s sender=%s: %v", ev.From, ev.To, err)
		observability.IncEventDropped("persistence")
		return
	}

	// Receipt goes back to the original sender so their UI can flip
	// unseen indicators. Best effort, like any other delivery.
	e.registry.Send(ev.To, models.MessagesSeenEvent{Type: "messages_seen", By: ev.From})
}
