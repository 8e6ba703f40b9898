package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedEvent = errors.New("malformed inbound event")

// Event is the decoded form of one inbound frame. Frames are validated
// here, at the boundary, before anything reaches the engine.
type Event interface {
	inboundEvent()
}

// SendEvent asks the relay to deliver Message from From to To.
type SendEvent struct {
	From    string
	To      string
	Message string
}

// MarkSeenEvent asserts that From has now seen every message To sent them.
// Field naming is from the caller's perspective.
type MarkSeenEvent struct {
	From string
	To   string
}

func (SendEvent) inboundEvent()     {}
func (MarkSeenEvent) inboundEvent() {}

type envelope struct {
	Type    string `json:"type"`
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// DecodeInbound maps a raw frame to a known event shape. Send frames may
// omit the type field; clients historically sent them bare.
func DecodeInbound(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.From == "" || env.To == "" {
		return nil, fmt.Errorf("%w: missing from or to", ErrMalformedEvent)
	}
	if env.From == env.To {
		return nil, fmt.Errorf("%w: sender and recipient are the same", ErrMalformedEvent)
	}

	switch env.Type {
	case "mark_seen":
		return MarkSeenEvent{From: env.From, To: env.To}, nil
	case "", "new_message":
		if env.Message == "" {
			return nil, fmt.Errorf("%w: empty message", ErrMalformedEvent)
		}
		return SendEvent{From: env.From, To: env.To, Message: env.Message}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, env.Type)
	}
}
