package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-relay/internal/observability"
)

// InboundHandler consumes raw frames read from a client channel. Frames
// from one channel are delivered sequentially, in the order received.
type InboundHandler interface {
	HandleInbound(ctx context.Context, userID string, data []byte)
}

// RelayWebSocketHandler upgrades client connections and feeds their
// inbound frames to the relay engine.
type RelayWebSocketHandler struct {
	registry *Registry
	handler  InboundHandler
}

// NewRelayWebSocketHandler constructs a RelayWebSocketHandler.
func NewRelayWebSocketHandler(registry *Registry, handler InboundHandler) *RelayWebSocketHandler {
	return &RelayWebSocketHandler{registry: registry, handler: handler}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, attaches it under the caller's identity
// and runs the read loop until the channel closes.
func (h *RelayWebSocketHandler) Handle(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user id"})
		return
	}

	ctx, span := otel.Tracer("chat-relay/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.registry.Attach(userID, conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	publishConnEvent(ctx, "ws_connect", info, "")

	// The request context dies with the handler; the read loop must not.
	go h.readLoop(context.WithoutCancel(ctx), conn, info)
}

func (h *RelayWebSocketHandler) readLoop(ctx context.Context, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.registry.Detach(conn)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		publishConnEvent(ctx, "ws_disconnect", info, closeReason)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				publishConnEvent(ctx, "ws_error", info, closeReason)
			}
			return
		}
		h.handler.HandleInbound(ctx, info.UserID, data)
	}
}

func publishConnEvent(ctx context.Context, event string, info ConnInfo, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.relay", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
