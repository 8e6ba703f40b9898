package ws_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/mocks"
	"chat-relay/internal/models"
	"chat-relay/internal/relay"
	"chat-relay/internal/ws"
)

func startRelayServer(t *testing.T, repo *mocks.MessageRepositoryMock) (*httptest.Server, *ws.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := ws.NewRegistry()
	engine := relay.NewEngine(registry, repo)
	handler := ws.NewRelayWebSocketHandler(registry, engine)

	router := gin.New()
	router.GET("/ws/:user_id", handler.Handle)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, registry
}

func dialRelay(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitConnected(t *testing.T, registry *ws.Registry, userID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if registry.Connected(userID) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("user %s never attached", userID)
}

func TestRelayDeliversMessageToConnectedRecipient(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	srv, registry := startRelayServer(t, repo)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.On("Append", mock.Anything, "1", "2", "hi").
		Return(models.ChatMessage{ID: 9, SenderID: "1", RecipientID: "2", Body: "hi", CreatedAt: created}, nil).Once()

	sender := dialRelay(t, srv, "1")
	recipient := dialRelay(t, srv, "2")
	waitConnected(t, registry, "1")
	waitConnected(t, registry, "2")

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(`{"from":"1","to":"2","message":"hi"}`)))

	require.NoError(t, recipient.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := recipient.ReadMessage()
	require.NoError(t, err)

	var event models.NewMessageEvent
	require.NoError(t, json.Unmarshal(frame, &event))
	require.Equal(t, "new_message", event.Type)
	require.Equal(t, "1", event.From)
	require.Equal(t, "hi", event.Message)
	repo.AssertExpectations(t)
}

func TestRelayPropagatesSeenReceipt(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	srv, registry := startRelayServer(t, repo)

	repo.On("MarkSeen", mock.Anything, "1", "2").Return(int64(2), nil).Once()

	originalSender := dialRelay(t, srv, "1")
	reader := dialRelay(t, srv, "2")
	waitConnected(t, registry, "1")
	waitConnected(t, registry, "2")

	require.NoError(t, reader.WriteMessage(websocket.TextMessage, []byte(`{"type":"mark_seen","from":"2","to":"1"}`)))

	require.NoError(t, originalSender.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := originalSender.ReadMessage()
	require.NoError(t, err)

	var event models.MessagesSeenEvent
	require.NoError(t, json.Unmarshal(frame, &event))
	require.Equal(t, "messages_seen", event.Type)
	require.Equal(t, "2", event.By)
	repo.AssertExpectations(t)
}

func TestRelayDetachesOnDisconnect(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	srv, registry := startRelayServer(t, repo)

	conn := dialRelay(t, srv, "1")
	waitConnected(t, registry, "1")

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !registry.Connected("1") {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected user 1 to be detached after close")
}
