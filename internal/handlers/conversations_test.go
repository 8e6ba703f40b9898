package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/aggregator"
	"chat-relay/internal/mocks"
	"chat-relay/internal/models"
)

func setupConversationRouter(repo *mocks.MessageRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewConversationHandler(aggregator.New(repo))
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "1")
		c.Next()
	})
	r.GET("/conversations", handler.ListConversations)
	r.GET("/conversations/:peer_id/messages", handler.GetHistory)
	r.GET("/unread", handler.GetUnread)
	return r
}

func TestListConversationsSuccess(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupConversationRouter(repo)

	repo.On("ListConversations", mock.Anything, "1").
		Return([]models.Conversation{{PeerID: "3", UnreadCount: 1}, {PeerID: "5"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 2)
	require.Equal(t, "3", resp.Conversations[0].PeerID)
	repo.AssertExpectations(t)
}

func TestListConversationsRepoError(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupConversationRouter(repo)

	repo.On("ListConversations", mock.Anything, "1").
		Return(([]models.Conversation)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	repo.AssertExpectations(t)
}

func TestGetHistorySuccess(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupConversationRouter(repo)

	repo.On("FindBetween", mock.Anything, "1", "2").
		Return([]models.ChatMessage{{ID: 1, SenderID: "2", RecipientID: "1", Body: "hi"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/2/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	require.Equal(t, "hi", resp.Messages[0].Body)
	repo.AssertExpectations(t)
}

func TestGetHistoryRepoError(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupConversationRouter(repo)

	repo.On("FindBetween", mock.Anything, "1", "2").
		Return(([]models.ChatMessage)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/2/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	repo.AssertExpectations(t)
}

func TestGetUnreadSuccess(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupConversationRouter(repo)

	repo.On("CountUnreadBySender", mock.Anything, "1").
		Return(map[string]int{"2": 2}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/unread", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.UnreadSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 2, resp.TotalUnread)
	require.Equal(t, map[string]int{"2": 2}, resp.UnreadCounts)
	repo.AssertExpectations(t)
}
