package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-relay/internal/aggregator"
)

// ConversationHandler serves the read side of the relay: conversation
// lists, pair histories and unread counts.
type ConversationHandler struct {
	aggregator *aggregator.Aggregator
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(agg *aggregator.Aggregator) *ConversationHandler {
	return &ConversationHandler{aggregator: agg}
}

// ListConversations returns the caller's conversations, most recent first.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.GetString("userID")

	convs, err := h.aggregator.Conversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// GetHistory returns the full message history between the caller and a peer.
func (h *ConversationHandler) GetHistory(c *gin.Context) {
	peerID := c.Param("peer_id")
	if peerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing peer id"})
		return
	}

	userID := c.GetString("userID")
	msgs, err := h.aggregator.History(c.Request.Context(), userID, peerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GetUnread returns the caller's unread counts grouped by sender.
func (h *ConversationHandler) GetUnread(c *gin.Context) {
	userID := c.GetString("userID")

	summary, err := h.aggregator.UnreadSummary(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unread counts"})
		return
	}

	c.JSON(http.StatusOK, summary)
}
