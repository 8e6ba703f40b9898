package aggregator

import (
	"context"

	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

// Aggregator derives read-side views (conversation lists, unread counts)
// from the message store.
type Aggregator struct {
	messages repositories.MessageRepository
}

// New constructs an Aggregator.
func New(messages repositories.MessageRepository) *Aggregator {
	return &Aggregator{messages: messages}
}

// UnreadSummary groups the user's unseen messages by sender and totals them.
func (a *Aggregator) UnreadSummary(ctx context.Context, userID string) (models.UnreadSummary, error) {
	counts, err := a.messages.CountUnreadBySender(ctx, userID)
	if err != nil {
		return models.UnreadSummary{}, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return models.UnreadSummary{UnreadCounts: counts, TotalUnread: total}, nil
}

// Conversations returns the user's conversations, most recent activity first.
func (a *Aggregator) Conversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	return a.messages.ListConversations(ctx, userID)
}

// History returns the full two-way message history with one counterpart.
func (a *Aggregator) History(ctx context.Context, userID, peerID string) ([]models.ChatMessage, error) {
	return a.messages.FindBetween(ctx, userID, peerID)
}
