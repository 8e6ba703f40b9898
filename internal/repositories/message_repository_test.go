package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/internal/models"
)

func TestAppendValidation(t *testing.T) {
	repo := NewMessageRepo(nil)

	cases := map[string]struct {
		sender, recipient, body string
	}{
		"empty sender":    {"", "2", "hi"},
		"empty recipient": {"1", "", "hi"},
		"empty body":      {"1", "2", ""},
		"self messaging":  {"1", "1", "hi"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := repo.Append(context.Background(), tc.sender, tc.recipient, tc.body)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func msgAt(id int64, sender, recipient, body string, seen bool, at time.Time) models.ChatMessage {
	return models.ChatMessage{ID: id, SenderID: sender, RecipientID: recipient, Body: body, Seen: seen, CreatedAt: at}
}

func TestGroupConversationsOrdering(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// "5" wrote twice, then "3" wrote once; "3" has the latest activity.
	msgs := []models.ChatMessage{
		msgAt(1, "5", "1", "first", false, base),
		msgAt(2, "1", "5", "reply", true, base.Add(time.Minute)),
		msgAt(3, "3", "1", "hello", false, base.Add(2*time.Minute)),
	}

	convs := groupConversations("1", msgs)
	require.Len(t, convs, 2)
	require.Equal(t, "3", convs[0].PeerID)
	require.Equal(t, "5", convs[1].PeerID)
}

func TestGroupConversationsUnreadCounts(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	msgs := []models.ChatMessage{
		msgAt(1, "2", "1", "unseen", false, base),
		msgAt(2, "2", "1", "seen already", true, base.Add(time.Second)),
		msgAt(3, "1", "2", "own message never counts", false, base.Add(2*time.Second)),
	}

	convs := groupConversations("1", msgs)
	require.Len(t, convs, 1)
	require.Equal(t, "2", convs[0].PeerID)
	require.Equal(t, 1, convs[0].UnreadCount)
	require.Len(t, convs[0].Messages, 3)
}

func TestGroupConversationsKeepsAscendingHistory(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	msgs := []models.ChatMessage{
		msgAt(1, "1", "2", "a", true, base),
		msgAt(2, "2", "1", "b", false, base.Add(time.Second)),
		msgAt(3, "1", "2", "c", false, base.Add(2*time.Second)),
	}

	convs := groupConversations("1", msgs)
	require.Len(t, convs, 1)
	bodies := make([]string, 0, len(convs[0].Messages))
	for _, m := range convs[0].Messages {
		bodies = append(bodies, m.Body)
	}
	require.Equal(t, []string{"a", "b", "c"}, bodies)
}

func TestGroupConversationsEmpty(t *testing.T) {
	require.Empty(t, groupConversations("1", nil))
}
