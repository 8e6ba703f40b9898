package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"chat-relay/internal/models"
)

var ErrValidation = errors.New("invalid message")

// MessageRepository defines the durable store backing the relay.
type MessageRepository interface {
	Append(ctx context.Context, senderID, recipientID, body string) (models.ChatMessage, error)
	FindBetween(ctx context.Context, userA, userB string) ([]models.ChatMessage, error)
	MarkSeen(ctx context.Context, senderID, recipientID string) (int64, error)
	CountUnreadBySender(ctx context.Context, recipientID string) (map[string]int, error)
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a new message. The store assigns id and created_at.
func (r *MessageRepo) Append(ctx context.Context, senderID, recipientID, body string) (models.ChatMessage, error) {
	if senderID == "" {
		return models.ChatMessage{}, fmt.Errorf("%w: empty sender id", ErrValidation)
	}
	if recipientID == "" {
		return models.ChatMessage{}, fmt.Errorf("%w: empty recipient id", ErrValidation)
	}
	if body == "" {
		return models.ChatMessage{}, fmt.Errorf("%w: empty body", ErrValidation)
	}
	if senderID == recipientID {
		return models.ChatMessage{}, fmt.Errorf("%w: sender and recipient are the same", ErrValidation)
	}

	var msg models.ChatMessage
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (sender_id, recipient_id, body) VALUES ($1, $2, $3) RETURNING id, sender_id, recipient_id, body, seen, created_at`, senderID, recipientID, body).
		Scan(&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Body, &msg.Seen, &msg.CreatedAt)
	return msg, err
}

// FindBetween returns all messages exchanged between two users in both
// directions, oldest first. Symmetric in its arguments.
func (r *MessageRepo) FindBetween(ctx context.Context, userA, userB string) ([]models.ChatMessage, error) {
	query := `SELECT id, sender_id, recipient_id, body, seen, created_at
        FROM messages
        WHERE (sender_id=$1 AND recipient_id=$2) OR (sender_id=$2 AND recipient_id=$1)
        ORDER BY created_at ASC, id ASC`
	var msgs []models.ChatMessage
	err := r.db.SelectContext(ctx, &msgs, query, userA, userB)
	return msgs, err
}

// MarkSeen flips every unseen message from senderID to recipientID and
// returns how many rows changed. Calling it again is a no-op.
func (r *MessageRepo) MarkSeen(ctx context.Context, senderID, recipientID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET seen = TRUE WHERE sender_id=$1 AND recipient_id=$2 AND seen = FALSE`, senderID, recipientID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountUnreadBySender groups the recipient's unseen messages by sender.
func (r *MessageRepo) CountUnreadBySender(ctx context.Context, recipientID string) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT sender_id, COUNT(*) AS unread FROM messages WHERE recipient_id=$1 AND seen = FALSE GROUP BY sender_id`, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var senderID string
		var unread int
		if err := rows.Scan(&senderID, &unread); err != nil {
			return nil, err
		}
		counts[senderID] = unread
	}
	return counts, rows.Err()
}

// ListConversations returns one conversation per counterpart the user has
// exchanged messages with, most recent activity first.
func (r *MessageRepo) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	query := `SELECT id, sender_id, recipient_id, body, seen, created_at
        FROM messages
        WHERE sender_id=$1 OR recipient_id=$1
        ORDER BY created_at ASC, id ASC`
	var msgs []models.ChatMessage
	if err := r.db.SelectContext(ctx, &msgs, query, userID); err != nil {
		return nil, err
	}
	return groupConversations(userID, msgs), nil
}

// groupConversations folds a user's flat, ascending message history into
// per-counterpart conversations ordered by latest message descending.
func groupConversations(userID string, msgs []models.ChatMessage) []models.Conversation {
	byPeer := map[string]*models.Conversation{}
	order := make([]string, 0)

	for _, m := range msgs {
		peer := m.SenderID
		if peer == userID {
			peer = m.RecipientID
		}
		conv, ok := byPeer[peer]
		if !ok {
			conv = &models.Conversation{PeerID: peer}
			byPeer[peer] = conv
			order = append(order, peer)
		}
		conv.Messages = append(conv.Messages, m)
		if m.RecipientID == userID && !m.Seen {
			conv.UnreadCount++
		}
	}

	result := make([]models.Conversation, 0, len(order))
	for _, peer := range order {
		result = append(result, *byPeer[peer])
	}
	sort.SliceStable(result, func(i, j int) bool {
		li := result[i].Messages[len(result[i].Messages)-1]
		lj := result[j].Messages[len(result[j].Messages)-1]
		if li.CreatedAt.Equal(lj.CreatedAt) {
			return li.ID > lj.ID
		}
		return li.CreatedAt.After(lj.CreatedAt)
	})
	return result
}
