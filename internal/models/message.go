package models

import "time"

// ChatMessage represents a persisted direct message between two users.
type ChatMessage struct {
	ID          int64     `db:"id" json:"id"`
	SenderID    string    `db:"sender_id" json:"senderId"`
	RecipientID string    `db:"recipient_id" json:"recipientId"`
	Body        string    `db:"body" json:"body"`
	Seen        bool      `db:"seen" json:"seen"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Conversation is the derived message history with one counterpart.
// It is never stored; it is rebuilt from the messages table on demand.
type Conversation struct {
	PeerID      string        `json:"peerId"`
	Messages    []ChatMessage `json:"messages"`
	UnreadCount int           `json:"unreadCount"`
}

// UnreadSummary groups a user's unseen messages by sender.
type UnreadSummary struct {
	UnreadCounts map[string]int `json:"unreadCounts"`
	TotalUnread  int            `json:"totalUnread"`
}

// NewMessageEvent is pushed to the recipient's channel on a successful send.
type NewMessageEvent struct {
	Type      string    `json:"type"`
	From      string    `json:"from"`
	Message   string    `json:"message"`
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessagesSeenEvent is pushed to the original sender when the recipient
// marks their messages as seen.
type MessagesSeenEvent struct {
	Type string `json:"type"`
	By   string `json:"by"`
}
