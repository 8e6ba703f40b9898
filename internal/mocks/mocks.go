package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, senderID, recipientID, body string) (models.ChatMessage, error) {
	args := m.Called(ctx, senderID, recipientID, body)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) FindBetween(ctx context.Context, userA, userB string) ([]models.ChatMessage, error) {
	args := m.Called(ctx, userA, userB)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkSeen(ctx context.Context, senderID, recipientID string) (int64, error) {
	args := m.Called(ctx, senderID, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) CountUnreadBySender(ctx context.Context, recipientID string) (map[string]int, error) {
	args := m.Called(ctx, recipientID)
	var counts map[string]int
	if val := args.Get(0); val != nil {
		counts = val.(map[string]int)
	}
	return counts, args.Error(1)
}

func (m *MessageRepositoryMock) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	var convs []models.Conversation
	if val := args.Get(0); val != nil {
		convs = val.([]models.Conversation)
	}
	return convs, args.Error(1)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
