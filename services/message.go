package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"piads/models"
	"piads/storage"
)

// MessageService handles buyer↔seller direct messages and the
// notifications they fan out
type MessageService struct {
	store *storage.Store
}

// NewMessageService creates a new MessageService
func NewMessageService(store *storage.Store) *MessageService {
	return &MessageService{store: store}
}

// Send validates and persists a message, then notifies the recipient.
// The message is the authoritative write; a failed notification is
// logged and swallowed.
func (s *MessageService) Send(ctx context.Context, m *models.Message) (*models.Message, error) {
	if m.SenderID == "" {
		return nil, errors.New("sender id is required")
	}
	if m.RecipientID == "" {
		return nil, errors.New("recipient id is required")
	}
	if m.SenderID == m.RecipientID {
		return nil, errors.New("cannot message yourself")
	}
	if m.Body == "" {
		return nil, errors.New("message body is required")
	}

	created, err := s.store.CreateMessage(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	if _, err := s.store.CreateNotification(ctx, &models.Notification{
		UserID:    m.RecipientID,
		Kind:      models.NotificationKindMessage,
		Body:      "You have a new message",
		CreatedAt: time.Now(),
	}); err != nil {
		log.Printf("Warning: failed to create message notification: %v", err)
	}

	return created, nil
}

// Inbox returns all messages a user sent or received, newest first
func (s *MessageService) Inbox(ctx context.Context, userID string) ([]models.Message, error) {
	return s.store.ListMessages(ctx, userID)
}

// MarkRead marks a single message as read
func (s *MessageService) MarkRead(ctx context.Context, id string) error {
	return s.store.MarkMessageRead(ctx, id)
}

// Notifications returns a user's notifications, newest first
func (s *MessageService) Notifications(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.store.ListNotifications(ctx, userID)
}

// MarkNotificationRead marks a single notification as read
func (s *MessageService) MarkNotificationRead(ctx context.Context, id string) error {
	return s.store.MarkNotificationRead(ctx, id)
}
