package repositories

import (
	"context"

	"chatrelay/internal/domain/models"
)

// ConversationRepository stores conversation records.
// Every method is scoped by userID; a record owned by someone else is reported as
// domain.ErrNotFound.
type ConversationRepository interface {
	Create(ctx context.Context, conv *models.Conversation) error
	Get(ctx context.Context, userID, conversationID string) (*models.Conversation, error)
	// List returns conversations newest first.
	List(ctx context.Context, userID string, limit, offset int) ([]models.Conversation, error)
	UpdateTitle(ctx context.Context, userID, conversationID, title string) (*models.Conversation, error)
	Delete(ctx context.Context, userID, conversationID string) error
	Ping(ctx context.Context) error
}

// MessageRepository stores chat messages.
type MessageRepository interface {
	// Create inserts msg and bumps the owning conversation's updated_at.
	// Returns domain.ErrNotFound when the conversation does not belong to msg.UserID.
	Create(ctx context.Context, msg *models.Message) error
	// List returns messages oldest first.
	List(ctx context.Context, userID, conversationID string) ([]models.Message, error)
	UpdateFeedback(ctx context.Context, userID, messageID, feedback string) (*models.Message, error)
	// DeleteByConversation returns the number of rows removed.
	DeleteByConversation(ctx context.Context, userID, conversationID string) (int64, error)
}
