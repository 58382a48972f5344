package services

import (
	"context"

	"chatrelay/internal/domain/models"
)

// HistoryService implements the /history routes.
type HistoryService interface {
	// Generate creates the conversation when needed, stores the latest user message
	// and runs the turn with history metadata attached.
	Generate(ctx context.Context, user *models.AuthenticatedUser, req *models.TurnRequest) (*TurnResult, error)
	// Update stores the assistant answer (and its tool message, if any) of a finished turn.
	Update(ctx context.Context, user *models.AuthenticatedUser, req *models.TurnRequest) (string, error)
	MessageFeedback(ctx context.Context, user *models.AuthenticatedUser, messageID, feedback string) (*models.MessageFeedback, error)
	Delete(ctx context.Context, user *models.AuthenticatedUser, conversationID string) error
	List(ctx context.Context, user *models.AuthenticatedUser, offset int) ([]models.Conversation, error)
	Read(ctx context.Context, user *models.AuthenticatedUser, conversationID string) (*models.ConversationMessages, error)
	Rename(ctx context.Context, user *models.AuthenticatedUser, conversationID, title string) (*models.Conversation, error)
	DeleteAll(ctx context.Context, user *models.AuthenticatedUser) (int, error)
	Clear(ctx context.Context, user *models.AuthenticatedUser, conversationID string) error
	Ensure(ctx context.Context) error
}

// TitleResult is either a generated title or a fallback with the reason generation failed.
type TitleResult struct {
	Title string
	// Reason is nil when Title came from the model.
	Reason error
}

// Ok reports whether the title was generated rather than substituted.
func (r TitleResult) Ok() bool {
	return r.Reason == nil
}

// TitleOk wraps a generated title.
func TitleOk(title string) TitleResult {
	return TitleResult{Title: title}
}

// TitleFallback wraps a substitute title and the failure that caused it.
func TitleFallback(title string, reason error) TitleResult {
	return TitleResult{Title: title, Reason: reason}
}

// TitleGenerator names a new conversation from its opening messages.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, messages []models.ChatMessage) TitleResult
}
