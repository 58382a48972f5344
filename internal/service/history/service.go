package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatrelay/internal/config"
	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/repositories"
	"chatrelay/internal/domain/services"
	"chatrelay/internal/metrics"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// deleteBatchSize is how many conversations DeleteAll removes per listing.
const deleteBatchSize = 100

const defaultTitle = "New conversation"

// historyService implements the HistoryService interface
type historyService struct {
	conversations  repositories.ConversationRepository
	messages       repositories.MessageRepository
	chat           services.ConversationService
	titles         services.TitleGenerator
	blobs          services.BlobStore
	enableFeedback bool
	logger         *slog.Logger
}

// Options carries the optional collaborators of the history service.
type Options struct {
	// Blobs stores image attachments. Nil keeps data URIs inline.
	Blobs services.BlobStore
	// EnableFeedback starts new messages with an empty feedback value.
	EnableFeedback bool
}

// NewHistoryService creates a new history service. conversations and messages may be
// nil when no history store is configured; every operation then reports
// domain.ErrNotConfigured.
func NewHistoryService(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	chat services.ConversationService,
	titles services.TitleGenerator,
	opts Options,
	logger *slog.Logger,
) services.HistoryService {
	return &historyService{
		conversations:  conversations,
		messages:       messages,
		chat:           chat,
		titles:         titles,
		blobs:          opts.Blobs,
		enableFeedback: opts.EnableFeedback,
		logger:         logger,
	}
}

func (s *historyService) ready() error {
	if s.conversations == nil || s.messages == nil {
		return fmt.Errorf("history store: %w", domain.ErrNotConfigured)
	}
	return nil
}

// Generate creates the conversation when needed, stores the latest user message and
// runs the turn with history metadata attached.
func (s *historyService) Generate(ctx context.Context, user *models.AuthenticatedUser, req *models.TurnRequest) (*services.TurnResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if req == nil || len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: at least one message is required", domain.ErrValidation)
	}
	last := req.LastMessage()
	if last.Role != models.RoleUser {
		return nil, fmt.Errorf("%w: no user message found", domain.ErrValidation)
	}

	metadata := map[string]string{}
	conversationID := req.ConversationID
	if conversationID == "" {
		conv, err := s.createConversation(ctx, user.PrincipalID, req.Messages)
		if err != nil {
			return nil, err
		}
		conversationID = conv.ID
		metadata["title"] = conv.Title
		metadata["date"] = conv.CreatedAt.Format(time.RFC3339Nano)
	} else if _, err := s.conversations.Get(ctx, user.PrincipalID, conversationID); err != nil {
		return nil, err
	}

	messageID := uuid.NewString()
	content, err := s.persistableContent(ctx, conversationID, messageID, *last)
	if err != nil {
		return nil, err
	}
	msg := &models.Message{
		ID:             messageID,
		ConversationID: conversationID,
		UserID:         user.PrincipalID,
		Role:           models.RoleUser,
		Content:        content,
		Feedback:       s.initialFeedback(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		s.discardAttachments(ctx, attachmentPrefix(conversationID, messageID))
		return nil, err
	}

	metadata["conversation_id"] = conversationID
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode history metadata: %w", err)
	}

	turn := *req
	turn.ConversationID = conversationID
	turn.HistoryMetadata = encoded
	return s.chat.Converse(ctx, user, &turn)
}

func (s *historyService) createConversation(ctx context.Context, userID string, messages []models.ChatMessage) (*models.Conversation, error) {
	result := s.titles.GenerateTitle(ctx, messages)
	if !result.Ok() {
		metrics.TitleFallback()
		s.logger.Warn("title generation fell back", "user_id", userID, "error", result.Reason)
	}

	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     truncateTitle(result.Title),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}

	s.logger.Info("conversation created",
		"conversation_id", conv.ID,
		"user_id", userID,
		"generated_title", result.Ok(),
	)
	return conv, nil
}

// persistableContent swaps inline data URI images for blob URLs. The turn itself still
// sends the inline data upstream.
func (s *historyService) persistableContent(ctx context.Context, conversationID, messageID string, msg models.ChatMessage) (json.RawMessage, error) {
	if s.blobs == nil || !msg.IsMultipart() {
		return msg.Content, nil
	}
	parts, err := msg.Parts()
	if err != nil {
		return nil, fmt.Errorf("%w: malformed content parts: %v", domain.ErrValidation, err)
	}

	uploaded := 0
	for i := range parts {
		img := parts[i].ImageURL
		if parts[i].Type != models.PartImageURL || img == nil {
			continue
		}
		data, ok := inlineImageData(img.URL)
		if !ok {
			continue
		}
		name := fmt.Sprintf("%s%d", attachmentPrefix(conversationID, messageID), uploaded)
		url, err := s.blobs.UploadImage(ctx, name, data)
		if err != nil {
			if uploaded > 0 {
				s.discardAttachments(ctx, attachmentPrefix(conversationID, messageID))
			}
			return nil, fmt.Errorf("upload image: %w", err)
		}
		parts[i].ImageURL = &models.ImageURL{URL: url, Detail: img.Detail}
		uploaded++
	}
	if uploaded == 0 {
		return msg.Content, nil
	}

	out, err := json.Marshal(parts)
	if err != nil {
		return nil, fmt.Errorf("encode content parts: %w", err)
	}
	return out, nil
}

// attachmentPrefix names the blobs of one message: "{conversation}-{message}-".
func attachmentPrefix(conversationID, messageID string) string {
	return conversationID + "-" + messageID + "-"
}

// discardAttachments removes blobs uploaded for a message that was never stored.
func (s *historyService) discardAttachments(ctx context.Context, prefix string) {
	if s.blobs == nil {
		return
	}
	if _, err := s.blobs.DeletePrefix(ctx, prefix); err != nil {
		s.logger.Warn("discard attachments", "prefix", prefix, "error", err)
	}
}

// inlineImageData returns the base64 payload of a data URI.
func inlineImageData(url string) (string, bool) {
	if !strings.HasPrefix(url, "data:") {
		return "", false
	}
	header, data, ok := strings.Cut(url, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return "", false
	}
	return data, true
}

func (s *historyService) initialFeedback() *string {
	if !s.enableFeedback {
		return nil
	}
	empty := ""
	return &empty
}

// Update stores the assistant answer of a finished turn, preceded by its tool message
// when the client sent one. Returns the assistant message id.
func (s *historyService) Update(ctx context.Context, user *models.AuthenticatedUser, req *models.TurnRequest) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	if req == nil {
		return "", fmt.Errorf("%w: request body is required", domain.ErrValidation)
	}
	if err := requireID("conversation_id", req.ConversationID); err != nil {
		return "", err
	}

	n := len(req.Messages)
	if n == 0 || req.Messages[n-1].Role != models.RoleAssistant {
		return "", fmt.Errorf("%w: no assistant message found", domain.ErrValidation)
	}

	if n > 1 && req.Messages[n-2].Role == models.RoleTool {
		tool := &models.Message{
			ID:             uuid.NewString(),
			ConversationID: req.ConversationID,
			UserID:         user.PrincipalID,
			Role:           models.RoleTool,
			Content:        req.Messages[n-2].Content,
			Feedback:       s.initialFeedback(),
		}
		if err := s.messages.Create(ctx, tool); err != nil {
			return "", err
		}
	}

	answer := req.Messages[n-1]
	assistantID := answer.ID
	if assistantID == "" {
		assistantID = uuid.NewString()
	}
	msg := &models.Message{
		ID:             assistantID,
		ConversationID: req.ConversationID,
		UserID:         user.PrincipalID,
		Role:           models.RoleAssistant,
		Content:        answer.Content,
		Feedback:       s.initialFeedback(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return "", err
	}

	s.logger.Debug("conversation updated",
		"conversation_id", req.ConversationID,
		"user_id", user.PrincipalID,
		"message_id", assistantID,
	)
	return assistantID, nil
}

// MessageFeedback records the user's rating of one message.
func (s *historyService) MessageFeedback(ctx context.Context, user *models.AuthenticatedUser, messageID, feedback string) (*models.MessageFeedback, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := requireID("message_id", messageID); err != nil {
		return nil, err
	}
	if err := validation.Validate(feedback, validation.Required); err != nil {
		return nil, fmt.Errorf("%w: message_feedback: %v", domain.ErrValidation, err)
	}

	msg, err := s.messages.UpdateFeedback(ctx, user.PrincipalID, messageID, feedback)
	if err != nil {
		return nil, err
	}
	return &models.MessageFeedback{MessageID: msg.ID, Feedback: feedback}, nil
}

// Delete removes a conversation with its messages and attachments.
func (s *historyService) Delete(ctx context.Context, user *models.AuthenticatedUser, conversationID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := requireID("conversation_id", conversationID); err != nil {
		return err
	}
	// Blob names are not user scoped, so ownership is settled before anything is removed.
	if _, err := s.conversations.Get(ctx, user.PrincipalID, conversationID); err != nil {
		return err
	}
	return s.deleteConversation(ctx, user.PrincipalID, conversationID)
}

func (s *historyService) deleteConversation(ctx context.Context, userID, conversationID string) error {
	deleted, err := s.messages.DeleteByConversation(ctx, userID, conversationID)
	if err != nil {
		return err
	}

	if s.blobs != nil {
		// Blob names start with the conversation id. Callers have checked ownership.
		if n, err := s.blobs.DeletePrefix(ctx, conversationID+"-"); err != nil {
			s.logger.Warn("delete conversation blobs", "conversation_id", conversationID, "error", err)
		} else if n > 0 {
			s.logger.Debug("conversation blobs deleted", "conversation_id", conversationID, "count", n)
		}
	}

	if err := s.conversations.Delete(ctx, userID, conversationID); err != nil {
		return err
	}

	s.logger.Info("conversation deleted",
		"conversation_id", conversationID,
		"user_id", userID,
		"messages", deleted,
	)
	return nil
}

// List returns one page of the user's conversations, newest first.
func (s *historyService) List(ctx context.Context, user *models.AuthenticatedUser, offset int) ([]models.Conversation, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := validation.Validate(offset, validation.Min(0)); err != nil {
		return nil, fmt.Errorf("%w: offset: %v", domain.ErrValidation, err)
	}

	conversations, err := s.conversations.List(ctx, user.PrincipalID, config.HistoryPageSize, offset)
	if err != nil {
		return nil, err
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}
	return conversations, nil
}

// Read returns a conversation's messages in the order they were stored.
func (s *historyService) Read(ctx context.Context, user *models.AuthenticatedUser, conversationID string) (*models.ConversationMessages, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := requireID("conversation_id", conversationID); err != nil {
		return nil, err
	}

	if _, err := s.conversations.Get(ctx, user.PrincipalID, conversationID); err != nil {
		return nil, err
	}
	stored, err := s.messages.List(ctx, user.PrincipalID, conversationID)
	if err != nil {
		return nil, err
	}

	out := &models.ConversationMessages{
		ConversationID: conversationID,
		Messages:       make([]models.HistoryMessage, 0, len(stored)),
	}
	for _, m := range stored {
		out.Messages = append(out.Messages, models.HistoryMessage{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			Feedback:  m.Feedback,
		})
	}
	return out, nil
}

// Rename replaces a conversation title.
func (s *historyService) Rename(ctx context.Context, user *models.AuthenticatedUser, conversationID, title string) (*models.Conversation, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := requireID("conversation_id", conversationID); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	err := validation.Validate(title,
		validation.Required.Error("title is required"),
		validation.RuneLength(1, config.MaxConversationTitleLength),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: title: %v", domain.ErrValidation, err)
	}

	conv, err := s.conversations.UpdateTitle(ctx, user.PrincipalID, conversationID, title)
	if err != nil {
		return nil, err
	}

	s.logger.Info("conversation renamed", "conversation_id", conversationID, "user_id", user.PrincipalID)
	return conv, nil
}

// DeleteAll removes every conversation of the user. Returns domain.ErrNotFound when the
// user has none.
func (s *historyService) DeleteAll(ctx context.Context, user *models.AuthenticatedUser) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	deleted := 0
	for {
		batch, err := s.conversations.List(ctx, user.PrincipalID, deleteBatchSize, 0)
		if err != nil {
			return deleted, err
		}
		if len(batch) == 0 {
			break
		}
		for _, conv := range batch {
			if err := s.deleteConversation(ctx, user.PrincipalID, conv.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return deleted, fmt.Errorf("delete conversation %s: %w", conv.ID, err)
			}
			deleted++
		}
	}

	if deleted == 0 {
		return 0, fmt.Errorf("no conversations for user %s: %w", user.PrincipalID, domain.ErrNotFound)
	}
	return deleted, nil
}

// Clear removes a conversation's messages and keeps the conversation.
func (s *historyService) Clear(ctx context.Context, user *models.AuthenticatedUser, conversationID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := requireID("conversation_id", conversationID); err != nil {
		return err
	}

	if _, err := s.conversations.Get(ctx, user.PrincipalID, conversationID); err != nil {
		return err
	}
	deleted, err := s.messages.DeleteByConversation(ctx, user.PrincipalID, conversationID)
	if err != nil {
		return err
	}

	s.logger.Info("conversation cleared", "conversation_id", conversationID, "messages", deleted)
	return nil
}

// Ensure checks that the history store is configured and reachable.
func (s *historyService) Ensure(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.conversations.Ping(ctx); err != nil {
		return fmt.Errorf("history store unreachable: %w", err)
	}
	return nil
}

func requireID(field, value string) error {
	if err := validation.Validate(strings.TrimSpace(value), validation.Required); err != nil {
		return fmt.Errorf("%w: %s is required", domain.ErrValidation, field)
	}
	return nil
}

func truncateTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return defaultTitle
	}
	runes := []rune(title)
	if len(runes) > config.MaxConversationTitleLength {
		return string(runes[:config.MaxConversationTitleLength])
	}
	return title
}
