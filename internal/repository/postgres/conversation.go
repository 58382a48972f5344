package postgres

import (
	"context"
	"fmt"
	"time"

	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/repositories"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConversationRepository implements the ConversationRepository interface
type PostgresConversationRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(config *RepositoryConfig) repositories.ConversationRepository {
	return &PostgresConversationRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Create creates a new conversation
func (r *PostgresConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, r.tables.Conversations)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		conv.ID,
		conv.UserID,
		conv.Title,
		conv.CreatedAt,
		conv.UpdatedAt,
	).Scan(&conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if isPgDuplicateError(err) {
			return fmt.Errorf("conversation %s: %w", conv.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create conversation: %w", err)
	}

	return nil
}

// Get retrieves a conversation owned by userID
func (r *PostgresConversationRepository) Get(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, created_at, updated_at
		FROM %s
		WHERE id = $1 AND user_id = $2
	`, r.tables.Conversations)

	var conv models.Conversation
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, conversationID, userID).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	return &conv, nil
}

// List retrieves a page of the user's conversations, ordered by updated_at DESC
func (r *PostgresConversationRepository) List(ctx context.Context, userID string, limit, offset int) ([]models.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, created_at, updated_at
		FROM %s
		WHERE user_id = $1
		ORDER BY updated_at DESC, id
		LIMIT $2 OFFSET $3
	`, r.tables.Conversations)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0, limit)
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return conversations, nil
}

// UpdateTitle renames a conversation
func (r *PostgresConversationRepository) UpdateTitle(ctx context.Context, userID, conversationID, title string) (*models.Conversation, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, title, created_at, updated_at
	`, r.tables.Conversations)

	var conv models.Conversation
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, conversationID, userID, title, time.Now().UTC()).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("update conversation title: %w", err)
	}

	return &conv, nil
}

// Delete removes a conversation. Remaining messages go with it through the foreign key.
func (r *PostgresConversationRepository) Delete(ctx context.Context, userID, conversationID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = $1 AND user_id = $2
	`, r.tables.Conversations)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, conversationID, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	return nil
}

// Ping checks that the database answers.
func (r *PostgresConversationRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
