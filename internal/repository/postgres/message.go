package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/repositories"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresMessageRepository implements the MessageRepository interface
type PostgresMessageRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(config *RepositoryConfig) repositories.MessageRepository {
	return &PostgresMessageRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Create inserts a message and bumps the conversation in one statement. The insert only
// happens when the conversation exists and belongs to msg.UserID.
func (r *PostgresMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := fmt.Sprintf(`
		WITH owned AS (
			UPDATE %s
			SET updated_at = $7
			WHERE id = $2 AND user_id = $3
			RETURNING id
		)
		INSERT INTO %s (id, conversation_id, user_id, role, content, feedback, created_at, updated_at)
		SELECT $1, owned.id, $3, $4, $5, $6, $7, $7
		FROM owned
		RETURNING created_at, updated_at
	`, r.tables.Conversations, r.tables.Messages)

	now := time.Now().UTC()
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.UserID,
		msg.Role,
		[]byte(msg.Content),
		msg.Feedback,
		now,
	).Scan(&msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		switch {
		case isPgNoRowsError(err), isPgForeignKeyError(err):
			return fmt.Errorf("conversation %s: %w", msg.ConversationID, domain.ErrNotFound)
		case isPgDuplicateError(err):
			return fmt.Errorf("message %s: %w", msg.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create message: %w", err)
	}

	return nil
}

// List retrieves a conversation's messages, oldest first
func (r *PostgresMessageRepository) List(ctx context.Context, userID, conversationID string) ([]models.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, user_id, role, content, feedback, created_at, updated_at
		FROM %s
		WHERE conversation_id = $1 AND user_id = $2
		ORDER BY created_at ASC, seq ASC
	`, r.tables.Messages)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// UpdateFeedback sets the feedback value of a message owned by userID
func (r *PostgresMessageRepository) UpdateFeedback(ctx context.Context, userID, messageID, feedback string) (*models.Message, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET feedback = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2
		RETURNING id, conversation_id, user_id, role, content, feedback, created_at, updated_at
	`, r.tables.Messages)

	row := GetExecutor(ctx, r.pool).QueryRow(ctx, query, messageID, userID, feedback, time.Now().UTC())
	msg, err := scanMessage(row)
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
		}
		return nil, err
	}

	return msg, nil
}

// DeleteByConversation removes every message of a conversation owned by userID
func (r *PostgresMessageRepository) DeleteByConversation(ctx context.Context, userID, conversationID string) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE conversation_id = $1 AND user_id = $2
	`, r.tables.Messages)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, conversationID, userID)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}

	return result.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		msg     models.Message
		content []byte
	)
	err := row.Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.UserID,
		&msg.Role,
		&content,
		&msg.Feedback,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	msg.Content = json.RawMessage(content)
	return &msg, nil
}
