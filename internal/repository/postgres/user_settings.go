package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/repositories"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresUserSettingsRepository implements the UserSettingsRepository interface
type PostgresUserSettingsRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewUserSettingsRepository creates a new PostgresUserSettingsRepository
func NewUserSettingsRepository(config *RepositoryConfig) repositories.UserSettingsRepository {
	return &PostgresUserSettingsRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// GetByUserID retrieves the settings document of a user
func (r *PostgresUserSettingsRepository) GetByUserID(ctx context.Context, userID string) (*models.UserSettings, error) {
	query := fmt.Sprintf(`
		SELECT user_id, settings, created_at, updated_at
		FROM %s
		WHERE user_id = $1
	`, r.tables.UserSettings)

	var settings models.UserSettings
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, userID).Scan(
		&settings.UserID,
		&settings.Settings,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)
	if err != nil {
		if isPgNoRowsError(err) {
			// Nothing stored yet
			return nil, nil
		}
		return nil, fmt.Errorf("get user settings: %w", err)
	}

	return &settings, nil
}

// Upsert creates or replaces the settings document of a user
func (r *PostgresUserSettingsRepository) Upsert(ctx context.Context, settings *models.UserSettings) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			settings = EXCLUDED.settings,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`, r.tables.UserSettings)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		settings.UserID,
		settings.Settings,
		settings.CreatedAt,
		settings.UpdatedAt,
	).Scan(&settings.CreatedAt, &settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert user settings: %w", err)
	}

	r.logger.Debug("user settings stored", "user_id", settings.UserID, "keys", len(settings.Settings))
	return nil
}
