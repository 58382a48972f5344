package repositories

import (
	"context"

	"chatrelay/internal/domain/models"
)

// UserSettingsRepository persists per-user frontend setting overrides.
type UserSettingsRepository interface {
	// GetByUserID returns nil, nil when the user never stored anything.
	GetByUserID(ctx context.Context, userID string) (*models.UserSettings, error)

	// Upsert replaces the stored settings document for settings.UserID.
	Upsert(ctx context.Context, settings *models.UserSettings) error
}
