package services

import (
	"context"

	"chatrelay/internal/domain/models"
)

// FrontendSettingsService serves the settings document the chat client boots with.
type FrontendSettingsService interface {
	Read(ctx context.Context, user *models.AuthenticatedUser) (*models.FrontendSettings, error)
	Write(ctx context.Context, user *models.AuthenticatedUser, req *models.WriteSettingsRequest) error
}
