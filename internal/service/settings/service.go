package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatrelay/internal/catalog"
	"chatrelay/internal/config"
	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/repositories"
	"chatrelay/internal/domain/services"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// settingsService implements the FrontendSettingsService interface
type settingsService struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	repo    repositories.UserSettingsRepository
	logger  *slog.Logger
}

// NewSettingsService creates a new frontend settings service. repo may be nil when no
// settings store is configured; reads then serve defaults and writes fail.
func NewSettingsService(
	cfg *config.Config,
	cat *catalog.Catalog,
	repo repositories.UserSettingsRepository,
	logger *slog.Logger,
) services.FrontendSettingsService {
	return &settingsService{
		cfg:     cfg,
		catalog: cat,
		repo:    repo,
		logger:  logger,
	}
}

// Read returns the environment defaults with the user's model choice applied.
// Only the model can be overridden per user.
func (s *settingsService) Read(ctx context.Context, user *models.AuthenticatedUser) (*models.FrontendSettings, error) {
	out := s.defaults()

	if !s.cfg.AuthEnabled || s.repo == nil || user == nil {
		return out, nil
	}

	stored, err := s.repo.GetByUserID(ctx, user.PrincipalID)
	if err != nil {
		return nil, err
	}
	if model := stored.String(models.SettingModel); model != "" {
		out.AzureOpenAIModel = model
	}
	return out, nil
}

func (s *settingsService) defaults() *models.FrontendSettings {
	ui := s.catalog.UI()

	deployments := s.cfg.OpenAI.Deployments
	if len(deployments) == 0 {
		deployments = s.catalog.DeploymentIDs()
	}

	return &models.FrontendSettings{
		AuthEnabled:            s.cfg.AuthEnabled,
		FeedbackEnabled:        s.cfg.EnableFeedback && s.cfg.HistoryEnabled(),
		HeaderTitle:            firstNonEmpty(s.cfg.UI.HeaderTitle, ui.HeaderTitle),
		PageTabTitle:           firstNonEmpty(s.cfg.UI.PageTabTitle, ui.PageTabTitle),
		AzureOpenAIDeployments: strings.Join(deployments, ","),
		AzureOpenAIModel:       firstNonEmpty(s.cfg.OpenAI.Model, s.catalog.DefaultDeployment()),
		UI: models.UISettings{
			Title:           firstNonEmpty(s.cfg.UI.Title, ui.Title),
			Logo:            s.cfg.UI.Logo,
			ChatLogo:        firstNonEmpty(s.cfg.UI.ChatLogo, s.cfg.UI.Logo),
			ChatTitle:       firstNonEmpty(s.cfg.UI.ChatTitle, ui.ChatTitle),
			ChatDescription: firstNonEmpty(s.cfg.UI.ChatDescription, ui.ChatDescription),
			ShowShareButton: s.cfg.UI.ShowShareButton,
		},
	}
}

// Write stores the user's settings document. The model must be a known deployment.
func (s *settingsService) Write(ctx context.Context, user *models.AuthenticatedUser, req *models.WriteSettingsRequest) error {
	if s.repo == nil {
		return fmt.Errorf("settings store: %w", domain.ErrNotConfigured)
	}
	if err := s.validateWrite(req); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	stored, err := s.repo.GetByUserID(ctx, user.PrincipalID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if stored == nil {
		stored = &models.UserSettings{UserID: user.PrincipalID, CreatedAt: now}
	}
	if stored.Settings == nil {
		stored.Settings = models.JSONMap{}
	}

	values := req.Values()
	for _, key := range models.WritableSettings {
		stored.Settings[key] = values[key]
	}
	stored.UpdatedAt = now

	if err := s.repo.Upsert(ctx, stored); err != nil {
		return err
	}

	s.logger.Debug("frontend settings saved", "user_id", user.PrincipalID, "user_name", user.Name)
	return nil
}

func (s *settingsService) validateWrite(req *models.WriteSettingsRequest) error {
	if req == nil {
		return fmt.Errorf("request body is required")
	}
	known := s.knownDeployments()
	return validation.ValidateStruct(req,
		validation.Field(&req.HeaderTitle, validation.Length(0, config.MaxConversationTitleLength)),
		validation.Field(&req.PageTabTitle, validation.Length(0, config.MaxConversationTitleLength)),
		validation.Field(&req.AzureOpenAIModel, validation.Required, validation.In(known...).Error("must be a known deployment")),
	)
}

func (s *settingsService) knownDeployments() []interface{} {
	ids := s.cfg.OpenAI.Deployments
	if len(ids) == 0 {
		ids = s.catalog.DeploymentIDs()
	}
	known := make([]interface{}, 0, len(ids)+1)
	for _, id := range ids {
		known = append(known, id)
	}
	if s.cfg.OpenAI.Model != "" {
		known = append(known, s.cfg.OpenAI.Model)
	}
	return known
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
