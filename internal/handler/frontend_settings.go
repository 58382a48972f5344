package handler

import (
	"log/slog"
	"net/http"

	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/services"
	"chatrelay/internal/httputil"
)

// FrontendSettingsHandler serves the settings document the chat client boots with.
type FrontendSettingsHandler struct {
	service services.FrontendSettingsService
	logger  *slog.Logger
}

// NewFrontendSettingsHandler creates a new frontend settings handler
func NewFrontendSettingsHandler(service services.FrontendSettingsService, logger *slog.Logger) *FrontendSettingsHandler {
	return &FrontendSettingsHandler{
		service: service,
		logger:  logger,
	}
}

// Read returns the effective settings for the caller
// GET /frontend_settings/read
func (h *FrontendSettingsHandler) Read(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Read(r.Context(), httputil.GetUser(r))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, settings)
}

// Write stores the caller's editable settings and echoes them back
// POST /frontend_settings/write
func (h *FrontendSettingsHandler) Write(w http.ResponseWriter, r *http.Request) {
	var req models.WriteSettingsRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	if err := h.service.Write(r.Context(), httputil.GetUser(r), &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, req)
}
