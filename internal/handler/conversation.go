package handler

import (
	"log/slog"
	"net/http"

	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/services"
	"chatrelay/internal/httputil"
)

// ConversationHandler serves stateless chat turns.
type ConversationHandler struct {
	service services.ConversationService
	logger  *slog.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(service services.ConversationService, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: service,
		logger:  logger,
	}
}

// Converse runs one chat turn
// POST /conversation
func (h *ConversationHandler) Converse(w http.ResponseWriter, r *http.Request) {
	var req models.TurnRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	result, err := h.service.Converse(r.Context(), httputil.GetUser(r), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	writeTurn(w, result, h.logger)
}
