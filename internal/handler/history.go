package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/services"
	"chatrelay/internal/httputil"
)

// HistoryHandler handles the /history routes.
// Every route runs behind the auth middleware, so a user is always present.
type HistoryHandler struct {
	service services.HistoryService
	logger  *slog.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(service services.HistoryService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		service: service,
		logger:  logger,
	}
}

type feedbackRequest struct {
	MessageID string `json:"message_id"`
	Feedback  string `json:"message_feedback"`
}

type renameRequest struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
}

type messageResponse struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Generate persists the user's message and runs the turn
// POST /history/generate
func (h *HistoryHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.TurnRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	result, err := h.service.Generate(r.Context(), httputil.GetUser(r), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	writeTurn(w, result, h.logger)
}

// Update stores the assistant answer of a finished turn
// POST /history/update
func (h *HistoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.TurnRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	if _, err := h.service.Update(r.Context(), httputil.GetUser(r), &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// MessageFeedback records thumbs up/down on a message
// POST /history/message_feedback
func (h *HistoryHandler) MessageFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	feedback, err := h.service.MessageFeedback(r.Context(), httputil.GetUser(r), req.MessageID, req.Feedback)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, feedback)
}

// Delete removes a conversation and its messages
// DELETE /history/delete
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	if err := h.service.Delete(r.Context(), httputil.GetUser(r), req.ConversationID); err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, messageResponse{
		Message:        "Successfully deleted conversation and messages",
		ConversationID: req.ConversationID,
	})
}

// List returns one page of the caller's conversations, newest first
// GET /history/list?offset=N
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			handleError(w, h.logger, fmt.Errorf("%w: offset must be an integer", domain.ErrValidation))
			return
		}
		offset = n
	}

	conversations, err := h.service.List(r.Context(), httputil.GetUser(r), offset)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, conversations)
}

// Read returns a conversation's messages in order
// POST /history/read
func (h *HistoryHandler) Read(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	messages, err := h.service.Read(r.Context(), httputil.GetUser(r), req.ConversationID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, messages)
}

// Rename changes a conversation title
// POST /history/rename
func (h *HistoryHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	conversation, err := h.service.Rename(r.Context(), httputil.GetUser(r), req.ConversationID, req.Title)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, conversation)
}

// DeleteAll removes every conversation of the caller
// DELETE /history/delete_all
func (h *HistoryHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	user := httputil.GetUser(r)
	if _, err := h.service.DeleteAll(r.Context(), user); err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Successfully deleted conversation and messages for user %s", user.PrincipalID),
	})
}

// Clear removes a conversation's messages and keeps the conversation
// POST /history/clear
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	if err := h.service.Clear(r.Context(), httputil.GetUser(r), req.ConversationID); err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, messageResponse{
		Message:        "Successfully deleted messages in conversation",
		ConversationID: req.ConversationID,
	})
}

// Ensure reports whether the history store is configured and reachable
// GET /history/ensure
func (h *HistoryHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	err := h.service.Ensure(r.Context())
	switch {
	case err == nil:
		httputil.RespondJSON(w, http.StatusOK, messageResponse{Message: "history store is configured and working"})
	case errors.Is(err, domain.ErrNotConfigured):
		httputil.RespondError(w, http.StatusNotFound, "history store is not configured")
	default:
		h.logger.Error("history store check failed", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "history store is not working")
	}
}
