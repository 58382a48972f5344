package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"chatrelay/internal/domain"
	"chatrelay/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var upstreamErr *domain.UpstreamError

	switch {
	case errors.As(err, &upstreamErr):
		httputil.RespondRawError(w, upstreamErr.StatusCode(), upstreamErr.Body)
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		httputil.RespondError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrConfiguration), errors.Is(err, domain.ErrNotConfigured):
		logger.Error("request failed", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
	default:
		logger.Error("request failed", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// conversationRequest is the body of the /history routes keyed by conversation.
type conversationRequest struct {
	ConversationID string `json:"conversation_id"`
}
