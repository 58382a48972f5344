package httputil

import (
	"context"
	"net/http"

	"chatrelay/internal/domain/models"
)

type userContextKey struct{}

// WithUser returns a context carrying the resolved caller.
func WithUser(ctx context.Context, user *models.AuthenticatedUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser extracts the authenticated user stored by the auth middleware.
// Returns nil on routes that skip authentication.
func GetUser(r *http.Request) *models.AuthenticatedUser {
	user, _ := r.Context().Value(userContextKey{}).(*models.AuthenticatedUser)
	return user
}
