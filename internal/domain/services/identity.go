package services

import (
	"context"
	"net/http"

	"chatrelay/internal/domain/models"
)

// IdentityResolver turns request headers into the calling user.
// Returns domain.ErrUnauthorized when no identity can be established.
type IdentityResolver interface {
	Resolve(ctx context.Context, header http.Header) (*models.AuthenticatedUser, error)
}
