package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"chatrelay/internal/auth"
	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/services"
)

// Headers set by the App Service authentication proxy.
const (
	HeaderPrincipalID   = "X-Ms-Client-Principal-Id"
	HeaderPrincipalName = "X-Ms-Client-Principal-Name"
	HeaderPrincipalIDP  = "X-Ms-Client-Principal-Idp"
	HeaderAADToken      = "X-Ms-Token-Aad-Access-Token"
)

// Development identity used when authentication is disabled.
const (
	SampleUserID   = "00000000-0000-0000-0000-000000000000"
	SampleUserName = "testusername@contoso.com"
)

// resolver implements the IdentityResolver interface
type resolver struct {
	verifier    auth.JWTVerifier
	allowSample bool
	logger      *slog.Logger
}

// NewResolver creates an identity resolver. verifier may be nil when bearer tokens are
// not accepted. allowSample lets unauthenticated requests act as the sample user.
func NewResolver(verifier auth.JWTVerifier, allowSample bool, logger *slog.Logger) services.IdentityResolver {
	return &resolver{
		verifier:    verifier,
		allowSample: allowSample,
		logger:      logger,
	}
}

// Resolve checks the platform headers first, then a bearer token, then the sample user.
func (r *resolver) Resolve(_ context.Context, header http.Header) (*models.AuthenticatedUser, error) {
	accessToken := header.Get(HeaderAADToken)

	if id := header.Get(HeaderPrincipalID); id != "" {
		return &models.AuthenticatedUser{
			PrincipalID:      id,
			Name:             header.Get(HeaderPrincipalName),
			IdentityProvider: header.Get(HeaderPrincipalIDP),
			AccessToken:      accessToken,
		}, nil
	}

	if token, ok := bearerToken(header); ok && r.verifier != nil {
		claims, err := r.verifier.VerifyToken(token)
		if err != nil {
			return nil, err
		}
		return &models.AuthenticatedUser{
			PrincipalID:      claims.GetUserID(),
			Name:             claims.DisplayName(),
			IdentityProvider: "bearer",
			AccessToken:      accessToken,
		}, nil
	}

	if r.allowSample {
		return &models.AuthenticatedUser{
			PrincipalID:      SampleUserID,
			Name:             SampleUserName,
			IdentityProvider: "sample",
			AccessToken:      accessToken,
		}, nil
	}

	return nil, fmt.Errorf("no identity headers or bearer token: %w", domain.ErrUnauthorized)
}

func bearerToken(header http.Header) (string, bool) {
	value := header.Get("Authorization")
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
