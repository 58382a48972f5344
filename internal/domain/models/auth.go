package models

import "github.com/golang-jwt/jwt/v5"

// AuthenticatedUser is the caller identity resolved from request headers.
type AuthenticatedUser struct {
	PrincipalID      string `json:"user_principal_id"`
	Name             string `json:"user_name"`
	IdentityProvider string `json:"auth_provider,omitempty"`
	// AccessToken is the delegated AAD access token forwarded by the platform.
	// Used for Graph group lookups; never persisted or logged.
	AccessToken string `json:"-"`
}

// AccessClaims is the subset of bearer-token claims the service reads.
type AccessClaims struct {
	jwt.RegisteredClaims
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	ObjectID          string `json:"oid"`
}

// GetUserID prefers the directory object id over the subject claim.
func (c *AccessClaims) GetUserID() string {
	if c.ObjectID != "" {
		return c.ObjectID
	}
	return c.Subject
}

// DisplayName returns the most readable name carried by the token.
func (c *AccessClaims) DisplayName() string {
	switch {
	case c.PreferredUsername != "":
		return c.PreferredUsername
	case c.Email != "":
		return c.Email
	default:
		return c.Name
	}
}
