package auth

import "chatrelay/internal/domain/models"

// JWTVerifier validates bearer tokens presented by API clients that do not sit behind
// the platform's built-in authentication.
type JWTVerifier interface {
	// VerifyToken validates a JWT token string and returns the parsed claims.
	// Returns domain.ErrUnauthorized if the token is invalid, expired, or has an invalid signature.
	VerifyToken(tokenString string) (*models.AccessClaims, error)

	// Close releases any resources held by the verifier.
	Close() error
}
