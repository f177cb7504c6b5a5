package auth

import (
	"context"

	"letterarchive/internal/domain/models"
)

// TokenVerifier turns a bearer token into verified claims.
// This abstraction keeps the middleware agnostic to where tokens are
// checked: against a JWKS endpoint here, or upstream at the gateway.
type TokenVerifier interface {
	// VerifyToken validates a token string and returns the parsed claims.
	// Returns domain.ErrUnauthorized if the token is unusable.
	VerifyToken(ctx context.Context, tokenString string) (*models.ArchiveClaims, error)

	// Close releases any resources held by the verifier.
	Close() error
}
