package httputil

import (
	"context"
	"net/http"

	"letterarchive/internal/domain/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	identityKey contextKey = "identity"
)

// WithIdentity adds the resolved caller to the request context
func WithIdentity(r *http.Request, identity *models.Identity) *http.Request {
	ctx := context.WithValue(r.Context(), identityKey, identity)
	return r.WithContext(ctx)
}

// GetIdentity retrieves the caller from context, nil for anonymous requests
func GetIdentity(r *http.Request) *models.Identity {
	identity, _ := r.Context().Value(identityKey).(*models.Identity)
	return identity
}

// GetUserID returns the caller's subject, empty string if anonymous
func GetUserID(r *http.Request) string {
	if identity := GetIdentity(r); identity != nil {
		return identity.Subject
	}
	return ""
}
