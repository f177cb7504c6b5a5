package services

import (
	"context"
	"time"

	"letterarchive/internal/domain/models"
)

// ObjectStore is the blob storage boundary. Keys are bucket-relative.
type ObjectStore interface {
	// PresignPut returns a URL the client can PUT the object to until expiry
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)

	// PresignGet returns a time-limited download URL
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)

	// List returns the keys under prefix in lexical order
	List(ctx context.Context, prefix string) ([]string, error)

	// Get fetches an object. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, key string) (*models.StoredObject, error)

	// Put stores data under key
	Put(ctx context.Context, key, contentType string, data []byte) error

	// Copy duplicates src to dst; repeating it is safe
	Copy(ctx context.Context, src, dst string) error

	// Exists reports whether key is stored
	Exists(ctx context.Context, key string) (bool, error)
}
