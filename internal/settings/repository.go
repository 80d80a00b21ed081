package settings

import (
	"context"

	"github.com/contact-app/followup/internal/domain"
)

// Repository is the durable key/value store behind the cache.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns ErrNotFound when the key has never been set.
	Get(ctx context.Context, key string) (*domain.Setting, error)

	// Set upserts the value for key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
