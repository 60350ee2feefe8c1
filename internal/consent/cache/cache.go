package cache

import (
	"context"
	"time"

	"concur/internal/consent/models"
)

// Cache stores read projections keyed by (principal, fiduciary). A false
// second return from Get means miss; errors are reserved for backend
// failures and callers treat them as misses.
type Cache interface {
	Get(ctx context.Context, principalID, fiduciaryID string) (models.Projection, bool, error)
	Set(ctx context.Context, principalID, fiduciaryID string, projection models.Projection, ttl time.Duration) error
	Delete(ctx context.Context, principalID, fiduciaryID string) error
}

const keyPrefix = "consent:projection:"

func key(principalID, fiduciaryID string) string {
	return keyPrefix + principalID + ":" + fiduciaryID
}
