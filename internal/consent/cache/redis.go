package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"concur/internal/consent/models"
)

// Redis is the shared projection cache for distributed deployments.
// Projections are stored as JSON blobs under SET EX.
type Redis struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed projection cache.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, principalID, fiduciaryID string) (models.Projection, bool, error) {
	raw, err := r.client.Get(ctx, key(principalID, fiduciaryID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	var projection models.Projection
	if err := json.Unmarshal(raw, &projection); err != nil {
		// Treat a corrupt blob as a miss so the read path can repopulate.
		_ = r.client.Del(ctx, key(principalID, fiduciaryID)).Err()
		return nil, false, nil
	}
	return projection, true, nil
}

func (r *Redis) Set(ctx context.Context, principalID, fiduciaryID string, projection models.Projection, ttl time.Duration) error {
	raw, err := json.Marshal(projection)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := r.client.Set(ctx, key(principalID, fiduciaryID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, principalID, fiduciaryID string) error {
	if err := r.client.Del(ctx, key(principalID, fiduciaryID)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
