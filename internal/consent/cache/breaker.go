package cache

import (
	"context"
	"log/slog"
	"time"

	"concur/internal/consent/models"
	"concur/pkg/platform/circuit"
)

// Breaker wraps a Cache with a circuit breaker. While the breaker is open,
// Set and Delete are skipped entirely and Get doubles as the recovery probe:
// a failing probe stays a miss, enough successful probes close the breaker.
type Breaker struct {
	inner   Cache
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewBreaker wraps inner with the given breaker.
func NewBreaker(inner Cache, breaker *circuit.Breaker, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{inner: inner, breaker: breaker, logger: logger}
}

func (b *Breaker) Get(ctx context.Context, principalID, fiduciaryID string) (models.Projection, bool, error) {
	projection, ok, err := b.inner.Get(ctx, principalID, fiduciaryID)
	if err != nil {
		b.recordFailure("get", err)
		return nil, false, err
	}
	if _, change := b.breaker.RecordSuccess(); change.Closed {
		b.logger.Info("cache breaker closed", "name", b.breaker.Name())
	}
	return projection, ok, nil
}

func (b *Breaker) Set(ctx context.Context, principalID, fiduciaryID string, projection models.Projection, ttl time.Duration) error {
	if b.breaker.IsOpen() {
		return nil
	}
	if err := b.inner.Set(ctx, principalID, fiduciaryID, projection, ttl); err != nil {
		b.recordFailure("set", err)
		return err
	}
	b.breaker.RecordSuccess()
	return nil
}

func (b *Breaker) Delete(ctx context.Context, principalID, fiduciaryID string) error {
	if b.breaker.IsOpen() {
		return nil
	}
	if err := b.inner.Delete(ctx, principalID, fiduciaryID); err != nil {
		b.recordFailure("delete", err)
		return err
	}
	b.breaker.RecordSuccess()
	return nil
}

func (b *Breaker) recordFailure(op string, err error) {
	if _, change := b.breaker.RecordFailure(); change.Opened {
		b.logger.Warn("cache breaker opened",
			"name", b.breaker.Name(),
			"op", op,
			"error", err,
		)
	}
}
