package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concur/internal/consent/cache"
	"concur/internal/consent/models"
	"concur/pkg/platform/circuit"
)

// flakyCache fails every call while failing is set and counts calls through.
type flakyCache struct {
	inner   cache.Cache
	failing bool
	calls   int
}

func (f *flakyCache) Get(ctx context.Context, p, d string) (models.Projection, bool, error) {
	f.calls++
	if f.failing {
		return nil, false, errors.New("backend down")
	}
	return f.inner.Get(ctx, p, d)
}

func (f *flakyCache) Set(ctx context.Context, p, d string, projection models.Projection, ttl time.Duration) error {
	f.calls++
	if f.failing {
		return errors.New("backend down")
	}
	return f.inner.Set(ctx, p, d, projection, ttl)
}

func (f *flakyCache) Delete(ctx context.Context, p, d string) error {
	f.calls++
	if f.failing {
		return errors.New("backend down")
	}
	return f.inner.Delete(ctx, p, d)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyCache{inner: cache.NewMemory(), failing: true}
	br := circuit.New("cache", circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(2))
	c := cache.NewBreaker(flaky, br, nil)

	for i := 0; i < 3; i++ {
		_, _, err := c.Get(ctx, "dp-1", "df-1")
		assert.Error(t, err)
	}
	assert.True(t, br.IsOpen())
}

func TestBreakerSkipsWritesWhileOpen(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyCache{inner: cache.NewMemory(), failing: true}
	br := circuit.New("cache", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(2))
	c := cache.NewBreaker(flaky, br, nil)

	_, _, _ = c.Get(ctx, "dp-1", "df-1")
	require.True(t, br.IsOpen())

	callsBefore := flaky.calls
	assert.NoError(t, c.Set(ctx, "dp-1", "df-1", projectionFixture(), time.Minute))
	assert.NoError(t, c.Delete(ctx, "dp-1", "df-1"))
	assert.Equal(t, callsBefore, flaky.calls, "writes must not reach an open backend")
}

func TestBreakerClosesAfterSuccessfulProbes(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyCache{inner: cache.NewMemory(), failing: true}
	br := circuit.New("cache", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(2))
	c := cache.NewBreaker(flaky, br, nil)

	_, _, _ = c.Get(ctx, "dp-1", "df-1")
	require.True(t, br.IsOpen())

	flaky.failing = false
	for i := 0; i < 2; i++ {
		_, _, err := c.Get(ctx, "dp-1", "df-1")
		require.NoError(t, err)
	}
	assert.False(t, br.IsOpen())

	require.NoError(t, c.Set(ctx, "dp-1", "df-1", projectionFixture(), time.Minute))
	got, ok, err := c.Get(ctx, "dp-1", "df-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, projectionFixture(), got)
}
