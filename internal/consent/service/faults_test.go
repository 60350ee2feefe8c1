package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concur/internal/consent/cache"
	"concur/internal/consent/models"
	"concur/internal/consent/service"
	"concur/internal/consent/store"
	"concur/internal/directory"
)

// opRecorder collects the order of store and cache operations so ordering
// guarantees can be asserted.
type opRecorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *opRecorder) record(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *opRecorder) sequence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

type recordingStore struct {
	store.Store
	rec *opRecorder
}

func (s *recordingStore) Upsert(ctx context.Context, artifact *models.ConsentArtifact) error {
	s.rec.record("store.upsert")
	return s.Store.Upsert(ctx, artifact)
}

func (s *recordingStore) Fork(ctx context.Context, prevAgreementID string, next *models.ConsentArtifact) error {
	s.rec.record("store.fork")
	return s.Store.Fork(ctx, prevAgreementID, next)
}

type recordingCache struct {
	cache.Cache
	rec *opRecorder
}

func (c *recordingCache) Set(ctx context.Context, p, f string, projection models.Projection, ttl time.Duration) error {
	c.rec.record("cache.set")
	return c.Cache.Set(ctx, p, f, projection, ttl)
}

func (c *recordingCache) Delete(ctx context.Context, p, f string) error {
	c.rec.record("cache.delete")
	return c.Cache.Delete(ctx, p, f)
}

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string, string) (models.Projection, bool, error) {
	return nil, false, errors.New("cache tier down")
}

func (brokenCache) Set(context.Context, string, string, models.Projection, time.Duration) error {
	return errors.New("cache tier down")
}

func (brokenCache) Delete(context.Context, string, string) error {
	return errors.New("cache tier down")
}

func fixedClock(t time.Time) service.Clock {
	return func() time.Time { return t }
}

func TestWriteHappensBeforeCacheMutation(t *testing.T) {
	ctx := context.Background()
	rec := &opRecorder{}
	st := &recordingStore{Store: store.NewMemory(), rec: rec}
	ch := &recordingCache{Cache: cache.NewMemory(), rec: rec}
	engine := service.NewEngine(directory.NewMemory(collectionPointFixture()), st, ch,
		service.WithClock(fixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))),
	)

	_, err := engine.Submit(ctx, submitRequestFixture())
	require.NoError(t, err)
	assert.Equal(t, []string{"store.upsert", "cache.set"}, rec.sequence())

	rec.ops = nil
	require.NoError(t, engine.SetConsentStatus(ctx, testPrincipal, testFiduciary, "p1", false))
	assert.Equal(t, []string{"store.upsert", "cache.delete"}, rec.sequence())

	rec.ops = nil
	require.NoError(t, engine.SetConsentStatus(ctx, testPrincipal, testFiduciary, "p1", true))
	assert.Equal(t, []string{"store.fork", "cache.delete"}, rec.sequence())
}

func TestCacheFailuresAreNonFatal(t *testing.T) {
	ctx := context.Background()
	engine := service.NewEngine(directory.NewMemory(collectionPointFixture()), store.NewMemory(), brokenCache{},
		service.WithClock(fixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))),
	)

	artifact, err := engine.Submit(ctx, submitRequestFixture())
	require.NoError(t, err, "a broken cache must not fail submission")

	projection, err := engine.Read(ctx, testPrincipal, testFiduciary)
	require.NoError(t, err, "a broken cache must not fail reads")
	assert.Equal(t, artifact.AgreementID, projection["Email address"][0].AgreementID)

	require.NoError(t, engine.SetConsentStatus(ctx, testPrincipal, testFiduciary, "p1", false))
	require.NoError(t, engine.SetConsentStatus(ctx, testPrincipal, testFiduciary, "p1", true))
}

type failingStore struct {
	store.Store
}

func (failingStore) Upsert(context.Context, *models.ConsentArtifact) error {
	return errors.New("disk full")
}

func TestStoreFailureAbortsWithoutCacheMutation(t *testing.T) {
	ctx := context.Background()
	rec := &opRecorder{}
	ch := &recordingCache{Cache: cache.NewMemory(), rec: rec}
	engine := service.NewEngine(directory.NewMemory(collectionPointFixture()), failingStore{Store: store.NewMemory()}, ch,
		service.WithClock(fixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))),
	)

	_, err := engine.Submit(ctx, submitRequestFixture())
	require.Error(t, err)
	assert.Empty(t, rec.sequence(), "no cache mutation may precede a durable write")
}
