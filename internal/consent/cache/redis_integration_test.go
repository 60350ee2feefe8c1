//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"concur/internal/consent/cache"
	"concur/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.Redis
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.cache = cache.NewRedis(s.redis.Client)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()

	_, ok, err := s.cache.Get(ctx, "dp-1", "df-1")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.cache.Set(ctx, "dp-1", "df-1", projectionFixture(), time.Minute))

	got, ok, err := s.cache.Get(ctx, "dp-1", "df-1")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(projectionFixture(), got)
}

func (s *RedisCacheSuite) TestTTLExpiry() {
	ctx := context.Background()

	s.Require().NoError(s.cache.Set(ctx, "dp-1", "df-1", projectionFixture(), time.Second))

	time.Sleep(1500 * time.Millisecond)

	_, ok, err := s.cache.Get(ctx, "dp-1", "df-1")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RedisCacheSuite) TestDelete() {
	ctx := context.Background()

	s.Require().NoError(s.cache.Set(ctx, "dp-1", "df-1", projectionFixture(), time.Minute))
	s.Require().NoError(s.cache.Delete(ctx, "dp-1", "df-1"))

	_, ok, err := s.cache.Get(ctx, "dp-1", "df-1")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RedisCacheSuite) TestCorruptEntryIsAMiss() {
	ctx := context.Background()

	err := s.redis.Client.Set(ctx, "consent:projection:dp-1:df-1", "not-json{", time.Minute).Err()
	s.Require().NoError(err)

	_, ok, err := s.cache.Get(ctx, "dp-1", "df-1")
	s.Require().NoError(err)
	s.False(ok)
}
