//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustline/internal/ratelimit/models"
	"trustline/internal/ratelimit/store"
	"trustline/pkg/testutil/containers"
)

type RedisBucketStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisBucketStore
}

func TestRedisBucketStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisBucketStoreSuite))
}

func (s *RedisBucketStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedisBucketStore(s.redis.Client)
}

func (s *RedisBucketStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisBucketStoreSuite) TestAllowsUpToLimit() {
	ctx := context.Background()
	limit := models.Limit{Requests: 3, Window: time.Minute}

	for i := range 3 {
		res, err := s.store.Allow(ctx, "ip:verify:10.0.0.1", limit)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(3-i-1, res.Remaining)
	}

	res, err := s.store.Allow(ctx, "ip:verify:10.0.0.1", limit)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Zero(res.Remaining)
	s.GreaterOrEqual(res.RetryAfter, 1)

	other, err := s.store.Allow(ctx, "ip:verify:10.0.0.2", limit)
	s.Require().NoError(err)
	s.True(other.Allowed)
}

func (s *RedisBucketStoreSuite) TestWindowSlides() {
	ctx := context.Background()
	limit := models.Limit{Requests: 1, Window: time.Second}

	res, err := s.store.Allow(ctx, "user:write:u1", limit)
	s.Require().NoError(err)
	s.True(res.Allowed)

	res, err = s.store.Allow(ctx, "user:write:u1", limit)
	s.Require().NoError(err)
	s.False(res.Allowed)

	s.Eventually(func() bool {
		res, err := s.store.Allow(ctx, "user:write:u1", limit)
		return err == nil && res.Allowed
	}, 3*time.Second, 200*time.Millisecond)
}

func (s *RedisBucketStoreSuite) TestReset() {
	ctx := context.Background()
	limit := models.Limit{Requests: 1, Window: time.Minute}

	_, err := s.store.Allow(ctx, "ip:read:10.0.0.9", limit)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Reset(ctx, "ip:read:10.0.0.9"))

	res, err := s.store.Allow(ctx, "ip:read:10.0.0.9", limit)
	s.Require().NoError(err)
	s.True(res.Allowed)
}
