//go:build integration

package cacheinfra_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/goliatone/go-fuel-stations/cache"
	"github.com/goliatone/go-fuel-stations/internal/cacheinfra"
)

type RedisStoreSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *redis.Client
	store     *cacheinfra.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	url, err := container.ConnectionString(ctx)
	s.Require().NoError(err)

	cfg := cacheinfra.DefaultRedisConfig()
	cfg.URL = url
	cfg.ScanCount = 10
	client, err := cacheinfra.NewRedisClient(ctx, cfg)
	s.Require().NoError(err)

	s.client = client
	s.store = cacheinfra.NewRedisStore(client, cfg.ScanCount)
}

func (s *RedisStoreSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if err := testcontainers.TerminateContainer(s.container); err != nil {
		s.T().Logf("failed to terminate redis container: %v", err)
	}
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(context.Background()).Err())
}

func (s *RedisStoreSuite) TestGetSetDelete() {
	ctx := context.Background()

	_, found, err := s.store.Get(ctx, "users:top")
	s.Require().NoError(err)
	s.False(found)

	s.Require().NoError(s.store.Set(ctx, "users:top", []byte("v"), time.Minute))

	data, found, err := s.store.Get(ctx, "users:top")
	s.Require().NoError(err)
	s.True(found)
	s.Equal("v", string(data))

	ttl, err := s.client.TTL(ctx, "users:top").Result()
	s.Require().NoError(err)
	s.InDelta(time.Minute.Seconds(), ttl.Seconds(), 2)

	existed, err := s.store.Delete(ctx, "users:top")
	s.Require().NoError(err)
	s.True(existed)

	existed, err = s.store.Delete(ctx, "users:top")
	s.Require().NoError(err)
	s.False(existed)
}

func (s *RedisStoreSuite) TestDeleteByPatternAcrossScanPages() {
	ctx := context.Background()

	for i := 0; i < 75; i++ {
		s.Require().NoError(s.store.Set(ctx, fmt.Sprintf("stations:list::{page=%d}", i), []byte("x"), time.Minute))
	}
	s.Require().NoError(s.store.Set(ctx, "stations:map::{}", []byte("x"), time.Minute))
	s.Require().NoError(s.store.Set(ctx, "userstats:ann@example.com", []byte("x"), time.Minute))

	n, err := s.store.DeleteByPattern(ctx, "stations:list*")
	s.Require().NoError(err)
	s.Equal(75, n)

	n, err = s.store.DeleteByPattern(ctx, "stations:list*")
	s.Require().NoError(err)
	s.Equal(0, n)

	remaining, err := s.client.DBSize(ctx).Result()
	s.Require().NoError(err)
	s.EqualValues(2, remaining)
}

func (s *RedisStoreSuite) TestPatternRulesMatchMemoryStore() {
	ctx := context.Background()

	keys := []string{"users:list", "users:list::2", "users:top", "userinfo:ann@example.com", "users:lis"}
	patterns := []string{"users:list*", "users:[lt]*", "user?:*", `users:lis\t*`}

	for _, pattern := range patterns {
		for _, k := range keys {
			s.Require().NoError(s.store.Set(ctx, k, []byte("x"), time.Minute))
		}

		want := 0
		for _, k := range keys {
			if cache.MatchPattern(pattern, k) {
				want++
			}
		}

		n, err := s.store.DeleteByPattern(ctx, pattern)
		s.Require().NoError(err)
		s.Equal(want, n, "pattern %q", pattern)
	}
}

func (s *RedisStoreSuite) TestReadThroughService() {
	svc, err := cache.NewService(s.store, cache.DefaultConfig())
	s.Require().NoError(err)
	ctx := context.Background()

	type stats struct {
		Submitted int
		Accepted  int
	}

	calls := 0
	fetch := func(context.Context) (stats, error) {
		calls++
		return stats{Submitted: 3, Accepted: 2}, nil
	}

	for i := 0; i < 2; i++ {
		got, err := cache.GetOrSet(ctx, svc, "userstats:ann@example.com", svc.TTL(cache.TierShort), fetch)
		s.Require().NoError(err)
		s.Equal(stats{Submitted: 3, Accepted: 2}, got)
	}
	s.Equal(1, calls)
}
