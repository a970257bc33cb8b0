package cacheinfra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-fuel-stations/cache"
)

// unreachableStore points at a closed local port so every command fails fast.
func unreachableStore(t *testing.T) *RedisStore {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, 0)
}

func TestRedisConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultRedisConfig().Validate())

	cfg := DefaultRedisConfig()
	cfg.URL = ""
	var cfgErr *cache.ConfigError
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Equal(t, "URL", cfgErr.Field)

	cfg = DefaultRedisConfig()
	cfg.ScanCount = 0
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Equal(t, "ScanCount", cfgErr.Field)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.URL = "http://not-redis"

	_, err := NewRedisClient(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRedisStore_UnreachableIsUnavailable(t *testing.T) {
	store := unreachableStore(t)
	ctx := context.Background()

	_, _, err := store.Get(ctx, "users:top")
	assert.ErrorIs(t, err, cache.ErrUnavailable)

	assert.ErrorIs(t, store.Set(ctx, "users:top", []byte("x"), time.Minute), cache.ErrUnavailable)

	_, err = store.Delete(ctx, "users:top")
	assert.ErrorIs(t, err, cache.ErrUnavailable)

	_, err = store.DeleteByPattern(ctx, "users:list*")
	assert.ErrorIs(t, err, cache.ErrUnavailable)

	assert.ErrorIs(t, store.Ping(ctx), cache.ErrUnavailable)
}

func TestRedisStore_CancelledContextIsNotUnavailable(t *testing.T) {
	store := unreachableStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := store.Get(ctx, "users:top")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, cache.ErrUnavailable))
}

func TestRedisStore_ServiceFailsOpen(t *testing.T) {
	svc, err := cache.NewService(unreachableStore(t), cache.DefaultConfig())
	require.NoError(t, err)

	calls := 0
	v, err := cache.GetOrSet(context.Background(), svc, "users:top", 0, func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}
