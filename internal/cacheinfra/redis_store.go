package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-fuel-stations/cache"
)

// RedisConfig configures the Redis connection used by RedisStore.
type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ScanCount is the COUNT hint for SCAN and the UNLINK batch size.
	ScanCount int64
}

// DefaultRedisConfig returns defaults for a local Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		URL:          "redis://localhost:6379/0",
		PoolSize:     10,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		ScanCount:    500,
	}
}

// Validate checks if the configuration values are valid.
func (c RedisConfig) Validate() error {
	if c.URL == "" {
		return &cache.ConfigError{Field: "URL", Message: "cannot be empty"}
	}
	if c.PoolSize < 0 {
		return &cache.ConfigError{Field: "PoolSize", Message: "must be non-negative"}
	}
	if c.ScanCount <= 0 {
		return &cache.ConfigError{Field: "ScanCount", Message: "must be greater than 0"}
	}
	return nil
}

// NewRedisClient parses cfg.URL and returns a connected client.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisStore is a cache.Store shared by every instance of the service.
// Any error other than a missing key is reported as cache.ErrUnavailable.
type RedisStore struct {
	client    redis.UniversalClient
	scanCount int64
}

var _ cache.Store = (*RedisStore)(nil)

// NewRedisStore wraps client. The client lifecycle stays with the caller.
func NewRedisStore(client redis.UniversalClient, scanCount int64) *RedisStore {
	if scanCount <= 0 {
		scanCount = DefaultRedisConfig().ScanCount
	}
	return &RedisStore{client: client, scanCount: scanCount}
}

// Get implements cache.Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable(ctx, "get", err)
	}
	return data, true, nil
}

// Set implements cache.Store using SET with an expiry.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(ctx, "set", err)
	}
	return nil
}

// Delete implements cache.Store.
func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, unavailable(ctx, "del", err)
	}
	return n > 0, nil
}

// DeleteByPattern implements cache.Store. It walks the keyspace with
// SCAN MATCH and removes matches with UNLINK in batches, so it never blocks
// the server the way KEYS would. Keys written while the scan runs may be
// missed.
func (s *RedisStore) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	removed := 0
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, s.scanCount).Result()
		if err != nil {
			return removed, unavailable(ctx, "scan", err)
		}
		if len(keys) > 0 {
			n, err := s.client.Unlink(ctx, keys...).Result()
			if err != nil {
				return removed, unavailable(ctx, "unlink", err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(ctx, "ping", err)
	}
	return nil
}

// unavailable keeps context errors intact so callers can tell cancellation
// apart from an unreachable server.
func unavailable(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("redis %s: %w: %w", op, cache.ErrUnavailable, err)
}
