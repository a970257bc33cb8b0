package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Store is a byte-oriented key/value backend. Implementations must be safe
// for concurrent use and must wrap connectivity failures in ErrUnavailable.
type Store interface {
	// Get returns the stored bytes and whether the key existed.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// DeleteByPattern removes every key matching the glob pattern and returns
	// how many were removed.
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// Invalidator is the write side used by event handlers.
type Invalidator interface {
	Remove(ctx context.Context, key string) (bool, error)
	RemoveByPattern(ctx context.Context, pattern string) (int, error)
}

// MetricsRecorder receives cache outcomes. Lookup results are "hit", "miss",
// "bypass" and "decode_error".
type MetricsRecorder interface {
	CacheLookup(result string)
	CacheRemoved(op string, n int)
	CacheError(op string)
}

// FetchFn is the function signature GetOrSet expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Service is a read-through cache over a Store.
type Service struct {
	store   Store
	codec   Codec
	cfg     Config
	logger  zerolog.Logger
	metrics MetricsRecorder
}

var _ Invalidator = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithCodec replaces the default msgpack codec.
func WithCodec(c Codec) Option {
	return func(s *Service) { s.codec = c }
}

// WithMetrics sets the recorder for cache outcomes.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService validates cfg and creates a Service over store.
func NewService(store Store, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, &ConfigError{Field: "store", Message: "cannot be nil"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		store:   store,
		codec:   MsgpackCodec{},
		cfg:     cfg,
		logger:  zerolog.Nop(),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the duration configured for tier.
func (s *Service) TTL(tier Tier) time.Duration {
	return s.cfg.Duration(tier)
}

// Remove deletes key and reports whether it existed. Removing a missing key
// is not an error.
func (s *Service) Remove(ctx context.Context, key string) (bool, error) {
	existed, err := s.store.Delete(ctx, key)
	if err != nil {
		s.metrics.CacheError("remove")
		s.logger.Warn().Err(err).Str("key", key).Msg("cache remove failed")
		return false, err
	}
	if existed {
		s.metrics.CacheRemoved("key", 1)
	}
	s.logger.Debug().Str("key", key).Bool("existed", existed).Msg("cache key removed")
	return existed, nil
}

// RemoveByPattern deletes every key matching the glob pattern.
func (s *Service) RemoveByPattern(ctx context.Context, pattern string) (int, error) {
	n, err := s.store.DeleteByPattern(ctx, pattern)
	if err != nil {
		s.metrics.CacheError("remove_pattern")
		s.logger.Warn().Err(err).Str("pattern", pattern).Int("removed", n).Msg("cache pattern remove failed")
		return n, err
	}
	s.metrics.CacheRemoved("pattern", n)
	s.logger.Debug().Str("pattern", pattern).Int("removed", n).Msg("cache pattern removed")
	return n, nil
}

// GetOrSet returns the value cached under key, or calls fetch and caches its
// result for ttl (the default TTL when ttl is zero).
//
// When the store fails, fetch is called directly and nothing is written.
// Nothing is written either when fetch fails or when ctx is done by the time
// fetch returns. Concurrent misses on the same key may each call fetch; the
// last write wins.
func GetOrSet[T any](ctx context.Context, s *Service, key string, ttl time.Duration, fetch FetchFn[T]) (T, error) {
	var zero T
	if fetch == nil {
		return zero, &ConfigError{Field: "fetch", Message: "cannot be nil"}
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}

	data, found, err := s.store.Get(ctx, key)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		s.metrics.CacheLookup("bypass")
		event := s.logger.Warn().Err(err).Str("key", key)
		if !errors.Is(err, ErrUnavailable) {
			event = event.Bool("unexpected", true)
		}
		event.Msg("cache read failed, fetching from source")
		return fetch(ctx)
	}

	if found {
		var v T
		err := s.codec.Unmarshal(data, &v)
		if err == nil {
			s.metrics.CacheLookup("hit")
			return v, nil
		}
		s.metrics.CacheLookup("decode_error")
		s.logger.Warn().Err(err).Str("key", key).Msg("cached value could not be decoded, refetching")
	} else {
		s.metrics.CacheLookup("miss")
	}

	v, err := fetch(ctx)
	if err != nil {
		return zero, err
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	encoded, err := s.codec.Marshal(v)
	if err != nil {
		s.metrics.CacheError("encode")
		s.logger.Warn().Err(err).Str("key", key).Msg("value could not be encoded, not cached")
		return v, nil
	}
	if err := s.store.Set(ctx, key, encoded, ttl); err != nil {
		s.metrics.CacheError("set")
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return v, nil
}

type nopMetrics struct{}

func (nopMetrics) CacheLookup(string)       {}
func (nopMetrics) CacheRemoved(string, int) {}
func (nopMetrics) CacheError(string)        {}
