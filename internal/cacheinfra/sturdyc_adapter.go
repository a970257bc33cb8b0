package cacheinfra

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"

	"github.com/goliatone/go-fuel-stations/cache"
)

// Config sizes the in-process store.
type Config struct {
	// Capacity is the entry limit across all shards.
	Capacity int

	// NumShards spreads keys over independently locked shards.
	NumShards int

	// TTL is the longest an entry may live. Entries written with a shorter
	// ttl expire earlier.
	TTL time.Duration

	// EvictionPercentage is the share of a full shard dropped to make room,
	// between 1 and 100.
	EvictionPercentage int

	// EvictionInterval is how often expired entries are swept. Zero keeps
	// the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig fits the station and user caches of a single instance. The
// ttl covers the very-long tier.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                24 * time.Hour,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions returns the optional sturdyc settings. The positional
// arguments of sturdyc.New are taken from the struct directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &cache.ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &cache.ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &cache.ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &cache.ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	if c.EvictionInterval < 0 {
		return &cache.ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}
	return nil
}

// entry carries its own deadline because sturdyc applies a single ttl to
// the whole client.
type entry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is an in-process cache.Store backed by a sturdyc client.
type MemoryStore struct {
	client *sturdyc.Client[entry]
	maxTTL time.Duration
	now    func() time.Time
}

var _ cache.Store = (*MemoryStore)(nil)

// NewMemoryStore validates cfg and creates a sturdyc-backed store.
func NewMemoryStore(cfg Config) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[entry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &MemoryStore{client: client, maxTTL: cfg.TTL, now: time.Now}, nil
}

// Get implements cache.Store. Entries past their own deadline are dropped
// and reported as missing.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	e, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(e.expiresAt) {
		s.client.Delete(key)
		return nil, false, nil
	}
	return e.data, true, nil
}

// Set implements cache.Store. A ttl longer than Config.TTL is capped by the
// client.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 || ttl > s.maxTTL {
		ttl = s.maxTTL
	}

	data := make([]byte, len(value))
	copy(data, value)
	s.client.Set(key, entry{data: data, expiresAt: s.now().Add(ttl)})
	return nil
}

// Delete implements cache.Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	_, existed, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	s.client.Delete(key)
	return existed, nil
}

// DeleteByPattern implements cache.Store by scanning every key and deleting
// those matching the glob pattern. Expired entries are swept but not
// counted, matching Delete.
func (s *MemoryStore) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed := 0
	now := s.now()
	for _, key := range s.client.ScanKeys() {
		if !cache.MatchPattern(pattern, key) {
			continue
		}
		e, ok := s.client.Get(key)
		s.client.Delete(key)
		if ok && now.Before(e.expiresAt) {
			removed++
		}
	}
	return removed, nil
}

// Size returns the number of entries currently held, expired or not.
func (s *MemoryStore) Size() int {
	return s.client.Size()
}
