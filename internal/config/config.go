// Package config loads the service configuration from the environment and
// builds the root logger.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-fuel-stations/cache"
	"github.com/goliatone/go-fuel-stations/geo"
	"github.com/goliatone/go-fuel-stations/internal/cacheinfra"
)

// Prefix is prepended to every environment variable name.
const Prefix = "STATIONS"

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the full service configuration.
type Config struct {
	Env      string `envconfig:"ENV" default:"production"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	DB     DBConfig     `envconfig:"DB"`
	Cache  CacheConfig  `envconfig:"CACHE"`
	Events EventsConfig `envconfig:"EVENTS"`

	GeoMeasure string `envconfig:"GEO_MEASURE" default:"planar"`
}

type DBConfig struct {
	Driver string `envconfig:"DRIVER" default:"sqlite3"`
	DSN    string `envconfig:"DSN" default:"file:stations.db?_foreign_keys=on"`
}

type CacheConfig struct {
	Backend            string        `envconfig:"BACKEND" default:"memory"`
	RedisURL           string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	RedisPoolSize      int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	RedisScanCount     int64         `envconfig:"REDIS_SCAN_COUNT" default:"500"`
	Capacity           int           `envconfig:"CAPACITY" default:"10000"`
	NumShards          int           `envconfig:"SHARDS" default:"256"`
	EvictionPercentage int           `envconfig:"EVICTION_PERCENTAGE" default:"10"`
	DefaultTTL         time.Duration `envconfig:"DEFAULT_TTL" default:"10m"`
	ShortTTL           time.Duration `envconfig:"TTL_SHORT" default:"2m"`
	MediumTTL          time.Duration `envconfig:"TTL_MEDIUM" default:"10m"`
	LongTTL            time.Duration `envconfig:"TTL_LONG" default:"1h"`
	VeryLongTTL        time.Duration `envconfig:"TTL_VERY_LONG" default:"24h"`
}

type EventsConfig struct {
	HandlerTimeout time.Duration `envconfig:"HANDLER_TIMEOUT" default:"5s"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot.
func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return &cache.ConfigError{Field: "LogLevel", Message: err.Error()}
	}
	if _, err := geo.ParseMeasure(c.GeoMeasure); err != nil {
		return &cache.ConfigError{Field: "GeoMeasure", Message: err.Error()}
	}
	switch c.Cache.Backend {
	case BackendMemory:
		if err := c.Cache.Memory().Validate(); err != nil {
			return err
		}
	case BackendRedis:
		if err := c.Cache.Redis().Validate(); err != nil {
			return err
		}
	default:
		return &cache.ConfigError{Field: "Cache.Backend", Message: fmt.Sprintf("unknown backend %q", c.Cache.Backend)}
	}
	if err := c.Cache.Service().Validate(); err != nil {
		return err
	}
	if c.Events.HandlerTimeout <= 0 {
		return &cache.ConfigError{Field: "Events.HandlerTimeout", Message: "must be greater than 0"}
	}
	return nil
}

// Measure returns the configured distance measure.
func (c Config) Measure() geo.Measure {
	m, _ := geo.ParseMeasure(c.GeoMeasure)
	return m
}

// Service returns the cache.Config for the read-through service.
func (c CacheConfig) Service() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.DefaultTTL = c.DefaultTTL
	cfg.Tiers = cache.Tiers{
		Short:    c.ShortTTL,
		Medium:   c.MediumTTL,
		Long:     c.LongTTL,
		VeryLong: c.VeryLongTTL,
	}
	return cfg
}

// Memory returns the in-process store configuration. The store ttl covers
// the longest tier.
func (c CacheConfig) Memory() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.VeryLongTTL,
		EvictionPercentage: c.EvictionPercentage,
	}
}

// Redis returns the Redis store configuration.
func (c CacheConfig) Redis() cacheinfra.RedisConfig {
	cfg := cacheinfra.DefaultRedisConfig()
	cfg.URL = c.RedisURL
	cfg.PoolSize = c.RedisPoolSize
	cfg.ScanCount = c.RedisScanCount
	return cfg
}

// IsDevelopment reports whether human-readable logs should be used.
func (c Config) IsDevelopment() bool {
	return c.Env == "local" || c.Env == "development"
}

// NewLogger builds the root logger: console output for local and
// development environments, JSON otherwise.
func (c Config) NewLogger(out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.IsDevelopment() {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "fuel-stations").Logger()
}
