package cache

import "time"

// Tier names a staleness tolerance. Callers pick a tier instead of a
// duration so the durations can be tuned in one place.
type Tier int

const (
	TierShort Tier = iota
	TierMedium
	TierLong
	TierVeryLong
)

func (t Tier) String() string {
	switch t {
	case TierShort:
		return "short"
	case TierMedium:
		return "medium"
	case TierLong:
		return "long"
	case TierVeryLong:
		return "very-long"
	default:
		return "unknown"
	}
}

// Tiers holds the duration of every Tier.
type Tiers struct {
	Short    time.Duration
	Medium   time.Duration
	Long     time.Duration
	VeryLong time.Duration
}

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	// DefaultTTL applies when GetOrSet is called with a zero ttl.
	DefaultTTL time.Duration

	Tiers Tiers

	// MaxKeyLength bounds generated keys. Longer keys keep their namespace
	// and replace the remainder with a hash. Zero disables folding.
	MaxKeyLength int
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 10 * time.Minute,
		Tiers: Tiers{
			Short:    2 * time.Minute,
			Medium:   10 * time.Minute,
			Long:     time.Hour,
			VeryLong: 24 * time.Hour,
		},
		MaxKeyLength: 512,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if c.DefaultTTL <= 0 {
		return &ConfigError{Field: "DefaultTTL", Message: "must be greater than 0"}
	}
	if c.Tiers.Short <= 0 {
		return &ConfigError{Field: "Tiers.Short", Message: "must be greater than 0"}
	}
	if c.Tiers.Medium < c.Tiers.Short {
		return &ConfigError{Field: "Tiers.Medium", Message: "must not be shorter than Tiers.Short"}
	}
	if c.Tiers.Long < c.Tiers.Medium {
		return &ConfigError{Field: "Tiers.Long", Message: "must not be shorter than Tiers.Medium"}
	}
	if c.Tiers.VeryLong < c.Tiers.Long {
		return &ConfigError{Field: "Tiers.VeryLong", Message: "must not be shorter than Tiers.Long"}
	}
	if c.MaxKeyLength < 0 {
		return &ConfigError{Field: "MaxKeyLength", Message: "must be non-negative"}
	}
	return nil
}

// Duration returns the duration configured for t. Unknown tiers fall back
// to DefaultTTL.
func (c Config) Duration(t Tier) time.Duration {
	switch t {
	case TierShort:
		return c.Tiers.Short
	case TierMedium:
		return c.Tiers.Medium
	case TierLong:
		return c.Tiers.Long
	case TierVeryLong:
		return c.Tiers.VeryLong
	default:
		return c.DefaultTTL
	}
}
