package cache

import "errors"

// ErrUnavailable is wrapped by Store implementations when the backend cannot
// be reached. Service treats it as a reason to bypass the cache, never as a
// failure of the caller's request.
var ErrUnavailable = errors.New("cache unavailable")

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
