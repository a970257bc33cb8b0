package invalidation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-fuel-stations/cache"
	"github.com/goliatone/go-fuel-stations/events"
)

// Handler names as they appear in logs and publish reports.
const (
	ProposalHandlerName = "cache.invalidate.proposal"
	BannedHandlerName   = "cache.invalidate.banned"
	UnlockedHandlerName = "cache.invalidate.unlocked"
)

// Handlers clears the cache entries made stale by domain events. Every
// method is idempotent: removing an absent key or a pattern that matches
// nothing succeeds.
type Handlers struct {
	cache  cache.Invalidator
	logger zerolog.Logger
}

// Option configures Handlers.
type Option func(*Handlers)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Handlers) { h.logger = l }
}

// NewHandlers creates Handlers over inv.
func NewHandlers(inv cache.Invalidator, opts ...Option) *Handlers {
	h := &Handlers{cache: inv, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register subscribes the cache handlers to bus.
func Register(bus *events.Bus, inv cache.Invalidator, opts ...Option) *Handlers {
	h := NewHandlers(inv, opts...)
	events.Subscribe(bus, ProposalHandlerName, h.ProposalEvaluated)
	events.Subscribe(bus, BannedHandlerName, h.UserBanned)
	events.Subscribe(bus, UnlockedHandlerName, h.UserUnlocked)
	return h
}

// ProposalEvaluated always drops the user's stats and the top users list.
// An accepted proposal changed a price, so every station query is dropped
// too.
func (h *Handlers) ProposalEvaluated(ctx context.Context, e events.ProposalEvaluated) error {
	err := h.removeKeys(ctx, UserStatsKey(e.User.Email), UsersTop)
	if !e.Accepted {
		return err
	}
	return errors.Join(err, h.removePatterns(ctx, StationPatterns()...))
}

// UserBanned drops the user lists and the user's own entries.
func (h *Handlers) UserBanned(ctx context.Context, e events.UserBanned) error {
	return h.userChanged(ctx, e.User)
}

// UserUnlocked drops the user lists and the user's own entries.
func (h *Handlers) UserUnlocked(ctx context.Context, e events.UserUnlocked) error {
	return h.userChanged(ctx, e.User)
}

func (h *Handlers) userChanged(ctx context.Context, user events.UserRef) error {
	return errors.Join(
		h.removePatterns(ctx, Prefix(UsersList)),
		h.removeKeys(ctx, UserInfoKey(user.Email), UserStatsKey(user.Email)),
	)
}

func (h *Handlers) removeKeys(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if _, err := h.cache.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
			continue
		}
		h.logger.Debug().Str("key", key).Msg("cache key invalidated")
	}
	return errors.Join(errs...)
}

// removePatterns clears patterns concurrently. A failing pattern does not
// cancel the others.
func (h *Handlers) removePatterns(ctx context.Context, patterns ...string) error {
	var g errgroup.Group
	errs := make([]error, len(patterns))
	for i, pattern := range patterns {
		g.Go(func() error {
			n, err := h.cache.RemoveByPattern(ctx, pattern)
			if err != nil {
				errs[i] = fmt.Errorf("remove pattern %s: %w", pattern, err)
				return nil
			}
			h.logger.Debug().Str("pattern", pattern).Int("removed", n).Msg("cache pattern invalidated")
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
