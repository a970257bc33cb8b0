package invalidation_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-fuel-stations/cache"
	"github.com/goliatone/go-fuel-stations/events"
	"github.com/goliatone/go-fuel-stations/internal/cacheinfra"
	"github.com/goliatone/go-fuel-stations/invalidation"
)

var seededKeys = []string{
	"stations:list::{page=1}",
	"stations:list::{page=2}",
	"stations:map::{}",
	"stations:nearest::{lat=52.23}",
	"userstats:ann@example.com",
	"userstats:bob@example.com",
	"userinfo:ann@example.com",
	"users:top",
	"users:list::{page=1}",
	"users:list::{page=2}",
}

func seeded(t *testing.T) (*cacheinfra.MemoryStore, *cache.Service) {
	t.Helper()
	cfg := cacheinfra.DefaultConfig()
	cfg.Capacity = 100
	cfg.NumShards = 2
	store, err := cacheinfra.NewMemoryStore(cfg)
	require.NoError(t, err)
	svc, err := cache.NewService(store, cache.DefaultConfig())
	require.NoError(t, err)

	for _, k := range seededKeys {
		require.NoError(t, store.Set(context.Background(), k, []byte("x"), time.Hour))
	}
	return store, svc
}

func remaining(t *testing.T, store *cacheinfra.MemoryStore) []string {
	t.Helper()
	var out []string
	for _, k := range seededKeys {
		_, found, err := store.Get(context.Background(), k)
		require.NoError(t, err)
		if found {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func ann() events.UserRef {
	return events.UserRef{Email: "Ann@Example.com"}
}

func TestProposalEvaluated_Accepted(t *testing.T) {
	store, svc := seeded(t)
	bus := events.NewBus()
	invalidation.Register(bus, svc)

	report := events.Publish(context.Background(), bus, events.ProposalEvaluated{User: ann(), Accepted: true})
	require.NoError(t, report.Err())

	assert.Equal(t, []string{
		"userinfo:ann@example.com",
		"users:list::{page=1}",
		"users:list::{page=2}",
		"userstats:bob@example.com",
	}, remaining(t, store))
}

func TestProposalEvaluated_Rejected(t *testing.T) {
	store, svc := seeded(t)
	bus := events.NewBus()
	invalidation.Register(bus, svc)

	report := events.Publish(context.Background(), bus, events.ProposalEvaluated{User: ann(), Accepted: false})
	require.NoError(t, report.Err())

	assert.Equal(t, []string{
		"stations:list::{page=1}",
		"stations:list::{page=2}",
		"stations:map::{}",
		"stations:nearest::{lat=52.23}",
		"userinfo:ann@example.com",
		"users:list::{page=1}",
		"users:list::{page=2}",
		"userstats:bob@example.com",
	}, remaining(t, store))
}

func TestUserBannedAndUnlocked(t *testing.T) {
	for _, publish := range []func(context.Context, *events.Bus) events.Report{
		func(ctx context.Context, bus *events.Bus) events.Report {
			return events.Publish(ctx, bus, events.UserBanned{User: ann(), Days: 7, Reason: "spam"})
		},
		func(ctx context.Context, bus *events.Bus) events.Report {
			return events.Publish(ctx, bus, events.UserUnlocked{User: ann()})
		},
	} {
		store, svc := seeded(t)
		bus := events.NewBus()
		invalidation.Register(bus, svc)

		require.NoError(t, publish(context.Background(), bus).Err())
		assert.Equal(t, []string{
			"stations:list::{page=1}",
			"stations:list::{page=2}",
			"stations:map::{}",
			"stations:nearest::{lat=52.23}",
			"users:top",
			"userstats:bob@example.com",
		}, remaining(t, store))
	}
}

func TestUserRegistered_NoCacheAction(t *testing.T) {
	store, svc := seeded(t)
	bus := events.NewBus()
	invalidation.Register(bus, svc)

	report := events.Publish(context.Background(), bus, events.UserRegistered{User: ann()})

	assert.Empty(t, report.Results)
	assert.Len(t, remaining(t, store), len(seededKeys))
}

func TestHandlers_Idempotent(t *testing.T) {
	store, svc := seeded(t)
	h := invalidation.NewHandlers(svc)
	ctx := context.Background()
	e := events.ProposalEvaluated{User: ann(), Accepted: true}

	require.NoError(t, h.ProposalEvaluated(ctx, e))
	first := remaining(t, store)
	require.NoError(t, h.ProposalEvaluated(ctx, e))
	assert.Equal(t, first, remaining(t, store))

	require.NoError(t, h.UserBanned(ctx, events.UserBanned{User: ann()}))
	require.NoError(t, h.UserBanned(ctx, events.UserBanned{User: ann()}))
}

type flakyInvalidator struct {
	mu       sync.Mutex
	patterns []string
	keys     []string
	failOn   string
}

func (f *flakyInvalidator) Remove(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	if key == f.failOn {
		return false, cache.ErrUnavailable
	}
	return true, nil
}

func (f *flakyInvalidator) RemoveByPattern(_ context.Context, pattern string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns = append(f.patterns, pattern)
	if pattern == f.failOn {
		return 0, cache.ErrUnavailable
	}
	return 1, nil
}

func TestProposalEvaluated_PartialFailure(t *testing.T) {
	inv := &flakyInvalidator{failOn: "stations:map*"}
	h := invalidation.NewHandlers(inv)

	err := h.ProposalEvaluated(context.Background(), events.ProposalEvaluated{User: ann(), Accepted: true})

	require.Error(t, err)
	assert.True(t, errors.Is(err, cache.ErrUnavailable))
	assert.Contains(t, err.Error(), "stations:map*")
	assert.ElementsMatch(t, invalidation.StationPatterns(), inv.patterns)
	assert.Equal(t, []string{"userstats:ann@example.com", "users:top"}, inv.keys)
}

func TestUserBanned_KeyFailureStillClearsLists(t *testing.T) {
	inv := &flakyInvalidator{failOn: "userinfo:ann@example.com"}
	h := invalidation.NewHandlers(inv)

	err := h.UserBanned(context.Background(), events.UserBanned{User: ann()})

	require.ErrorIs(t, err, cache.ErrUnavailable)
	assert.Equal(t, []string{"users:list*"}, inv.patterns)
	assert.Equal(t, []string{"userinfo:ann@example.com", "userstats:ann@example.com"}, inv.keys)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "userstats:ann@example.com", invalidation.UserStatsKey(" Ann@Example.COM "))
	assert.Equal(t, "userinfo:ann@example.com", invalidation.UserInfoKey("ann@example.com"))
	assert.Equal(t, "stations:list*", invalidation.Prefix(invalidation.StationsList))
	assert.Equal(t, []string{"stations:list*", "stations:map*", "stations:nearest*"}, invalidation.StationPatterns())
}
