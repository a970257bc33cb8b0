package events_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-fuel-stations/events"
)

func proposal(accepted bool) events.ProposalEvaluated {
	return events.ProposalEvaluated{
		User:          events.UserRef{ID: uuid.New(), Email: "ann@example.com"},
		StationID:     uuid.New(),
		FuelType:      "PB95",
		ProposedPrice: decimal.RequireFromString("6.19"),
		Accepted:      accepted,
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
	errs  int
}

func (o *recordingObserver) HandlerCompleted(event, handler string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, event+"/"+handler)
	if err != nil {
		o.errs++
	}
}

func TestPublish_RegistrationOrder(t *testing.T) {
	bus := events.NewBus()
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		events.Subscribe(bus, name, func(context.Context, events.ProposalEvaluated) error {
			order = append(order, name)
			return nil
		})
	}

	report := events.Publish(context.Background(), bus, proposal(true))

	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.Equal(t, "proposal.evaluated", report.Event)
	require.Len(t, report.Results, 3)
	assert.Empty(t, report.Failed())
	assert.NoError(t, report.Err())
	assert.Equal(t, []string{"first", "second", "third"}, events.Handlers[events.ProposalEvaluated](bus))
}

func TestPublish_DispatchesByConcreteType(t *testing.T) {
	bus := events.NewBus()
	var banned, unlocked int
	events.Subscribe(bus, "banned", func(context.Context, events.UserBanned) error {
		banned++
		return nil
	})
	events.Subscribe(bus, "unlocked", func(context.Context, events.UserUnlocked) error {
		unlocked++
		return nil
	})

	events.Publish(context.Background(), bus, events.UserBanned{Days: 3})

	assert.Equal(t, 1, banned)
	assert.Equal(t, 0, unlocked)
}

func TestPublish_NoHandlers(t *testing.T) {
	bus := events.NewBus()

	report := events.Publish(context.Background(), bus, events.UserRegistered{})

	assert.Equal(t, "user.registered", report.Event)
	assert.Empty(t, report.Results)
	assert.NoError(t, report.Err())
}

func TestPublish_FailureDoesNotStopSiblings(t *testing.T) {
	var logs bytes.Buffer
	observer := &recordingObserver{}
	bus := events.NewBus(
		events.WithLogger(zerolog.New(&logs)),
		events.WithObserver(observer),
	)

	boom := errors.New("smtp down")
	statsCalled := false
	events.Subscribe(bus, "email", func(context.Context, events.ProposalEvaluated) error {
		return boom
	})
	events.Subscribe(bus, "stats", func(context.Context, events.ProposalEvaluated) error {
		statsCalled = true
		return nil
	})

	report := events.Publish(context.Background(), bus, proposal(false))

	assert.True(t, statsCalled)
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "email", failed[0].Handler)
	assert.ErrorIs(t, failed[0].Err, boom)

	var handlerErr *events.HandlerError
	require.ErrorAs(t, report.Err(), &handlerErr)
	assert.Equal(t, "email", handlerErr.Handler)
	assert.Equal(t, "proposal.evaluated", handlerErr.Event)

	assert.Contains(t, logs.String(), `"handler":"email"`)
	assert.Contains(t, logs.String(), `"event":"proposal.evaluated"`)
	assert.Equal(t, []string{"proposal.evaluated/email", "proposal.evaluated/stats"}, observer.calls)
	assert.Equal(t, 1, observer.errs)
}

func TestPublish_RecoversPanics(t *testing.T) {
	bus := events.NewBus()
	after := false
	events.Subscribe(bus, "panics", func(context.Context, events.UserBanned) error {
		panic("nil map")
	})
	events.Subscribe(bus, "after", func(context.Context, events.UserBanned) error {
		after = true
		return nil
	})

	report := events.Publish(context.Background(), bus, events.UserBanned{})

	assert.True(t, after)
	require.Len(t, report.Failed(), 1)
	assert.ErrorIs(t, report.Results[0].Err, events.ErrHandlerPanic)
	assert.Contains(t, report.Results[0].Err.Error(), "nil map")
}

func TestPublish_TimesOutSlowHandler(t *testing.T) {
	bus := events.NewBus(events.WithHandlerTimeout(20 * time.Millisecond))
	release := make(chan struct{})
	defer close(release)

	events.Subscribe(bus, "stuck", func(context.Context, events.UserUnlocked) error {
		<-release
		return nil
	})
	var next atomic.Bool
	events.Subscribe(bus, "next", func(context.Context, events.UserUnlocked) error {
		next.Store(true)
		return nil
	})

	start := time.Now()
	report := events.Publish(context.Background(), bus, events.UserUnlocked{})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, next.Load())
	require.Len(t, report.Results, 2)
	assert.ErrorIs(t, report.Results[0].Err, events.ErrHandlerTimeout)
	assert.NoError(t, report.Results[1].Err)
}

func TestPublish_HandlerContext(t *testing.T) {
	bus := events.NewBus(events.WithHandlerTimeout(time.Second))

	type ctxKey struct{}
	var (
		value    any
		ctxErr   error
		deadline bool
	)
	events.Subscribe(bus, "inspect", func(ctx context.Context, _ events.ProposalEvaluated) error {
		value = ctx.Value(ctxKey{})
		ctxErr = ctx.Err()
		_, deadline = ctx.Deadline()
		return nil
	})

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "req-1"))
	cancel()
	events.Publish(ctx, bus, proposal(true))

	assert.Equal(t, "req-1", value)
	assert.NoError(t, ctxErr, "handlers should run even if the request was cancelled")
	assert.True(t, deadline)
}

func TestSubscribe_Concurrent(t *testing.T) {
	bus := events.NewBus()
	var calls atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events.Subscribe(bus, "h", func(context.Context, events.UserRegistered) error {
				calls.Add(1)
				return nil
			})
		}()
	}
	wg.Wait()

	report := events.Publish(context.Background(), bus, events.UserRegistered{})
	assert.Len(t, report.Results, 32)
	assert.Equal(t, int64(32), calls.Load())
}

func TestWithHandlerTimeout_IgnoresNonPositive(t *testing.T) {
	bus := events.NewBus(events.WithHandlerTimeout(0))
	var deadline time.Time
	events.Subscribe(bus, "h", func(ctx context.Context, _ events.UserRegistered) error {
		deadline, _ = ctx.Deadline()
		return nil
	})

	before := time.Now()
	events.Publish(context.Background(), bus, events.UserRegistered{})

	assert.WithinDuration(t, before.Add(events.DefaultHandlerTimeout), deadline, time.Second)
}
