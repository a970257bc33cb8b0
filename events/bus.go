package events

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// DefaultHandlerTimeout bounds a single handler invocation.
const DefaultHandlerTimeout = 5 * time.Second

var (
	// ErrHandlerTimeout is recorded when a handler outlives its timeout.
	ErrHandlerTimeout = errors.New("event handler timed out")
	// ErrHandlerPanic is recorded when a handler panics.
	ErrHandlerPanic = errors.New("event handler panicked")
)

// Handler reacts to one event type.
type Handler[E any] func(ctx context.Context, event E) error

// Observer is told about every handler invocation.
type Observer interface {
	HandlerCompleted(event, handler string, took time.Duration, err error)
}

// Result is the outcome of one handler for one publish call.
type Result struct {
	Handler  string
	Err      error
	Duration time.Duration
}

// Report collects the results of a publish call in registration order.
type Report struct {
	Event   string
	Results []Result
}

// Failed returns the results that carry an error.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Err joins every handler failure into one error, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, &HandlerError{Event: r.Event, Handler: res.Handler, Err: res.Err})
	}
	return errors.Join(errs...)
}

// HandlerError names the handler that failed.
type HandlerError struct {
	Event   string
	Handler string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s for %s: %v", e.Handler, e.Event, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

type registration struct {
	name   string
	invoke func(ctx context.Context, event any) error
}

// Bus delivers events to the handlers subscribed to their concrete type.
// Handlers run one after another in registration order. A failing, panicking
// or slow handler is recorded and logged; it never stops the handlers after
// it and never surfaces as an error of the publisher.
type Bus struct {
	handlers *xsync.MapOf[reflect.Type, []registration]
	timeout  time.Duration
	logger   zerolog.Logger
	observer Observer
}

// Option configures a Bus.
type Option func(*Bus)

// WithHandlerTimeout sets the per-handler timeout.
func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithLogger sets the logger used for handler failures.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithObserver registers an observer, typically metrics.
func WithObserver(o Observer) Option {
	return func(b *Bus) { b.observer = o }
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		handlers: xsync.NewMapOf[reflect.Type, []registration](),
		timeout:  DefaultHandlerTimeout,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for events of type E under name. Names show up in
// logs and reports and should be unique per event type.
func Subscribe[E any](b *Bus, name string, h Handler[E]) {
	reg := registration{
		name: name,
		invoke: func(ctx context.Context, event any) error {
			return h(ctx, event.(E))
		},
	}
	b.handlers.Compute(typeOf[E](), func(old []registration, _ bool) ([]registration, bool) {
		return append(slices.Clone(old), reg), false
	})
}

// Handlers returns the names subscribed to E in registration order.
func Handlers[E any](b *Bus) []string {
	regs, _ := b.handlers.Load(typeOf[E]())
	names := make([]string, len(regs))
	for i, r := range regs {
		names[i] = r.name
	}
	return names
}

// Publish delivers event to every handler subscribed to E and returns once
// each has finished or timed out. Handlers get a context that keeps the
// values of ctx but not its cancellation: the mutation that raised the event
// has already happened and its side effects should follow.
func Publish[E any](ctx context.Context, b *Bus, event E) Report {
	regs, _ := b.handlers.Load(typeOf[E]())
	report := Report{Event: eventName(event), Results: make([]Result, 0, len(regs))}

	base := context.WithoutCancel(ctx)
	for _, reg := range regs {
		start := time.Now()
		err := b.run(base, reg, event)
		took := time.Since(start)

		report.Results = append(report.Results, Result{Handler: reg.name, Err: err, Duration: took})
		if b.observer != nil {
			b.observer.HandlerCompleted(report.Event, reg.name, took, err)
		}
		if err != nil {
			b.logger.Error().
				Err(err).
				Str("event", report.Event).
				Str("handler", reg.name).
				Dur("took", took).
				Msg("event handler failed")
		}
	}
	return report
}

func (b *Bus) run(base context.Context, reg registration, event any) error {
	ctx, cancel := context.WithTimeout(base, b.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			}
		}()
		done <- reg.invoke(ctx, event)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w after %s", ErrHandlerTimeout, b.timeout)
	}
}

func typeOf[E any]() reflect.Type {
	return reflect.TypeOf((*E)(nil)).Elem()
}

func eventName(event any) string {
	if n, ok := event.(Named); ok {
		return n.EventName()
	}
	return reflect.TypeOf(event).String()
}
