// Package review applies admin decisions on price proposals and user
// moderation, and announces them on the event bus.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/goliatone/go-fuel-stations/events"
	"github.com/goliatone/go-fuel-stations/station"
)

// ErrInvalidProposal is returned for proposals that cannot be evaluated.
var ErrInvalidProposal = errors.New("invalid proposal")

// Proposal is a user-submitted price for one fuel at one station.
type Proposal struct {
	ID        uuid.UUID
	User      events.UserRef
	StationID uuid.UUID
	FuelType  string
	Price     decimal.Decimal
}

// Validate checks the proposal can be applied.
func (p Proposal) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.StationID, validation.By(notNil)),
		validation.Field(&p.FuelType, validation.Required),
		validation.Field(&p.Price, validation.By(positive)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProposal, err)
	}
	if err := validation.Validate(p.User.Email, validation.Required, validation.Length(3, 254)); err != nil {
		return fmt.Errorf("%w: user email: %w", ErrInvalidProposal, err)
	}
	return nil
}

func notNil(value any) error {
	if id, _ := value.(uuid.UUID); id == uuid.Nil {
		return errors.New("cannot be blank")
	}
	return nil
}

func positive(value any) error {
	if d, _ := value.(decimal.Decimal); !d.IsPositive() {
		return errors.New("must be greater than 0")
	}
	return nil
}

// Outcome is what Evaluate did.
type Outcome struct {
	Event  events.ProposalEvaluated
	Price  *station.FuelPrice
	Report events.Report
}

// Reviewer evaluates proposals.
type Reviewer struct {
	prices station.PriceWriter
	bus    *events.Bus
	logger zerolog.Logger
	now    func() time.Time
}

// Option configures a Reviewer.
type Option func(*Reviewer)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Reviewer) { r.logger = l }
}

// WithClock overrides the clock used for price validity.
func WithClock(now func() time.Time) Option {
	return func(r *Reviewer) { r.now = now }
}

// NewReviewer creates a Reviewer writing accepted prices to prices.
func NewReviewer(prices station.PriceWriter, bus *events.Bus, opts ...Option) *Reviewer {
	r := &Reviewer{prices: prices, bus: bus, logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Evaluate records the admin's decision. An accepted proposal becomes the
// station's current price. ProposalEvaluated is published after the write
// and Evaluate returns only once every handler has run, so callers observe
// invalidated caches. Handler failures are reported in Outcome.Report and
// never fail the evaluation.
func (r *Reviewer) Evaluate(ctx context.Context, p Proposal, admin events.UserRef, accept bool) (Outcome, error) {
	if err := p.Validate(); err != nil {
		return Outcome{}, err
	}

	now := r.now()
	var out Outcome
	if accept {
		price, err := r.prices.ReplacePrice(ctx, p.StationID, strings.ToUpper(p.FuelType), p.Price, now)
		if err != nil {
			return Outcome{}, fmt.Errorf("apply proposal %s: %w", p.ID, err)
		}
		out.Price = &price
	}

	out.Event = events.ProposalEvaluated{
		User:          p.User,
		Admin:         admin,
		StationID:     p.StationID,
		FuelType:      strings.ToUpper(p.FuelType),
		ProposedPrice: p.Price,
		Accepted:      accept,
		EvaluatedAt:   now,
	}
	out.Report = events.Publish(ctx, r.bus, out.Event)

	r.logger.Info().
		Stringer("proposal", p.ID).
		Stringer("station", p.StationID).
		Str("fuel", out.Event.FuelType).
		Bool("accepted", accept).
		Int("handler_failures", len(out.Report.Failed())).
		Msg("proposal evaluated")
	return out, nil
}
