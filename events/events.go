// Package events defines the domain events raised by mutations and the
// in-process bus that delivers them.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Named is implemented by events that report a stable name for logs and
// metrics.
type Named interface {
	EventName() string
}

// UserRef identifies the user an event is about.
type UserRef struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// ProposalEvaluated is raised after an admin accepts or rejects a price
// proposal.
type ProposalEvaluated struct {
	User          UserRef
	Admin         UserRef
	StationID     uuid.UUID
	FuelType      string
	ProposedPrice decimal.Decimal
	Accepted      bool
	EvaluatedAt   time.Time
}

func (ProposalEvaluated) EventName() string { return "proposal.evaluated" }

// UserBanned is raised when an admin bans a user for Days days.
type UserBanned struct {
	User   UserRef
	Admin  UserRef
	Reason string
	Days   int
}

func (UserBanned) EventName() string { return "user.banned" }

// UserUnlocked is raised when a ban is lifted.
type UserUnlocked struct {
	User  UserRef
	Admin UserRef
}

func (UserUnlocked) EventName() string { return "user.unlocked" }

// UserRegistered is raised once a new account exists.
type UserRegistered struct {
	User              UserRef
	ConfirmationToken string
}

func (UserRegistered) EventName() string { return "user.registered" }
