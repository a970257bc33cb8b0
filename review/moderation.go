package review

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-fuel-stations/events"
)

// ErrInvalidBan is returned for a ban without a positive length.
var ErrInvalidBan = errors.New("ban must last at least one day")

// Moderator keeps the active bans and announces changes.
type Moderator struct {
	bans *xsync.MapOf[string, time.Time]
	bus  *events.Bus
	now  func() time.Time
}

// NewModerator creates a Moderator publishing to bus.
func NewModerator(bus *events.Bus) *Moderator {
	return &Moderator{bans: xsync.NewMapOf[string, time.Time](), bus: bus, now: time.Now}
}

// Ban blocks user for days days and publishes UserBanned.
func (m *Moderator) Ban(ctx context.Context, user, admin events.UserRef, reason string, days int) (events.Report, error) {
	if days < 1 {
		return events.Report{}, ErrInvalidBan
	}
	m.bans.Store(key(user.Email), m.now().AddDate(0, 0, days))
	return events.Publish(ctx, m.bus, events.UserBanned{User: user, Admin: admin, Reason: reason, Days: days}), nil
}

// Unlock lifts the ban on user and publishes UserUnlocked. Unlocking a user
// that is not banned still publishes.
func (m *Moderator) Unlock(ctx context.Context, user, admin events.UserRef) events.Report {
	m.bans.Delete(key(user.Email))
	return events.Publish(ctx, m.bus, events.UserUnlocked{User: user, Admin: admin})
}

// BannedUntil reports when the ban on email ends. Expired bans are dropped.
func (m *Moderator) BannedUntil(email string) (time.Time, bool) {
	until, ok := m.bans.Load(key(email))
	if !ok {
		return time.Time{}, false
	}
	if !m.now().Before(until) {
		m.bans.Delete(key(email))
		return time.Time{}, false
	}
	return until, true
}

func key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
