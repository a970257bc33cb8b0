// Package userstats keeps per-user proposal statistics and serves them
// through the cache.
package userstats

import (
	"context"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-fuel-stations/cache"
	"github.com/goliatone/go-fuel-stations/events"
	"github.com/goliatone/go-fuel-stations/invalidation"
)

// TopLimit is the size of the cached top users list.
const TopLimit = 10

// HandlerName identifies the recorder on the event bus.
const HandlerName = "userstats.record"

// Stats is a snapshot of one user's proposal history.
type Stats struct {
	Email        string    `json:"email" msgpack:"email"`
	Accepted     int64     `json:"accepted" msgpack:"accepted"`
	Rejected     int64     `json:"rejected" msgpack:"rejected"`
	RegisteredAt time.Time `json:"registeredAt,omitzero" msgpack:"registered_at"`
}

// Evaluated is the number of proposals an admin has decided on.
func (s Stats) Evaluated() int64 {
	return s.Accepted + s.Rejected
}

// AcceptanceRate is Accepted over Evaluated, or 0 with no history.
func (s Stats) AcceptanceRate() float64 {
	if s.Evaluated() == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Evaluated())
}

type counters struct {
	accepted     atomic.Int64
	rejected     atomic.Int64
	registeredAt atomic.Int64
}

// Recorder counts evaluated proposals per user. It is safe for concurrent
// use.
type Recorder struct {
	users *xsync.MapOf[string, *counters]
	now   func() time.Time
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{users: xsync.NewMapOf[string, *counters](), now: time.Now}
}

func (r *Recorder) user(email string) *counters {
	c, _ := r.users.LoadOrCompute(normalize(email), func() *counters { return &counters{} })
	return c
}

// Registered records that the user exists. Calling it again keeps the
// first registration time.
func (r *Recorder) Registered(email string) {
	r.user(email).registeredAt.CompareAndSwap(0, r.now().UnixNano())
}

// Evaluated records one decided proposal.
func (r *Recorder) Evaluated(email string, accepted bool) {
	c := r.user(email)
	if accepted {
		c.accepted.Add(1)
		return
	}
	c.rejected.Add(1)
}

// Get returns the stats of one user. Unknown users get zero stats.
func (r *Recorder) Get(email string) Stats {
	email = normalize(email)
	c, ok := r.users.Load(email)
	if !ok {
		return Stats{Email: email}
	}
	return snapshot(email, c)
}

// Top returns up to n users ordered by accepted proposals, then email.
func (r *Recorder) Top(n int) []Stats {
	all := make([]Stats, 0, r.users.Size())
	r.users.Range(func(email string, c *counters) bool {
		all = append(all, snapshot(email, c))
		return true
	})
	slices.SortFunc(all, func(a, b Stats) int {
		if a.Accepted != b.Accepted {
			if a.Accepted > b.Accepted {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Email, b.Email)
	})
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

func snapshot(email string, c *counters) Stats {
	s := Stats{Email: email, Accepted: c.accepted.Load(), Rejected: c.rejected.Load()}
	if ns := c.registeredAt.Load(); ns != 0 {
		s.RegisteredAt = time.Unix(0, ns).UTC()
	}
	return s
}

// Register subscribes r to the events that change user stats. It should be
// registered before the cache invalidation handlers so a recomputed entry
// already sees the new counts.
func Register(bus *events.Bus, r *Recorder) {
	events.Subscribe(bus, HandlerName, func(_ context.Context, e events.ProposalEvaluated) error {
		r.Evaluated(e.User.Email, e.Accepted)
		return nil
	})
	events.Subscribe(bus, HandlerName, func(_ context.Context, e events.UserRegistered) error {
		r.Registered(e.User.Email)
		return nil
	})
}

// CachedStats reads stats through the cache.
type CachedStats struct {
	recorder *Recorder
	svc      *cache.Service
}

// NewCachedStats wraps r with svc.
func NewCachedStats(r *Recorder, svc *cache.Service) *CachedStats {
	return &CachedStats{recorder: r, svc: svc}
}

// Stats returns one user's stats, cached under userstats:<email>.
func (c *CachedStats) Stats(ctx context.Context, email string) (Stats, error) {
	return cache.GetOrSet(ctx, c.svc, invalidation.UserStatsKey(email), c.svc.TTL(cache.TierLong),
		func(context.Context) (Stats, error) {
			return c.recorder.Get(email), nil
		})
}

// Top returns the TopLimit best users, cached under users:top.
func (c *CachedStats) Top(ctx context.Context) ([]Stats, error) {
	return cache.GetOrSet(ctx, c.svc, invalidation.UsersTop, c.svc.TTL(cache.TierMedium),
		func(context.Context) ([]Stats, error) {
			return c.recorder.Top(TopLimit), nil
		})
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
