// Package httpapi exposes station search and user statistics over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-fuel-stations/events"
	"github.com/goliatone/go-fuel-stations/paging"
	"github.com/goliatone/go-fuel-stations/review"
	"github.com/goliatone/go-fuel-stations/search"
	"github.com/goliatone/go-fuel-stations/station"
	"github.com/goliatone/go-fuel-stations/userstats"
)

// StationQueries are the cached station reads.
type StationQueries interface {
	List(ctx context.Context, c search.Criteria) (paging.Page[station.ListItem], error)
	Map(ctx context.Context, c search.Criteria) ([]station.MapPoint, error)
	Nearest(ctx context.Context, c search.Criteria, limit int) ([]station.ListItem, error)
}

// StatsQueries are the cached user statistics reads.
type StatsQueries interface {
	Stats(ctx context.Context, email string) (userstats.Stats, error)
	Top(ctx context.Context) ([]userstats.Stats, error)
}

// ProposalEvaluator applies admin decisions on proposals.
type ProposalEvaluator interface {
	Evaluate(ctx context.Context, p review.Proposal, admin events.UserRef, accept bool) (review.Outcome, error)
}

// UserModeration bans and unlocks users.
type UserModeration interface {
	Ban(ctx context.Context, user, admin events.UserRef, reason string, days int) (events.Report, error)
	Unlock(ctx context.Context, user, admin events.UserRef) events.Report
}

// RequestObserver records request durations.
type RequestObserver interface {
	ObserveRequest(route, status string, start time.Time)
}

// Handler serves the HTTP API.
type Handler struct {
	stations   StationQueries
	stats      StatsQueries
	proposals  ProposalEvaluator
	moderation UserModeration
	observer   RequestObserver
	logger     zerolog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithObserver records request metrics.
func WithObserver(o RequestObserver) Option {
	return func(h *Handler) { h.observer = o }
}

// WithProposals enables the admin evaluation endpoint.
func WithProposals(p ProposalEvaluator) Option {
	return func(h *Handler) { h.proposals = p }
}

// WithModeration enables the admin ban and unlock endpoints.
func WithModeration(m UserModeration) Option {
	return func(h *Handler) { h.moderation = m }
}

// New creates a Handler.
func New(stations StationQueries, stats StatsQueries, opts ...Option) *Handler {
	h := &Handler{stations: stations, stats: stats, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/stations", func(r chi.Router) {
		r.Get("/", h.listStations)
		r.Get("/map", h.mapStations)
		r.Get("/nearest", h.nearestStations)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/top", h.topUsers)
		r.Get("/{email}/stats", h.userStats)
	})

	if h.proposals != nil {
		r.Post("/admin/proposals/evaluate", h.evaluateProposal)
	}
	if h.moderation != nil {
		r.Post("/admin/users/{email}/ban", h.banUser)
		r.Post("/admin/users/{email}/unlock", h.unlockUser)
	}
	return r
}

func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		if h.observer != nil {
			h.observer.ObserveRequest(route, strconv.Itoa(ww.Status()), start)
		}
		h.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request served")
	})
}
