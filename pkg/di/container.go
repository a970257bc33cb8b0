package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-fuel-stations/cache"
	"github.com/goliatone/go-fuel-stations/events"
	"github.com/goliatone/go-fuel-stations/internal/cacheinfra"
	"github.com/goliatone/go-fuel-stations/internal/config"
	"github.com/goliatone/go-fuel-stations/internal/httpapi"
	"github.com/goliatone/go-fuel-stations/internal/metrics"
	"github.com/goliatone/go-fuel-stations/invalidation"
	"github.com/goliatone/go-fuel-stations/repositorycache"
	"github.com/goliatone/go-fuel-stations/review"
	"github.com/goliatone/go-fuel-stations/search"
	"github.com/goliatone/go-fuel-stations/station"
	"github.com/goliatone/go-fuel-stations/userstats"
)

// Container wires every component of the service explicitly. It owns the
// database and Redis connections it opened and releases them in Close.
type Container struct {
	config        config.Config
	logger        zerolog.Logger
	registerer    prometheus.Registerer
	metrics       *metrics.Metrics
	db            *bun.DB
	repo          *station.BunRepository
	redis         *redis.Client
	store         cache.Store
	cacheService  *cache.Service
	keySerializer cache.KeySerializer
	bus           *events.Bus
	recorder      *userstats.Recorder
	stations      *repositorycache.CachedStations
	stats         *userstats.CachedStats
	reviewer      *review.Reviewer
	moderator     *review.Moderator
}

// Option customizes a Container.
type Option func(*Container)

// WithLogger sets the root logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Container) { c.logger = l }
}

// WithRegisterer sets where metrics are registered. Defaults to
// prometheus.DefaultRegisterer.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(c *Container) { c.registerer = r }
}

// WithStore replaces the configured cache backend.
func WithStore(s cache.Store) Option {
	return func(c *Container) { c.store = s }
}

// NewContainer builds the object graph described by cfg.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		config:     cfg,
		logger:     zerolog.Nop(),
		registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics = metrics.New(c.registerer)

	if err := c.openDatabase(); err != nil {
		return nil, err
	}
	if err := c.openStore(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	svc, err := cache.NewService(c.store, cfg.Cache.Service(),
		cache.WithLogger(c.logger.With().Str("component", "cache").Logger()),
		cache.WithMetrics(c.metrics),
	)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.cacheService = svc
	c.keySerializer = cache.NewKeySerializer(cfg.Cache.Service().MaxKeyLength)

	c.bus = events.NewBus(
		events.WithHandlerTimeout(cfg.Events.HandlerTimeout),
		events.WithLogger(c.logger.With().Str("component", "events").Logger()),
		events.WithObserver(c.metrics),
	)
	// Stats are recorded before the cache is cleared so a recomputed entry
	// sees the new counts.
	c.recorder = userstats.NewRecorder()
	userstats.Register(c.bus, c.recorder)
	invalidation.Register(c.bus, c.cacheService,
		invalidation.WithLogger(c.logger.With().Str("component", "invalidation").Logger()))

	pipeline := search.NewPipeline(
		search.WithMeasure(cfg.Measure()),
		search.WithLogger(c.logger.With().Str("component", "search").Logger()),
	)
	c.stations = repositorycache.New(c.repo.Stations(), c.cacheService, pipeline,
		repositorycache.WithWriter(c.repo),
		repositorycache.WithKeySerializer(c.keySerializer),
		repositorycache.WithLogger(c.logger.With().Str("component", "stations").Logger()),
	)
	c.stats = userstats.NewCachedStats(c.recorder, c.cacheService)
	c.reviewer = review.NewReviewer(c.repo, c.bus,
		review.WithLogger(c.logger.With().Str("component", "review").Logger()))
	c.moderator = review.NewModerator(c.bus)

	return c, nil
}

// NewContainerFromEnv loads the configuration from the environment and
// builds a container with a logger derived from it.
func NewContainerFromEnv(ctx context.Context, opts ...Option) (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithLogger(cfg.NewLogger(nil))}, opts...)
	return NewContainer(ctx, cfg, opts...)
}

func (c *Container) openDatabase() error {
	db, err := station.Open(c.config.DB.Driver, c.config.DB.DSN)
	if err != nil {
		return err
	}
	if isSQLite(c.config.DB.Driver) {
		db.SetMaxOpenConns(1)
	}
	c.db = db
	c.repo = station.NewBunRepository(db)
	return nil
}

func (c *Container) openStore(ctx context.Context) error {
	if c.store != nil {
		return nil
	}
	switch c.config.Cache.Backend {
	case config.BackendRedis:
		rcfg := c.config.Cache.Redis()
		client, err := cacheinfra.NewRedisClient(ctx, rcfg)
		if err != nil {
			return fmt.Errorf("connect cache: %w", err)
		}
		c.redis = client
		c.store = cacheinfra.NewRedisStore(client, rcfg.ScanCount)
	default:
		store, err := cacheinfra.NewMemoryStore(c.config.Cache.Memory())
		if err != nil {
			return err
		}
		c.store = store
	}
	return nil
}

// Migrate creates the database schema.
func (c *Container) Migrate(ctx context.Context) error {
	return c.repo.CreateSchema(ctx)
}

// Seed stores stations and clears cached station queries.
func (c *Container) Seed(ctx context.Context, stations []station.Station) error {
	for i := range stations {
		if err := c.stations.SaveStation(ctx, &stations[i]); err != nil {
			return fmt.Errorf("seed station %s: %w", stations[i].ID, err)
		}
	}
	return nil
}

// Close releases the connections opened by the container.
func (c *Container) Close() error {
	var errs []error
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	return errors.Join(errs...)
}

// HTTPHandler returns the API router.
func (c *Container) HTTPHandler() http.Handler {
	return httpapi.New(c.stations, c.stats,
		httpapi.WithProposals(c.reviewer),
		httpapi.WithModeration(c.moderator),
		httpapi.WithObserver(c.metrics),
		httpapi.WithLogger(c.logger.With().Str("component", "http").Logger()),
	).Routes()
}

// Config returns the configuration the container was built from.
func (c *Container) Config() config.Config { return c.config }

// Logger returns the root logger.
func (c *Container) Logger() zerolog.Logger { return c.logger }

// CacheService returns the read-through cache.
func (c *Container) CacheService() *cache.Service { return c.cacheService }

// KeySerializer returns the key serializer shared by cached queries.
func (c *Container) KeySerializer() cache.KeySerializer { return c.keySerializer }

// Store returns the cache backend.
func (c *Container) Store() cache.Store { return c.store }

// Bus returns the event bus.
func (c *Container) Bus() *events.Bus { return c.bus }

// Stations returns the cached station queries.
func (c *Container) Stations() *repositorycache.CachedStations { return c.stations }

// Repository returns the uncached station repository.
func (c *Container) Repository() *station.BunRepository { return c.repo }

// Stats returns the cached user statistics.
func (c *Container) Stats() *userstats.CachedStats { return c.stats }

// Reviewer returns the proposal reviewer.
func (c *Container) Reviewer() *review.Reviewer { return c.reviewer }

// Moderator returns the user moderator.
func (c *Container) Moderator() *review.Moderator { return c.moderator }

// Metrics returns the Prometheus collectors.
func (c *Container) Metrics() *metrics.Metrics { return c.metrics }

func isSQLite(driver string) bool {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return true
	}
	return false
}
