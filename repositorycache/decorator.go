package repositorycache

import (
	"context"
	"fmt"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-fuel-stations/cache"
	"github.com/goliatone/go-fuel-stations/invalidation"
	"github.com/goliatone/go-fuel-stations/paging"
	"github.com/goliatone/go-fuel-stations/search"
	"github.com/goliatone/go-fuel-stations/station"
)

const tracerName = "github.com/goliatone/go-fuel-stations/repositorycache"

// DefaultNearestLimit is used when Nearest is called without a limit.
const DefaultNearestLimit = 10

// StationSource lists stored stations. repository.Repository[*station.Station]
// satisfies it.
type StationSource interface {
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]*station.Station, int, error)
}

// StationWriter is the write side of the station store.
type StationWriter interface {
	station.PriceWriter
	SaveStation(ctx context.Context, st *station.Station) error
	DeleteStation(ctx context.Context, id uuid.UUID) error
}

// CachedStations serves station queries through the cache. Each query
// validates its criteria, derives a key under its own namespace and only
// loads stations from the source on a miss.
type CachedStations struct {
	source        StationSource
	writer        StationWriter
	cache         *cache.Service
	keySerializer cache.KeySerializer
	pipeline      *search.Pipeline
	logger        zerolog.Logger
	tracer        trace.Tracer
}

// Option configures CachedStations.
type Option func(*CachedStations)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *CachedStations) { c.logger = l }
}

// WithKeySerializer replaces the default key serializer.
func WithKeySerializer(ks cache.KeySerializer) Option {
	return func(c *CachedStations) { c.keySerializer = ks }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *CachedStations) { c.tracer = t }
}

// WithWriter enables the write methods. Writes go to w and clear every
// station query on success.
func WithWriter(w StationWriter) Option {
	return func(c *CachedStations) { c.writer = w }
}

// New creates CachedStations over source.
func New(source StationSource, svc *cache.Service, pipeline *search.Pipeline, opts ...Option) *CachedStations {
	c := &CachedStations{
		source:        source,
		cache:         svc,
		keySerializer: cache.NewDefaultKeySerializer(),
		pipeline:      pipeline,
		logger:        zerolog.Nop(),
		tracer:        otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns one page of stations matching c, cached under stations:list.
func (c *CachedStations) List(ctx context.Context, criteria search.Criteria) (paging.Page[station.ListItem], error) {
	criteria = criteria.Normalize()
	if err := criteria.Validate(); err != nil {
		return paging.Page[station.ListItem]{}, err
	}

	key := c.key(invalidation.StationsList, criteria)
	ctx, span := c.start(ctx, "List", key)
	defer span.End()

	page, err := cache.GetOrSet(ctx, c.cache, key, c.cache.TTL(cache.TierShort),
		func(ctx context.Context) (paging.Page[station.ListItem], error) {
			results, err := c.search(ctx, criteria)
			if err != nil {
				return paging.Page[station.ListItem]{}, err
			}
			p, err := paging.Paginate(results, criteria.Page, criteria.PageSize)
			if err != nil {
				return paging.Page[station.ListItem]{}, err
			}
			return paging.Map(p, search.Result.ListItem), nil
		})
	return page, record(span, err)
}

// Map returns every station matching the filters of c as map points, cached
// under stations:map. Paging fields are ignored.
func (c *CachedStations) Map(ctx context.Context, criteria search.Criteria) ([]station.MapPoint, error) {
	criteria = criteria.Normalize()
	criteria.Page, criteria.PageSize = 0, 0
	if err := criteria.ValidateFilters(); err != nil {
		return nil, err
	}

	key := c.key(invalidation.StationsMap, criteria)
	ctx, span := c.start(ctx, "Map", key)
	defer span.End()

	points, err := cache.GetOrSet(ctx, c.cache, key, c.cache.TTL(cache.TierMedium),
		func(ctx context.Context) ([]station.MapPoint, error) {
			results, err := c.search(ctx, criteria)
			if err != nil {
				return nil, err
			}
			out := make([]station.MapPoint, len(results))
			for i, r := range results {
				out[i] = r.MapPoint()
			}
			return out, nil
		})
	return points, record(span, err)
}

// Nearest returns up to limit stations closest to the origin of c, cached
// under stations:nearest. The sort of c is forced to distance ascending.
func (c *CachedStations) Nearest(ctx context.Context, criteria search.Criteria, limit int) ([]station.ListItem, error) {
	if limit <= 0 {
		limit = DefaultNearestLimit
	}
	criteria = criteria.Normalize()
	criteria.SortBy, criteria.Direction = search.SortByDistance, search.Asc
	criteria.Page, criteria.PageSize = 1, min(limit, search.MaxPageSize)
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	key := c.key(invalidation.StationsNearest, criteria)
	ctx, span := c.start(ctx, "Nearest", key)
	defer span.End()

	items, err := cache.GetOrSet(ctx, c.cache, key, c.cache.TTL(cache.TierShort),
		func(ctx context.Context) ([]station.ListItem, error) {
			results, err := c.search(ctx, criteria)
			if err != nil {
				return nil, err
			}
			results = results[:min(len(results), criteria.PageSize)]
			out := make([]station.ListItem, len(results))
			for i, r := range results {
				out[i] = r.ListItem()
			}
			return out, nil
		})
	return items, record(span, err)
}

// SaveStation stores st and clears station queries.
func (c *CachedStations) SaveStation(ctx context.Context, st *station.Station) error {
	if err := c.requireWriter(); err != nil {
		return err
	}
	if err := c.writer.SaveStation(ctx, st); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// ReplacePrice writes a new current price and clears station queries.
func (c *CachedStations) ReplacePrice(ctx context.Context, stationID uuid.UUID, fuelType string, price decimal.Decimal, validFrom time.Time) (station.FuelPrice, error) {
	if err := c.requireWriter(); err != nil {
		return station.FuelPrice{}, err
	}
	p, err := c.writer.ReplacePrice(ctx, stationID, fuelType, price, validFrom)
	if err != nil {
		return station.FuelPrice{}, err
	}
	c.invalidate(ctx)
	return p, nil
}

// DeleteStation removes a station and clears station queries.
func (c *CachedStations) DeleteStation(ctx context.Context, id uuid.UUID) error {
	if err := c.requireWriter(); err != nil {
		return err
	}
	if err := c.writer.DeleteStation(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *CachedStations) search(ctx context.Context, criteria search.Criteria) ([]search.Result, error) {
	records, _, err := c.source.List(ctx, station.SelectAll()...)
	if err != nil {
		return nil, fmt.Errorf("load stations: %w", err)
	}
	return c.pipeline.Apply(ctx, station.Values(records), criteria)
}

// key includes the distance measure so deployments using different
// measures never share entries.
func (c *CachedStations) key(namespace string, criteria search.Criteria) string {
	return c.keySerializer.SerializeKey(namespace, c.pipeline.Measure().String(), criteria)
}

// invalidate clears every station namespace. The write already happened,
// so failures are logged and the entries age out through their ttl.
func (c *CachedStations) invalidate(ctx context.Context) {
	for _, pattern := range invalidation.StationPatterns() {
		if _, err := c.cache.RemoveByPattern(ctx, pattern); err != nil {
			c.logger.Warn().Err(err).Str("pattern", pattern).Msg("station cache invalidation failed")
		}
	}
}

func (c *CachedStations) requireWriter() error {
	if c.writer == nil {
		return ErrReadOnly
	}
	return nil
}

func (c *CachedStations) start(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "stations."+op, trace.WithAttributes(
		attribute.String("cache.key", key),
		attribute.String("geo.measure", c.pipeline.Measure().String()),
	))
}

func record(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
