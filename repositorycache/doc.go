// Package repositorycache serves station queries through the read-through
// cache.
//
// # Overview
//
// CachedStations decorates the generic station repository
// (repository.Repository[*station.Station] from go-repository-bun). Its three
// queries each own a cache namespace:
//
//   - List: one page of matching stations under "stations:list"
//   - Map: every matching station as a map marker under "stations:map"
//   - Nearest: the closest stations to an origin under "stations:nearest"
//
// Criteria are normalized and validated before the cache is touched, so an
// invalid request never creates an entry, and two requests that differ only
// in spelling ("pb95" and "PB95") share one.
//
// # Basic Usage
//
//	svc, _ := cache.NewService(store, cache.DefaultConfig())
//	repo := station.NewBunRepository(db)
//	cached := repositorycache.New(repo.Stations(), svc, search.NewPipeline(),
//		repositorycache.WithWriter(repo),
//		repositorycache.WithLogger(logger),
//	)
//
//	page, err := cached.List(ctx, search.Criteria{
//		Origin:       &geo.Point{Lat: 52.2297, Lon: 21.0122},
//		RadiusMeters: 5000,
//		FuelTypes:    []string{"PB95"},
//		SortBy:       search.SortByPrice,
//		Page:         1,
//		PageSize:     20,
//	})
//
// # Invalidation
//
// Entries are removed by the invalidation handlers when a price proposal is
// accepted. Writes made through CachedStations itself clear all three
// namespaces once they succeed. A failed invalidation is logged and the
// entry expires through its ttl.
//
// # Tracing
//
// Every query runs in an OpenTelemetry span carrying the cache key and the
// distance measure. The global tracer provider is used unless WithTracer is
// given.
package repositorycache
