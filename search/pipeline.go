// Package search filters and orders stations according to search criteria.
//
// A Pipeline runs its stages in a fixed order: brand, distance, fuel type,
// price, then sort. Every stage returns a new slice and prunes prices by
// building new price slices, so the stations handed to Apply are never
// modified.
package search

import (
	"bytes"
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/goliatone/go-fuel-stations/geo"
	"github.com/goliatone/go-fuel-stations/station"
)

// Result is a station that passed every filter. Station.Prices holds only
// the prices that matched the fuel and price filters.
type Result struct {
	Station station.Station
	// DistanceMeters is set when the criteria carry an origin.
	DistanceMeters *float64

	distance float64
}

// ListItem projects r for list responses.
func (r Result) ListItem() station.ListItem {
	item := r.Station.ToListItem()
	if r.DistanceMeters != nil {
		d := *r.DistanceMeters
		item.DistanceMeters = &d
	}
	return item
}

// MapPoint projects r for map responses.
func (r Result) MapPoint() station.MapPoint {
	return r.Station.ToMapPoint()
}

type stage struct {
	name string
	run  func(in []Result, c Criteria) []Result
}

// Pipeline applies Criteria to a station collection.
type Pipeline struct {
	measure geo.Measure
	logger  zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMeasure selects the distance representation. Planar is the default.
func WithMeasure(m geo.Measure) Option {
	return func(p *Pipeline) { p.measure = m }
}

// WithLogger sets the logger used for stage tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline builds a pipeline.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{measure: geo.Planar, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Measure returns the distance representation in use.
func (p *Pipeline) Measure() geo.Measure {
	return p.measure
}

// Apply filters and sorts stations. Criteria are normalized and their filter
// part validated first; paging fields are ignored here. The context is
// checked between stages.
func (p *Pipeline) Apply(ctx context.Context, stations []station.Station, c Criteria) ([]Result, error) {
	c = c.Normalize()
	if err := c.ValidateFilters(); err != nil {
		return nil, err
	}

	results := make([]Result, len(stations))
	for i, st := range stations {
		results[i] = Result{Station: st}
	}

	for _, s := range p.stages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		before := len(results)
		results = s.run(results, c)
		p.logger.Trace().
			Str("stage", s.name).
			Int("in", before).
			Int("out", len(results)).
			Msg("search stage applied")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sortResults(results, c), nil
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{name: "brand", run: filterBrand},
		{name: "distance", run: p.filterDistance},
		{name: "fuel", run: filterFuelTypes},
		{name: "price", run: filterPrice},
	}
}

func filterBrand(in []Result, c Criteria) []Result {
	if c.Brand == "" {
		return in
	}
	out := make([]Result, 0, len(in))
	for _, r := range in {
		if strings.EqualFold(strings.TrimSpace(r.Station.BrandName()), c.Brand) {
			out = append(out, r)
		}
	}
	return out
}

// filterDistance annotates every result with its distance to the origin and,
// when a radius is given, drops results farther than the radius. A station
// exactly at the radius is kept.
func (p *Pipeline) filterDistance(in []Result, c Criteria) []Result {
	if c.Origin == nil {
		return in
	}
	origin := *c.Origin
	limited := c.RadiusMeters > 0
	threshold := p.measure.Threshold(c.RadiusMeters)

	out := make([]Result, 0, len(in))
	for _, r := range in {
		d := p.measure.Distance(origin, r.Station.Point())
		if limited && d > threshold {
			continue
		}
		meters := p.measure.ToMeters(d)
		r.distance = d
		r.DistanceMeters = &meters
		out = append(out, r)
	}
	return out
}

func filterFuelTypes(in []Result, c Criteria) []Result {
	if len(c.FuelTypes) == 0 {
		return in
	}
	return prunePrices(in, func(fp station.FuelPrice) bool {
		_, found := slices.BinarySearch(c.FuelTypes, strings.ToUpper(fp.FuelType))
		return found
	})
}

func filterPrice(in []Result, c Criteria) []Result {
	if c.MinPrice == nil && c.MaxPrice == nil {
		return in
	}
	return prunePrices(in, func(fp station.FuelPrice) bool {
		if c.MinPrice != nil && fp.Price.LessThan(*c.MinPrice) {
			return false
		}
		if c.MaxPrice != nil && fp.Price.GreaterThan(*c.MaxPrice) {
			return false
		}
		return true
	})
}

// prunePrices keeps results with at least one price accepted by keep and
// gives each a fresh slice holding only those prices.
func prunePrices(in []Result, keep func(station.FuelPrice) bool) []Result {
	out := make([]Result, 0, len(in))
	for _, r := range in {
		var prices []station.FuelPrice
		for _, fp := range r.Station.Prices {
			if keep(fp) {
				prices = append(prices, fp)
			}
		}
		if len(prices) == 0 {
			continue
		}
		r.Station = r.Station.WithPrices(prices)
		out = append(out, r)
	}
	return out
}

func sortResults(in []Result, c Criteria) []Result {
	switch c.SortBy {
	case SortByPrice:
		type priced struct {
			r   Result
			min decimal.Decimal
		}
		// stations without a remaining price have nothing to compare
		candidates := make([]priced, 0, len(in))
		for _, r := range in {
			if lowest, ok := r.Station.MinPrice(); ok {
				candidates = append(candidates, priced{r: r, min: lowest})
			}
		}
		slices.SortStableFunc(candidates, func(a, b priced) int {
			return direct(c.Direction, a.min.Cmp(b.min), a.r, b.r)
		})
		out := make([]Result, len(candidates))
		for i, p := range candidates {
			out[i] = p.r
		}
		return out
	case SortByDistance:
		out := slices.Clone(in)
		slices.SortStableFunc(out, func(a, b Result) int {
			return direct(c.Direction, cmp.Compare(a.distance, b.distance), a, b)
		})
		return out
	default:
		out := slices.Clone(in)
		slices.SortStableFunc(out, byID)
		return out
	}
}

// direct applies the sort direction to the primary comparison. Ties fall back
// to ascending station id in both directions.
func direct(dir Direction, primary int, a, b Result) int {
	if primary != 0 {
		if dir == Desc {
			return -primary
		}
		return primary
	}
	return byID(a, b)
}

func byID(a, b Result) int {
	return bytes.Compare(a.Station.ID[:], b.Station.ID[:])
}
