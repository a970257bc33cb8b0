package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/goliatone/go-fuel-stations/geo"
	"github.com/goliatone/go-fuel-stations/search"
)

// Query parameter names.
const (
	paramLatitude       = "latitude"
	paramLongitude      = "longitude"
	paramDistanceMeters = "distanceMeters"
	paramFuelType       = "fuelType"
	paramMinPrice       = "minPrice"
	paramMaxPrice       = "maxPrice"
	paramBrandName      = "brandName"
	paramSortByDistance = "sortByDistance"
	paramSortByPrice    = "sortByPrice"
	paramSortDirection  = "sortDirection"
	paramPageNumber     = "pageNumber"
	paramPageSize       = "pageSize"
	paramLimit          = "limit"
)

// parseCriteria maps query parameters onto search criteria. Syntax errors
// are returned as a search.ValidationError keyed by parameter name; the
// semantic checks are left to the criteria themselves.
func parseCriteria(r *http.Request) (search.Criteria, error) {
	q := r.URL.Query()
	p := &parser{q: q, errs: validation.Errors{}}

	c := search.Criteria{
		RadiusMeters: p.float(paramDistanceMeters),
		FuelTypes:    fuelTypes(q),
		MinPrice:     p.decimal(paramMinPrice),
		MaxPrice:     p.decimal(paramMaxPrice),
		Brand:        q.Get(paramBrandName),
		Direction:    search.Direction(q.Get(paramSortDirection)),
		Page:         p.int(paramPageNumber, 1),
		PageSize:     p.int(paramPageSize, search.DefaultPageSize),
	}

	lat, hasLat := p.optionalFloat(paramLatitude)
	lon, hasLon := p.optionalFloat(paramLongitude)
	switch {
	case hasLat && hasLon:
		c.Origin = &geo.Point{Lat: lat, Lon: lon}
	case hasLat:
		p.errs[paramLongitude] = errors.New("is required together with latitude")
	case hasLon:
		p.errs[paramLatitude] = errors.New("is required together with longitude")
	}

	byDistance := p.bool(paramSortByDistance)
	byPrice := p.bool(paramSortByPrice)
	switch {
	case byDistance && byPrice:
		p.errs[paramSortByPrice] = errors.New("cannot be combined with sortByDistance")
	case byDistance:
		c.SortBy = search.SortByDistance
	case byPrice:
		c.SortBy = search.SortByPrice
	}

	if len(p.errs) > 0 {
		return search.Criteria{}, &search.ValidationError{Fields: p.errs}
	}
	return c, nil
}

// fuelTypes accepts fuelType[]=a&fuelType[]=b, repeated fuelType and comma
// separated values.
func fuelTypes(q url.Values) []string {
	var out []string
	for _, key := range []string{paramFuelType + "[]", paramFuelType} {
		for _, v := range q[key] {
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		}
	}
	return out
}

type parser struct {
	q    url.Values
	errs validation.Errors
}

func (p *parser) optionalFloat(name string) (float64, bool) {
	raw := p.q.Get(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs[name] = errors.New("must be a number")
		return 0, false
	}
	return v, true
}

func (p *parser) float(name string) float64 {
	v, _ := p.optionalFloat(name)
	return v
}

func (p *parser) int(name string, def int) int {
	raw := p.q.Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs[name] = errors.New("must be an integer")
		return def
	}
	return v
}

func (p *parser) bool(name string) bool {
	raw := p.q.Get(name)
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs[name] = errors.New("must be true or false")
		return false
	}
	return v
}

func (p *parser) decimal(name string) *decimal.Decimal {
	raw := p.q.Get(name)
	if raw == "" {
		return nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		p.errs[name] = errors.New("must be a decimal number")
		return nil
	}
	return &v
}
