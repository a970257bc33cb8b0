package search

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/goliatone/go-fuel-stations/geo"
)

// ErrInvalidCriteria marks criteria rejected before any lookup happens.
var ErrInvalidCriteria = errors.New("invalid search criteria")

// SortBy selects the ordering of search results.
type SortBy string

const (
	SortNone       SortBy = ""
	SortByDistance SortBy = "distance"
	SortByPrice    SortBy = "price"
)

// Direction is the sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 500
)

// Criteria describes a station search. The zero value of every filter
// field means "no filter". Criteria is a value type; pipeline stages never
// modify it.
type Criteria struct {
	Origin       *geo.Point       `json:"origin,omitempty" cachekey:"origin"`
	RadiusMeters float64          `json:"radiusMeters,omitempty" cachekey:"radius"`
	FuelTypes    []string         `json:"fuelTypes,omitempty" cachekey:"fuel"`
	MinPrice     *decimal.Decimal `json:"minPrice,omitempty" cachekey:"min"`
	MaxPrice     *decimal.Decimal `json:"maxPrice,omitempty" cachekey:"max"`
	Brand        string           `json:"brand,omitempty" cachekey:"brand"`
	SortBy       SortBy           `json:"sortBy,omitempty" cachekey:"sort"`
	Direction    Direction        `json:"direction,omitempty" cachekey:"dir"`
	Page         int              `json:"page" cachekey:"page"`
	PageSize     int              `json:"pageSize" cachekey:"size"`
}

// Normalize returns a copy of c in canonical form: fuel codes upper-cased,
// deduplicated and sorted, brand trimmed and lower-cased, direction
// defaulted to ascending. Two criteria selecting the same results normalize
// to equal values.
func (c Criteria) Normalize() Criteria {
	out := c

	if c.Origin != nil {
		origin := *c.Origin
		out.Origin = &origin
	}
	if c.MinPrice != nil {
		v := *c.MinPrice
		out.MinPrice = &v
	}
	if c.MaxPrice != nil {
		v := *c.MaxPrice
		out.MaxPrice = &v
	}

	out.FuelTypes = nil
	for _, ft := range c.FuelTypes {
		ft = strings.ToUpper(strings.TrimSpace(ft))
		if ft != "" {
			out.FuelTypes = append(out.FuelTypes, ft)
		}
	}
	slices.Sort(out.FuelTypes)
	out.FuelTypes = slices.Compact(out.FuelTypes)

	out.Brand = strings.ToLower(strings.TrimSpace(c.Brand))
	out.SortBy = SortBy(strings.ToLower(strings.TrimSpace(string(c.SortBy))))
	out.Direction = Direction(strings.ToLower(strings.TrimSpace(string(c.Direction))))
	if out.Direction == "" {
		out.Direction = Asc
	}
	return out
}

// ValidateFilters checks everything but the paging fields.
func (c Criteria) ValidateFilters() error {
	return wrapValidation(validation.ValidateStruct(&c, c.filterRules()...))
}

// Validate checks filters and paging.
func (c Criteria) Validate() error {
	rules := append(c.filterRules(),
		validation.Field(&c.Page, validation.Required, validation.Min(1)),
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(MaxPageSize)),
	)
	return wrapValidation(validation.ValidateStruct(&c, rules...))
}

func (c *Criteria) filterRules() []*validation.FieldRules {
	return []*validation.FieldRules{
		validation.Field(&c.Origin),
		validation.Field(&c.RadiusMeters,
			validation.Min(0.0),
			validation.When(c.RadiusMeters > 0, validation.By(requireOrigin(c.Origin, "radius"))),
		),
		validation.Field(&c.MinPrice, validation.By(nonNegative)),
		validation.Field(&c.MaxPrice, validation.By(nonNegative), validation.By(notBelow(c.MinPrice))),
		validation.Field(&c.SortBy,
			validation.In(SortByDistance, SortByPrice),
			validation.When(c.SortBy == SortByDistance, validation.By(requireOrigin(c.Origin, "sorting by distance"))),
		),
		validation.Field(&c.Direction, validation.In(Asc, Desc)),
	}
}

func requireOrigin(origin *geo.Point, what string) validation.RuleFunc {
	return func(any) error {
		if origin == nil {
			return fmt.Errorf("%s requires a reference point", what)
		}
		return nil
	}
}

func nonNegative(value any) error {
	d, _ := value.(*decimal.Decimal)
	if d != nil && d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}

func notBelow(lower *decimal.Decimal) validation.RuleFunc {
	return func(value any) error {
		upper, _ := value.(*decimal.Decimal)
		if upper == nil || lower == nil {
			return nil
		}
		if upper.LessThan(*lower) {
			return fmt.Errorf("must be no less than the minimum price %s", lower.String())
		}
		return nil
	}
}

// ValidationError carries the per-field problems of rejected criteria.
type ValidationError struct {
	Fields validation.Errors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidCriteria, e.Fields.Error())
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidCriteria
}

func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if errors.As(err, &fields) {
		return &ValidationError{Fields: fields}
	}
	return fmt.Errorf("%w: %v", ErrInvalidCriteria, err)
}
