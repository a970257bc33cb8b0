package station

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-fuel-stations/geo"
)

// Common fuel type codes.
const (
	FuelPB95   = "PB95"
	FuelPB98   = "PB98"
	FuelDiesel = "ON"
	FuelLPG    = "LPG"
)

// PricePrecision is the number of decimal places kept for a fuel price.
const PricePrecision = 2

// Brand is the operator a station is branded as.
type Brand struct {
	bun.BaseModel `bun:"table:brands,alias:b"`

	ID   uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name string    `bun:"name,notnull,unique" json:"name"`
}

// Station is a fuel station and the prices currently valid for it.
type Station struct {
	bun.BaseModel `bun:"table:stations,alias:s"`

	ID      uuid.UUID   `bun:"id,pk,type:uuid" json:"id"`
	BrandID uuid.UUID   `bun:"brand_id,type:uuid,nullzero" json:"brand_id"`
	Brand   *Brand      `bun:"rel:belongs-to,join:brand_id=id" json:"brand,omitempty"`
	Address string      `bun:"address,notnull" json:"address"`
	Lon     float64     `bun:"lon,notnull" json:"lon"`
	Lat     float64     `bun:"lat,notnull" json:"lat"`
	Prices  []FuelPrice `bun:"rel:has-many,join:id=station_id" json:"prices"`
}

// FuelPrice is the price of one fuel type at a station from ValidFrom on.
// A new accepted price replaces the row instead of updating it.
type FuelPrice struct {
	bun.BaseModel `bun:"table:fuel_prices,alias:fp"`

	ID        uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	StationID uuid.UUID       `bun:"station_id,type:uuid,notnull" json:"station_id"`
	FuelType  string          `bun:"fuel_type,notnull" json:"fuel_type"`
	Price     decimal.Decimal `bun:"price,type:numeric(10,2),notnull" json:"price"`
	ValidFrom time.Time       `bun:"valid_from,notnull" json:"valid_from"`
}

// NewFuelPrice builds a price row rounded to PricePrecision.
func NewFuelPrice(stationID uuid.UUID, fuelType string, price decimal.Decimal, validFrom time.Time) FuelPrice {
	return FuelPrice{
		ID:        uuid.New(),
		StationID: stationID,
		FuelType:  strings.ToUpper(strings.TrimSpace(fuelType)),
		Price:     price.Round(PricePrecision),
		ValidFrom: validFrom.UTC(),
	}
}

// Point returns the station location.
func (s Station) Point() geo.Point {
	return geo.Point{Lon: s.Lon, Lat: s.Lat}
}

// BrandName returns the brand name or an empty string for unbranded stations.
func (s Station) BrandName() string {
	if s.Brand == nil {
		return ""
	}
	return s.Brand.Name
}

// WithPrices returns a shallow copy of s carrying prices instead of s.Prices.
func (s Station) WithPrices(prices []FuelPrice) Station {
	s.Prices = prices
	return s
}

// MinPrice returns the lowest price among the station's prices.
func (s Station) MinPrice() (decimal.Decimal, bool) {
	if len(s.Prices) == 0 {
		return decimal.Zero, false
	}
	lowest := s.Prices[0].Price
	for _, p := range s.Prices[1:] {
		if p.Price.LessThan(lowest) {
			lowest = p.Price
		}
	}
	return lowest, true
}

// PriceItem is the cached projection of a FuelPrice.
type PriceItem struct {
	FuelType  string          `json:"fuelType" msgpack:"fuel_type"`
	Price     decimal.Decimal `json:"price" msgpack:"price"`
	ValidFrom time.Time       `json:"validFrom" msgpack:"valid_from"`
}

// ListItem is the projection of a station returned by search queries.
type ListItem struct {
	ID             uuid.UUID   `json:"id" msgpack:"id"`
	Brand          string      `json:"brand" msgpack:"brand"`
	Address        string      `json:"address" msgpack:"address"`
	Lon            float64     `json:"lon" msgpack:"lon"`
	Lat            float64     `json:"lat" msgpack:"lat"`
	DistanceMeters *float64    `json:"distanceMeters,omitempty" msgpack:"distance_meters,omitempty"`
	Prices         []PriceItem `json:"prices" msgpack:"prices"`
}

// MapPoint is the lightweight projection used to draw station markers.
type MapPoint struct {
	ID       uuid.UUID        `json:"id" msgpack:"id"`
	Brand    string           `json:"brand" msgpack:"brand"`
	Lon      float64          `json:"lon" msgpack:"lon"`
	Lat      float64          `json:"lat" msgpack:"lat"`
	MinPrice *decimal.Decimal `json:"minPrice,omitempty" msgpack:"min_price,omitempty"`
}

// ToListItem projects s into a ListItem.
func (s Station) ToListItem() ListItem {
	prices := make([]PriceItem, 0, len(s.Prices))
	for _, p := range s.Prices {
		prices = append(prices, PriceItem{FuelType: p.FuelType, Price: p.Price, ValidFrom: p.ValidFrom})
	}
	return ListItem{
		ID:      s.ID,
		Brand:   s.BrandName(),
		Address: s.Address,
		Lon:     s.Lon,
		Lat:     s.Lat,
		Prices:  prices,
	}
}

// ToMapPoint projects s into a MapPoint.
func (s Station) ToMapPoint() MapPoint {
	mp := MapPoint{ID: s.ID, Brand: s.BrandName(), Lon: s.Lon, Lat: s.Lat}
	if lowest, ok := s.MinPrice(); ok {
		mp.MinPrice = &lowest
	}
	return mp
}
