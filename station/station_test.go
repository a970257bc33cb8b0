package station

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFuelPrice_NormalizesInput(t *testing.T) {
	id := uuid.New()
	local := time.Date(2026, 1, 5, 8, 0, 0, 0, time.FixedZone("CET", 3600))

	fp := NewFuelPrice(id, " pb95 ", decimal.RequireFromString("6.125"), local)

	assert.Equal(t, id, fp.StationID)
	assert.Equal(t, FuelPB95, fp.FuelType)
	assert.Equal(t, "6.13", fp.Price.StringFixed(PricePrecision))
	assert.Equal(t, time.UTC, fp.ValidFrom.Location())
	assert.NotEqual(t, uuid.Nil, fp.ID)
}

func TestStation_MinPriceAndMapPoint(t *testing.T) {
	st := Station{ID: uuid.New(), Brand: &Brand{Name: "BP"}, Lon: 21, Lat: 52}

	_, ok := st.MinPrice()
	assert.False(t, ok)
	assert.Nil(t, st.ToMapPoint().MinPrice)

	st.Prices = []FuelPrice{
		{FuelType: FuelPB95, Price: decimal.RequireFromString("6.10")},
		{FuelType: FuelLPG, Price: decimal.RequireFromString("2.99")},
		{FuelType: FuelDiesel, Price: decimal.RequireFromString("5.50")},
	}
	lowest, ok := st.MinPrice()
	require.True(t, ok)
	assert.Equal(t, "2.99", lowest.String())

	mp := st.ToMapPoint()
	require.NotNil(t, mp.MinPrice)
	assert.Equal(t, "2.99", mp.MinPrice.String())
	assert.Equal(t, "BP", mp.Brand)
}

func TestStation_WithPricesDoesNotAlias(t *testing.T) {
	orig := Station{Prices: []FuelPrice{{FuelType: FuelPB95}, {FuelType: FuelDiesel}}}

	pruned := orig.WithPrices(orig.Prices[:1:1])
	pruned.Prices = append(pruned.Prices, FuelPrice{FuelType: FuelLPG})

	assert.Len(t, orig.Prices, 2)
	assert.Equal(t, FuelDiesel, orig.Prices[1].FuelType)
}

func TestToListItem(t *testing.T) {
	st := Station{
		ID:      uuid.New(),
		Address: "ul. Prosta 1",
		Prices:  []FuelPrice{{FuelType: FuelPB95, Price: decimal.RequireFromString("6.10")}},
	}

	item := st.ToListItem()
	assert.Equal(t, "", item.Brand)
	assert.Nil(t, item.DistanceMeters)
	require.Len(t, item.Prices, 1)
	assert.Equal(t, FuelPB95, item.Prices[0].FuelType)
}

func TestDecodeSeed(t *testing.T) {
	in := `[
		{"id":"5d4c1c2e-0000-4000-8000-000000000001","brand":"Orlen","address":"a","lon":21,"lat":52,
		 "prices":[{"fuelType":"pb95","price":"6.10","validFrom":"2026-01-05T06:00:00Z"}]},
		{"id":"5d4c1c2e-0000-4000-8000-000000000002","brand":"ORLEN","address":"b","lon":21.1,"lat":52.1,"prices":[]}
	]`

	got, err := DecodeSeed(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Same(t, got[0].Brand, got[1].Brand)
	assert.Equal(t, got[0].BrandID, got[1].BrandID)
	require.Len(t, got[0].Prices, 1)
	assert.Equal(t, FuelPB95, got[0].Prices[0].FuelType)
}

func TestDecodeSeed_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "malformed", in: `{`},
		{name: "missing id", in: `[{"brand":"x","lon":0,"lat":0}]`},
		{name: "bad latitude", in: `[{"id":"5d4c1c2e-0000-4000-8000-000000000001","lon":0,"lat":91}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSeed(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestDefaultSeed(t *testing.T) {
	got, err := DefaultSeed()
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}
