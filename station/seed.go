package station

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:embed seed/stations.json
var defaultSeed []byte

// SeedStation is the on-disk format used for fixtures and the seed command.
type SeedStation struct {
	ID      uuid.UUID   `json:"id"`
	Brand   string      `json:"brand"`
	Address string      `json:"address"`
	Lon     float64     `json:"lon"`
	Lat     float64     `json:"lat"`
	Prices  []SeedPrice `json:"prices"`
}

// SeedPrice is a price entry of a SeedStation.
type SeedPrice struct {
	FuelType  string          `json:"fuelType"`
	Price     decimal.Decimal `json:"price"`
	ValidFrom time.Time       `json:"validFrom"`
}

// DecodeSeed reads a JSON array of SeedStation values. Stations sharing a
// brand name share the same Brand value and id.
func DecodeSeed(r io.Reader) ([]Station, error) {
	var raw []SeedStation
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	brands := make(map[string]*Brand)
	out := make([]Station, 0, len(raw))
	for i, s := range raw {
		if s.ID == uuid.Nil {
			return nil, fmt.Errorf("seed station %d: missing id", i)
		}
		st := Station{
			ID:      s.ID,
			Address: s.Address,
			Lon:     s.Lon,
			Lat:     s.Lat,
		}
		if err := st.Point().Validate(); err != nil {
			return nil, fmt.Errorf("seed station %s: %w", s.ID, err)
		}

		if name := strings.TrimSpace(s.Brand); name != "" {
			b, ok := brands[strings.ToLower(name)]
			if !ok {
				b = &Brand{ID: uuid.NewSHA1(uuid.NameSpaceOID, []byte("brand:"+strings.ToLower(name))), Name: name}
				brands[strings.ToLower(name)] = b
			}
			st.Brand = b
			st.BrandID = b.ID
		}

		st.Prices = make([]FuelPrice, 0, len(s.Prices))
		for _, p := range s.Prices {
			fp := NewFuelPrice(s.ID, p.FuelType, p.Price, p.ValidFrom)
			fp.ID = uuid.NewSHA1(s.ID, []byte(fp.FuelType))
			st.Prices = append(st.Prices, fp)
		}
		out = append(out, st)
	}
	return out, nil
}

// DefaultSeed returns the stations bundled with the binary.
func DefaultSeed() ([]Station, error) {
	return DecodeSeed(bytes.NewReader(defaultSeed))
}
