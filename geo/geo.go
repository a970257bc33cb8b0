// Package geo converts search radii into comparable thresholds and measures
// the distance between two WGS84 points.
//
// Two representations are supported and a query must stick to one of them:
//
//   - Planar: distances are euclidean in degree space and a radius in meters is
//     turned into a degree threshold using MetersPerDegree. This matches the
//     results already stored by existing deployments but over-reports east-west
//     distances away from the equator.
//   - Geodesic: distances are haversine meters and the threshold is the radius
//     itself.
package geo

import (
	"fmt"
	"math"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/tkrajina/gpxgo/gpx"
)

// MetersPerDegree is the length of one degree of latitude at the equator.
const MetersPerDegree = 111_320.0

// Point is a WGS84 coordinate.
type Point struct {
	Lon float64 `json:"lon" msgpack:"lon"`
	Lat float64 `json:"lat" msgpack:"lat"`
}

// Validate checks the point lies within WGS84 bounds.
func (p Point) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Lon, validation.Min(-180.0), validation.Max(180.0)),
		validation.Field(&p.Lat, validation.Min(-90.0), validation.Max(90.0)),
	)
}

func (p Point) String() string {
	return fmt.Sprintf("%g,%g", p.Lat, p.Lon)
}

// RadiusToThreshold converts a radius in meters to a planar degree threshold.
func RadiusToThreshold(distanceMeters float64) float64 {
	return distanceMeters / MetersPerDegree
}

// PlanarDistance returns the euclidean distance between a and b in degrees.
func PlanarDistance(a, b Point) float64 {
	return math.Hypot(b.Lon-a.Lon, b.Lat-a.Lat)
}

// DistanceMeters returns the haversine distance between a and b in meters.
func DistanceMeters(a, b Point) float64 {
	return gpx.Distance2D(a.Lat, a.Lon, b.Lat, b.Lon, true)
}

// Measure selects the distance representation used by a query.
type Measure int

const (
	Planar Measure = iota
	Geodesic
)

// ParseMeasure maps a configuration value to a Measure.
func ParseMeasure(s string) (Measure, error) {
	switch s {
	case "", "planar":
		return Planar, nil
	case "geodesic", "haversine":
		return Geodesic, nil
	default:
		return Planar, fmt.Errorf("unknown distance measure %q", s)
	}
}

func (m Measure) String() string {
	if m == Geodesic {
		return "geodesic"
	}
	return "planar"
}

// Distance returns the distance between a and b in the measure's own unit.
func (m Measure) Distance(a, b Point) float64 {
	if m == Geodesic {
		return DistanceMeters(a, b)
	}
	return PlanarDistance(a, b)
}

// Threshold converts a radius in meters into the measure's own unit.
func (m Measure) Threshold(distanceMeters float64) float64 {
	if m == Geodesic {
		return distanceMeters
	}
	return RadiusToThreshold(distanceMeters)
}

// ToMeters converts a distance returned by Distance back to meters.
func (m Measure) ToMeters(d float64) float64 {
	if m == Geodesic {
		return d
	}
	return d * MetersPerDegree
}
