package geofence

import (
	"encoding/json"
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distances
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate. It travels over JSON as a [lat, lng] pair,
// the same shape the map layer uses.
type Point struct {
	Lat float64
	Lng float64
}

// Finite reports whether both coordinates are real numbers
func (p Point) Finite() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lng) && !math.IsInf(p.Lng, 0)
}

// InRange reports whether p is a real position: finite, latitude within
// ±90 and longitude within ±180
func (p Point) InRange() bool {
	return p.Finite() && math.Abs(p.Lat) <= 90 && math.Abs(p.Lng) <= 180
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// MarshalJSON encodes the point as [lat, lng]
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lat, p.Lng})
}

// UnmarshalJSON decodes a [lat, lng] pair
func (p *Point) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("point must have exactly 2 coordinates, got %d", len(pair))
	}
	p.Lat, p.Lng = pair[0], pair[1]
	return nil
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceMeters returns the haversine great-circle distance between a and b
func DistanceMeters(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding can push h a hair above 1 for antipodal points
	h = math.Min(1, h)
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// InsideCircle checks if p lies within radius meters of center
func InsideCircle(p, center Point, radius float64) bool {
	return DistanceMeters(p, center) <= radius
}

// InsideRectangle checks if p falls within the lat/lng bounds spanned by two
// opposite corners. This is an axis-aligned box, not a geodesic one.
func InsideRectangle(p, corner1, corner2 Point) bool {
	minLat := math.Min(corner1.Lat, corner2.Lat)
	maxLat := math.Max(corner1.Lat, corner2.Lat)
	minLng := math.Min(corner1.Lng, corner2.Lng)
	maxLng := math.Max(corner1.Lng, corner2.Lng)
	return p.Lat >= minLat && p.Lat <= maxLat && p.Lng >= minLng && p.Lng <= maxLng
}
