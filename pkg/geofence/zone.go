package geofence

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Kind is the shape of a zone
type Kind string

const (
	KindCircle    Kind = "circle"
	KindRectangle Kind = "rectangle"
)

// Valid reports whether k is a known shape
func (k Kind) Valid() bool {
	return k == KindCircle || k == KindRectangle
}

var (
	ErrInvalidZone = errors.New("invalid zone geometry")
	ErrUnknownKind = errors.New("unknown zone kind")
)

// Zone is a circular or rectangular geofence.
// Circles use Center and Radius (meters); rectangles use Start and End as
// opposite corners.
type Zone struct {
	Kind   Kind    `json:"type"`
	Center Point   `json:"center"`
	Radius float64 `json:"radius"`
	Start  Point   `json:"start"`
	End    Point   `json:"end"`
}

// Circle builds a circular zone
func Circle(center Point, radius float64) Zone {
	return Zone{Kind: KindCircle, Center: center, Radius: radius}
}

// Rectangle builds a rectangular zone from two opposite corners
func Rectangle(corner1, corner2 Point) Zone {
	return Zone{Kind: KindRectangle, Start: corner1, End: corner2}
}

// MarshalJSON only emits the fields that belong to the zone's kind
func (z Zone) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": z.Kind}
	switch z.Kind {
	case KindCircle:
		out["center"] = z.Center
		out["radius"] = z.Radius
	case KindRectangle:
		out["start"] = z.Start
		out["end"] = z.End
	}
	return json.Marshal(out)
}

// UnmarshalJSON requires the points that belong to the zone's kind, so a
// circle without a center is not silently read as one at 0,0
func (z *Zone) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind   Kind    `json:"type"`
		Center *Point  `json:"center"`
		Radius float64 `json:"radius"`
		Start  *Point  `json:"start"`
		End    *Point  `json:"end"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := Zone{Kind: raw.Kind, Radius: raw.Radius}
	switch raw.Kind {
	case KindCircle:
		if raw.Center == nil {
			return fmt.Errorf("%w: circle needs a center", ErrInvalidZone)
		}
		out.Center = *raw.Center
	case KindRectangle:
		if raw.Start == nil || raw.End == nil {
			return fmt.Errorf("%w: rectangle needs start and end", ErrInvalidZone)
		}
		out.Start, out.End = *raw.Start, *raw.End
	}
	*z = out
	return nil
}

// Validate checks the geometry invariants for the zone's kind
func (z Zone) Validate() error {
	switch z.Kind {
	case KindCircle:
		if !z.Center.InRange() || math.IsNaN(z.Radius) || math.IsInf(z.Radius, 0) || z.Radius <= 0 {
			return ErrInvalidZone
		}
	case KindRectangle:
		if !z.Start.InRange() || !z.End.InRange() {
			return ErrInvalidZone
		}
	default:
		return ErrUnknownKind
	}
	return nil
}

// Contains reports whether p is inside the zone. Invalid zones contain nothing.
func (z Zone) Contains(p Point) bool {
	if z.Validate() != nil || !p.Finite() {
		return false
	}
	if z.Kind == KindCircle {
		return InsideCircle(p, z.Center, z.Radius)
	}
	return InsideRectangle(p, z.Start, z.End)
}

// Midpoint returns the point a map should be centred on: the circle's center
// or the rectangle's midpoint.
func (z Zone) Midpoint() (Point, bool) {
	switch z.Kind {
	case KindCircle:
		return z.Center, true
	case KindRectangle:
		return Point{
			Lat: (z.Start.Lat + z.End.Lat) / 2,
			Lng: (z.Start.Lng + z.End.Lng) / 2,
		}, true
	}
	return Point{}, false
}
