// Package geo holds the coordinate types shared by the geofence editors and
// the conversions between the interactive and exchange orderings.
package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Point is a geographic coordinate in interactive order (lat, lng), as
// emitted by map click events.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ScreenPoint is a pixel position on the map surface.
type ScreenPoint struct {
	X float64
	Y float64
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.Lat, p.Lng)
}

// PixelDistance returns the on-screen distance between two projected points.
func PixelDistance(a, b ScreenPoint) float64 {
	return planar.Distance(orb.Point{a.X, a.Y}, orb.Point{b.X, b.Y})
}

// Centroid is the arithmetic mean of the ring's latitudes and longitudes.
// It is a display reference only, not the area centroid.
func Centroid(ring []Point) Point {
	if len(ring) == 0 {
		return Point{}
	}
	var sumLat, sumLng float64
	for _, p := range ring {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	n := float64(len(ring))
	return Point{Lat: sumLat / n, Lng: sumLng / n}
}

// ToExchange reorders a ring to longitude-first pairs (GeoJSON order).
// The ring is not closed here; closing is left to the GeoJSON writer.
func ToExchange(ring []Point) orb.Ring {
	out := make(orb.Ring, len(ring))
	for i, p := range ring {
		out[i] = orb.Point{p.Lng, p.Lat}
	}
	return out
}

// FromExchange is the exact inverse of ToExchange.
func FromExchange(ring orb.Ring) []Point {
	out := make([]Point, len(ring))
	for i, p := range ring {
		out[i] = Point{Lat: p.Lat(), Lng: p.Lon()}
	}
	return out
}

// CloseRing returns a copy of ring with the first vertex repeated at the end,
// as RFC 7946 requires for polygon rings. Already closed rings are copied as is.
func CloseRing(ring orb.Ring) orb.Ring {
	out := make(orb.Ring, len(ring), len(ring)+1)
	copy(out, ring)
	if len(out) > 0 && !out.Closed() {
		out = append(out, out[0])
	}
	return out
}

// OpenRing drops the repeated closing vertex of a GeoJSON ring.
func OpenRing(ring orb.Ring) orb.Ring {
	if len(ring) > 3 && ring.Closed() {
		return ring[:len(ring)-1]
	}
	return ring
}

// Bounds returns the bounding box of the points in exchange order.
func Bounds(points []Point) orb.Bound {
	return orb.MultiPoint(ToExchange(points)).Bound()
}

// ValidLat reports whether v is a latitude in [-90, 90].
func ValidLat(v float64) bool { return v >= -90 && v <= 90 }

// ValidLng reports whether v is a longitude in [-180, 180].
func ValidLng(v float64) bool { return v >= -180 && v <= 180 }
