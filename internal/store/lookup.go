package store

import (
	"context"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"

	"github.com/fleetconsole/console/internal/access"
	"github.com/fleetconsole/console/internal/geo"
	"github.com/fleetconsole/console/internal/geofence"
)

// Contains reports whether p lies inside the geofence. Circles use the
// haversine distance to the center.
func Contains(g geofence.Geofence, p geo.Point) bool {
	pt := orb.Point{p.Lng, p.Lat}
	switch g.GeometryKind {
	case geofence.KindPolygon:
		return planar.PolygonContains(orb.Polygon{geo.CloseRing(g.Polygon)}, pt)
	case geofence.KindCircle:
		if g.Radius == nil {
			return false
		}
		center := orb.Point{g.Center.Lng, g.Center.Lat}
		return orbgeo.DistanceHaversine(center, pt) <= *g.Radius
	}
	return false
}

// FindContaining returns the visible geofences that contain p, such as the
// fences a vehicle position currently sits in.
func (s *Store) FindContaining(ctx context.Context, actor access.Actor, p geo.Point) ([]geofence.Geofence, error) {
	visible, err := s.ListVisible(ctx, actor)
	if err != nil {
		return nil, err
	}
	var hits []geofence.Geofence
	for _, g := range visible {
		if Contains(g, p) {
			hits = append(hits, g)
		}
	}
	return hits, nil
}
