package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/fleetconsole/console/internal/geo"
	"github.com/fleetconsole/console/internal/geofence"
	"github.com/fleetconsole/console/internal/visibility"
)

var errBadShape = errors.New("store: stored shape does not match geometry kind")

// EncodeShape writes the geometry as GeoJSON. Polygon rings are closed here
// and nowhere else.
func EncodeShape(g geofence.Geofence) (string, error) {
	var geom orb.Geometry
	switch g.GeometryKind {
	case geofence.KindPolygon:
		geom = orb.Polygon{geo.CloseRing(g.Polygon)}
	case geofence.KindCircle:
		geom = orb.Point{g.Center.Lng, g.Center.Lat}
	default:
		return "", fmt.Errorf("store: unknown geometry kind %q", g.GeometryKind)
	}
	b, err := geojson.NewGeometry(geom).MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode shape: %w", err)
	}
	return string(b), nil
}

// DecodeShape fills Center and Polygon of g from a stored GeoJSON geometry.
func DecodeShape(raw string, g *geofence.Geofence) error {
	parsed, err := geojson.UnmarshalGeometry([]byte(raw))
	if err != nil {
		return fmt.Errorf("decode shape: %w", err)
	}
	switch geom := parsed.Geometry().(type) {
	case orb.Polygon:
		if g.GeometryKind != geofence.KindPolygon || len(geom) == 0 {
			return errBadShape
		}
		g.Polygon = geo.OpenRing(geom[0])
		g.Center = geo.Centroid(geo.FromExchange(g.Polygon))
	case orb.Point:
		if g.GeometryKind != geofence.KindCircle {
			return errBadShape
		}
		g.Center = geo.Point{Lat: geom.Lat(), Lng: geom.Lon()}
	default:
		return errBadShape
	}
	return nil
}

func toRecord(g geofence.Geofence, scope visibility.Scope) (Record, error) {
	shape, err := EncodeShape(g)
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		ID:              g.ID,
		Name:            g.Name,
		Color:           g.Color,
		GeometryKind:    string(g.GeometryKind),
		CreationMode:    string(g.CreationMode),
		Shape:           shape,
		RadiusM:         g.Radius,
		AlertType:       string(g.AlertType),
		SpeedLimitKph:   g.SpeedLimitKph,
		AssignmentKind:  string(g.Assignment.Kind),
		Visibility:      string(scope.Visibility),
		AssignedUserIDs: pq.StringArray(scope.AssignedUserIDs),
	}
	if rec.Visibility == "" {
		rec.Visibility = string(visibility.All)
	}
	if !g.Assignment.Global() {
		id := g.Assignment.ClientID
		rec.ClientID = &id
	}
	return rec, nil
}

func fromRecord(rec Record) (geofence.Geofence, error) {
	g := geofence.Geofence{
		ID:            rec.ID,
		Name:          rec.Name,
		Color:         rec.Color,
		GeometryKind:  geofence.GeometryKind(rec.GeometryKind),
		CreationMode:  geofence.CreationMode(rec.CreationMode),
		Radius:        rec.RadiusM,
		AlertType:     geofence.AlertType(rec.AlertType),
		SpeedLimitKph: rec.SpeedLimitKph,
		Assignment:    geofence.Assignment{Kind: geofence.AssignmentKind(rec.AssignmentKind)},
	}
	if rec.ClientID != nil {
		g.Assignment.ClientID = *rec.ClientID
	}
	if err := DecodeShape(rec.Shape, &g); err != nil {
		return geofence.Geofence{}, fmt.Errorf("geofence %s: %w", rec.ID, err)
	}
	return g, nil
}
