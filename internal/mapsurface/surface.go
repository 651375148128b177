// Package mapsurface describes the map rendering capability the geofence
// editors draw on, and the handle table each editor uses to own what it draws.
package mapsurface

import (
	"github.com/fleetconsole/console/internal/geo"
)

// Handle identifies a shape placed on the surface.
type Handle uint64

// Cursor is the pointer affordance shown over the map.
type Cursor string

const (
	// CursorDraw is shown while a polygon is still open.
	CursorDraw Cursor = "crosshair"
	// CursorDefault is shown once the polygon is closed.
	CursorDefault Cursor = "default"
)

// MarkerStyle controls how a vertex marker is drawn.
type MarkerStyle struct {
	Color   string
	Primary bool   // the first vertex, drawn larger
	Tooltip string // hover hint, empty for none
}

// LineStyle controls polyline rendering.
type LineStyle struct {
	Color   string
	Weight  int
	Opacity float64
	Dashed  bool
}

// FillStyle controls polygon and circle rendering.
type FillStyle struct {
	Color       string
	FillOpacity float64
}

// Surface is the map widget. Tile rendering stays opaque to this package.
type Surface interface {
	// OnClick subscribes to map clicks and returns an unsubscribe func.
	OnClick(fn func(geo.Point)) (unsubscribe func())
	// ProjectToScreen returns the current pixel position of a coordinate.
	ProjectToScreen(p geo.Point) geo.ScreenPoint

	AddMarker(p geo.Point, style MarkerStyle) Handle
	AddPolyline(points []geo.Point, style LineStyle) Handle
	AddPolygon(ring []geo.Point, style FillStyle) Handle
	AddCircle(center geo.Point, radiusMeters float64, style FillStyle) Handle
	RemoveShape(h Handle)

	FitBounds(points []geo.Point, paddingPx int)
	SetCursor(c Cursor)
}
