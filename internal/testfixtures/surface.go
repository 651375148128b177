// Package testfixtures provides in-memory collaborators for editor and
// service tests.
package testfixtures

import (
	"sync"

	"github.com/fleetconsole/console/internal/geo"
	"github.com/fleetconsole/console/internal/mapsurface"
)

// Shape is a shape currently placed on a Surface.
type Shape struct {
	Kind   string // marker, polyline, polygon, circle
	Points []geo.Point
	Radius float64
	Marker mapsurface.MarkerStyle
	Line   mapsurface.LineStyle
	Fill   mapsurface.FillStyle
}

// Surface is a mapsurface.Surface with a simple equirectangular projection
// whose view can be panned and zoomed between clicks.
type Surface struct {
	mu        sync.Mutex
	center    geo.Point
	pxPerDeg  float64
	nextID    mapsurface.Handle
	shapes    map[mapsurface.Handle]Shape
	listeners map[int]func(geo.Point)
	nextSub   int

	Cursor   mapsurface.Cursor
	Fits     [][]geo.Point
	FitPad   int
	Removals int
}

// NewSurface returns a surface centred on the origin at 10 px per degree.
func NewSurface() *Surface {
	return &Surface{
		pxPerDeg:  10,
		shapes:    make(map[mapsurface.Handle]Shape),
		listeners: make(map[int]func(geo.Point)),
	}
}

// SetView pans and zooms the projection.
func (s *Surface) SetView(center geo.Point, pxPerDeg float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.center = center
	s.pxPerDeg = pxPerDeg
}

// Click delivers a click event to every subscriber.
func (s *Surface) Click(p geo.Point) {
	s.mu.Lock()
	fns := make([]func(geo.Point), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}

// Listeners returns the number of active click subscriptions.
func (s *Surface) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func (s *Surface) OnClick(fn func(geo.Point)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Surface) ProjectToScreen(p geo.Point) geo.ScreenPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return geo.ScreenPoint{
		X: (p.Lng - s.center.Lng) * s.pxPerDeg,
		Y: (s.center.Lat - p.Lat) * s.pxPerDeg,
	}
}

func (s *Surface) add(shape Shape) mapsurface.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.shapes[s.nextID] = shape
	return s.nextID
}

func (s *Surface) AddMarker(p geo.Point, style mapsurface.MarkerStyle) mapsurface.Handle {
	return s.add(Shape{Kind: "marker", Points: []geo.Point{p}, Marker: style})
}

func (s *Surface) AddPolyline(points []geo.Point, style mapsurface.LineStyle) mapsurface.Handle {
	return s.add(Shape{Kind: "polyline", Points: append([]geo.Point(nil), points...), Line: style})
}

func (s *Surface) AddPolygon(ring []geo.Point, style mapsurface.FillStyle) mapsurface.Handle {
	return s.add(Shape{Kind: "polygon", Points: append([]geo.Point(nil), ring...), Fill: style})
}

func (s *Surface) AddCircle(center geo.Point, radius float64, style mapsurface.FillStyle) mapsurface.Handle {
	return s.add(Shape{Kind: "circle", Points: []geo.Point{center}, Radius: radius, Fill: style})
}

func (s *Surface) RemoveShape(h mapsurface.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shapes[h]; ok {
		delete(s.shapes, h)
		s.Removals++
	}
}

func (s *Surface) FitBounds(points []geo.Point, padding int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fits = append(s.Fits, append([]geo.Point(nil), points...))
	s.FitPad = padding
}

func (s *Surface) SetCursor(c mapsurface.Cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Cursor = c
}

// Shapes returns the live shapes of the given kind.
func (s *Surface) Shapes(kind string) []Shape {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Shape
	for _, sh := range s.shapes {
		if sh.Kind == kind {
			out = append(out, sh)
		}
	}
	return out
}

// Live returns the number of shapes still placed on the surface.
func (s *Surface) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shapes)
}
