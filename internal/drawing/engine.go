// Package drawing captures a polygon ring from map clicks.
//
// The operator clicks vertices one by one; once three or more exist, a click
// landing within a few pixels of the first vertex closes the ring. Proximity
// is measured in screen space using the first vertex's projection at the time
// of the click, so panning or zooming between clicks is handled correctly.
package drawing

import (
	"sync"

	"github.com/fleetconsole/console/internal/geo"
	"github.com/fleetconsole/console/internal/mapsurface"
)

// Status is the drawing session state.
type Status int

const (
	StatusEmpty Status = iota
	StatusCollecting
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusCollecting:
		return "collecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	// DefaultClosureThresholdPx is the pixel radius around the first vertex
	// that counts as a closing click.
	DefaultClosureThresholdPx = 20.0
	// DefaultFitPaddingPx pads the viewport when framing a closed ring.
	DefaultFitPaddingPx = 20
	// DefaultColor is used when no geofence color was chosen yet.
	DefaultColor = "#3388ff"

	// MinVertices is the smallest ring that can be closed.
	MinVertices = 3

	closeHint = "Click here to close the polygon"
)

// Shape table layers.
const (
	layerMarkers = "markers"
	layerEdges   = "edges"
	layerClosing = "closing"
	layerPolygon = "polygon"
)

// Engine is one drawing session bound to a map surface. It is safe to call
// from the surface's event callbacks and from other goroutines.
type Engine struct {
	mu sync.Mutex

	surface mapsurface.Surface
	shapes  *mapsurface.ShapeTable

	points []geo.Point
	status Status

	threshold float64
	padding   int
	color     string
	onClosed  func(ring []geo.Point)

	unsubscribe func()
	destroyed   bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithThreshold overrides the closure radius in pixels.
func WithThreshold(px float64) Option {
	return func(e *Engine) {
		if px > 0 {
			e.threshold = px
		}
	}
}

// WithFitPadding overrides the padding used when framing a closed ring.
func WithFitPadding(px int) Option {
	return func(e *Engine) { e.padding = px }
}

// WithColor sets the stroke and fill color.
func WithColor(color string) Option {
	return func(e *Engine) {
		if color != "" {
			e.color = color
		}
	}
}

// WithSeed starts the session from an existing ring (edit mode). The ring is
// used as given; no reordering happens here.
func WithSeed(ring []geo.Point) Option {
	return func(e *Engine) {
		e.points = append([]geo.Point(nil), ring...)
	}
}

// OnClosed registers the callback receiving the finished ring. It runs only
// on the transition into the closed state.
func OnClosed(fn func(ring []geo.Point)) Option {
	return func(e *Engine) { e.onClosed = fn }
}

// New creates a session on the surface. A seed with at least MinVertices
// points starts closed and frames the viewport on it; a shorter seed starts
// collecting.
func New(surface mapsurface.Surface, opts ...Option) *Engine {
	e := &Engine{
		surface:   surface,
		shapes:    mapsurface.NewShapeTable(surface),
		threshold: DefaultClosureThresholdPx,
		padding:   DefaultFitPaddingPx,
		color:     DefaultColor,
	}
	for _, opt := range opts {
		opt(e)
	}

	switch {
	case len(e.points) >= MinVertices:
		e.status = StatusClosed
	case len(e.points) > 0:
		e.status = StatusCollecting
	default:
		e.status = StatusEmpty
	}
	e.render()
	return e
}

// Attach subscribes the session to the surface's click events.
func (e *Engine) Attach() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || e.unsubscribe != nil {
		return
	}
	e.unsubscribe = e.surface.OnClick(e.Click)
}

// Click handles a map click at p.
func (e *Engine) Click(p geo.Point) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}

	var closedRing []geo.Point
	switch e.status {
	case StatusClosed:
		e.mu.Unlock()
		return
	case StatusEmpty:
		e.points = append(e.points, p)
		e.status = StatusCollecting
	case StatusCollecting:
		if len(e.points) >= MinVertices && e.nearFirst(p) {
			e.status = StatusClosed
			closedRing = e.ringLocked()
		} else {
			e.points = append(e.points, p)
		}
	}
	e.render()
	fn := e.onClosed
	e.mu.Unlock()

	if closedRing != nil && fn != nil {
		fn(closedRing)
	}
}

// nearFirst projects both the first vertex and the click now, since the
// viewport may have moved since the first vertex was placed.
func (e *Engine) nearFirst(p geo.Point) bool {
	first := e.surface.ProjectToScreen(e.points[0])
	click := e.surface.ProjectToScreen(p)
	return geo.PixelDistance(first, click) <= e.threshold
}

// Undo removes the last vertex while collecting.
func (e *Engine) Undo() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || e.status != StatusCollecting {
		return
	}
	e.points = e.points[:len(e.points)-1]
	if len(e.points) == 0 {
		e.status = StatusEmpty
	}
	e.render()
}

// Reset discards the session's points in any state.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	e.points = nil
	e.status = StatusEmpty
	e.render()
}

// SetColor changes the rendering color and redraws.
func (e *Engine) SetColor(color string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || color == "" || color == e.color {
		return
	}
	e.color = color
	e.render()
}

// Close ends the session: the click subscription is dropped and every shape
// the session placed is removed. Later events are ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	e.shapes.Release()
	e.points = nil
	e.destroyed = true
}

// Status returns the current state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Points returns a copy of the captured vertices.
func (e *Engine) Points() []geo.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]geo.Point(nil), e.points...)
}

// Ring returns the finished ring; ok is false until the session is closed.
func (e *Engine) Ring() (ring []geo.Point, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusClosed || e.destroyed {
		return nil, false
	}
	return e.ringLocked(), true
}

func (e *Engine) ringLocked() []geo.Point {
	return append([]geo.Point(nil), e.points...)
}

// render redraws the session from scratch. Every previous handle is released
// first so nothing leaks on the surface between states.
func (e *Engine) render() {
	e.shapes.Release()

	if e.status == StatusClosed {
		e.surface.SetCursor(mapsurface.CursorDefault)
		e.shapes.Track(layerPolygon, e.surface.AddPolygon(e.points, mapsurface.FillStyle{
			Color:       e.color,
			FillOpacity: 0.35,
		}))
		e.surface.FitBounds(e.points, e.padding)
		return
	}

	e.surface.SetCursor(mapsurface.CursorDraw)
	closable := len(e.points) >= MinVertices

	for i, p := range e.points {
		style := mapsurface.MarkerStyle{Color: e.color}
		if i == 0 {
			style.Primary = true
			if closable {
				style.Tooltip = closeHint
			}
		}
		e.shapes.Track(layerMarkers, e.surface.AddMarker(p, style))
	}

	if len(e.points) >= 2 {
		e.shapes.Track(layerEdges, e.surface.AddPolyline(e.points, mapsurface.LineStyle{
			Color:   e.color,
			Weight:  3,
			Opacity: 1,
		}))
	}

	if closable {
		closing := []geo.Point{e.points[len(e.points)-1], e.points[0]}
		e.shapes.Track(layerClosing, e.surface.AddPolyline(closing, mapsurface.LineStyle{
			Color:   e.color,
			Weight:  2,
			Opacity: 0.3,
			Dashed:  true,
		}))
	}
}
