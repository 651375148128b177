// Package circle edits a single-center circular region. The center comes
// from an address lookup, typed coordinates, or a map pick; the radius is
// always typed.
package circle

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/fleetconsole/console/internal/geo"
	"github.com/fleetconsole/console/internal/geofence"
	"github.com/fleetconsole/console/internal/mapsurface"
)

// SubMode selects how the center is produced.
type SubMode string

const (
	SubModeAddress SubMode = "address"
	SubModeManual  SubMode = "manual"
	SubModePin     SubMode = "pin"
)

func (m SubMode) Valid() bool {
	return m == SubModeAddress || m == SubModeManual || m == SubModePin
}

// CreationMode is the mode recorded on the geofence. Manual entry shares the
// address form's fields, and the coordinates creation mode is reserved for
// polygons.
func (m SubMode) CreationMode() geofence.CreationMode {
	if m == SubModePin {
		return geofence.ModePin
	}
	return geofence.ModeAddress
}

// Geocoder resolves free text to a single coordinate.
type Geocoder interface {
	Search(ctx context.Context, text string) (geo.Point, error)
}

var (
	// ErrStale is returned for a lookup answered after the editor closed or
	// after a newer lookup or mode change. Its result was not applied.
	ErrStale = errors.New("circle: stale geocode result discarded")
	// ErrClosed is returned when the editor was already torn down.
	ErrClosed = errors.New("circle: editor closed")
	// ErrNoGeocoder is returned when address lookup is not configured.
	ErrNoGeocoder = errors.New("circle: address lookup unavailable")
)

const DefaultColor = "#3388ff"

// FieldAddress is the validation key for the address input.
const FieldAddress = "address"

// Editor is one circle editing session. Methods may be called from map
// callbacks and from lookup goroutines.
type Editor struct {
	mu sync.Mutex

	surface  mapsurface.Surface
	shapes   *mapsurface.ShapeTable
	geocoder Geocoder

	mode    SubMode
	fields  geofence.CircleFields
	address string
	color   string

	generation  uint64
	unsubscribe func()
	closed      bool
}

type Option func(*Editor)

func WithColor(color string) Option {
	return func(e *Editor) {
		if color != "" {
			e.color = color
		}
	}
}

func WithMode(m SubMode) Option {
	return func(e *Editor) {
		if m.Valid() {
			e.mode = m
		}
	}
}

// WithCenter seeds the editor from an existing circle (edit mode).
func WithCenter(center geo.Point, radiusMeters float64) Option {
	return func(e *Editor) {
		e.fields = geofence.CircleFields{
			Lat:    formatCoord(center.Lat),
			Lng:    formatCoord(center.Lng),
			Radius: formatCoord(radiusMeters),
		}
	}
}

// New returns an editor in address mode unless configured otherwise. A nil
// geocoder disables address lookup.
func New(surface mapsurface.Surface, geocoder Geocoder, opts ...Option) *Editor {
	e := &Editor{
		surface:  surface,
		shapes:   mapsurface.NewShapeTable(surface),
		geocoder: geocoder,
		mode:     SubModeAddress,
		color:    DefaultColor,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.render()
	return e
}

// Attach subscribes to map clicks. Clicks only count in pin mode.
func (e *Editor) Attach() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.unsubscribe != nil {
		return
	}
	e.unsubscribe = e.surface.OnClick(e.Click)
}

// SetMode switches the sub-mode. Entered values are kept; any lookup still
// in flight will be discarded.
func (e *Editor) SetMode(m SubMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !m.Valid() || m == e.mode {
		return
	}
	e.mode = m
	e.generation++
}

func (e *Editor) Mode() SubMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

func (e *Editor) SetLat(text string)    { e.update(func(f *geofence.CircleFields) { f.Lat = text }) }
func (e *Editor) SetLng(text string)    { e.update(func(f *geofence.CircleFields) { f.Lng = text }) }
func (e *Editor) SetRadius(text string) { e.update(func(f *geofence.CircleFields) { f.Radius = text }) }

// SetColor changes the preview color.
func (e *Editor) SetColor(color string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || color == "" || color == e.color {
		return
	}
	e.color = color
	e.render()
}

func (e *Editor) update(fn func(f *geofence.CircleFields)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	fn(&e.fields)
	e.render()
}

// Click sets the center in pin mode. A second click replaces the first.
func (e *Editor) Click(p geo.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.mode != SubModePin {
		return
	}
	e.fields.Lat = formatCoord(p.Lat)
	e.fields.Lng = formatCoord(p.Lng)
	e.render()
}

// LookupAddress geocodes text and fills the center fields. On failure the
// fields are left as they were and the geocoder's error is returned. The
// editor lock is not held during the lookup.
func (e *Editor) LookupAddress(ctx context.Context, text string) (geo.Point, error) {
	if strings.TrimSpace(text) == "" {
		verr := &geofence.ValidationError{}
		verr.Add(FieldAddress, "is required")
		return geo.Point{}, verr
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return geo.Point{}, ErrClosed
	}
	e.generation++
	gen := e.generation
	e.address = text
	gc := e.geocoder
	e.mu.Unlock()

	if gc == nil {
		return geo.Point{}, ErrNoGeocoder
	}

	p, err := gc.Search(ctx, text)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || gen != e.generation {
		return geo.Point{}, ErrStale
	}
	if err != nil {
		return geo.Point{}, err
	}
	e.fields.Lat = formatCoord(p.Lat)
	e.fields.Lng = formatCoord(p.Lng)
	e.render()
	return p, nil
}

// Fields returns the raw inputs.
func (e *Editor) Fields() geofence.CircleFields {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fields
}

// Address returns the last text submitted for lookup.
func (e *Editor) Address() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.address
}

// Validate checks the current inputs without changing them.
func (e *Editor) Validate() (geo.Point, float64, error) {
	e.mu.Lock()
	fields := e.fields
	e.mu.Unlock()

	center, radius, verr := geofence.ParseCircle(fields)
	if verr != nil {
		return geo.Point{}, 0, verr
	}
	return center, radius, nil
}

// Source is the editor's contribution to payload assembly.
func (e *Editor) Source() geofence.GeometrySource {
	e.mu.Lock()
	defer e.mu.Unlock()
	return geofence.GeometrySource{Mode: e.mode.CreationMode(), Circle: e.fields}
}

// Close removes the preview and stops listening. A lookup still in flight
// is discarded when it returns.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	e.shapes.Release()
	e.closed = true
	e.generation++
}

// render removes the previous preview and draws the current one. The center
// marker appears as soon as the coordinates parse; the circle needs a valid
// radius too.
func (e *Editor) render() {
	e.shapes.Release()

	center, radius, verr := geofence.ParseCircle(e.fields)
	if verr == nil {
		e.shapes.Track("circle", e.surface.AddCircle(center, radius, mapsurface.FillStyle{
			Color:       e.color,
			FillOpacity: 0.2,
		}))
		e.shapes.Track("center", e.surface.AddMarker(center, mapsurface.MarkerStyle{Color: e.color, Primary: true}))
		return
	}
	if verr.Field(geofence.FieldLat) != "" || verr.Field(geofence.FieldLng) != "" {
		return
	}
	lat, _ := strconv.ParseFloat(strings.TrimSpace(e.fields.Lat), 64)
	lng, _ := strconv.ParseFloat(strings.TrimSpace(e.fields.Lng), 64)
	e.shapes.Track("center", e.surface.AddMarker(geo.Point{Lat: lat, Lng: lng}, mapsurface.MarkerStyle{Color: e.color, Primary: true}))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
