package console

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/fleetconsole/console/internal/access"
	"github.com/fleetconsole/console/internal/circle"
	"github.com/fleetconsole/console/internal/drawing"
	"github.com/fleetconsole/console/internal/geo"
	"github.com/fleetconsole/console/internal/geofence"
	"github.com/fleetconsole/console/internal/mapsurface"
	"github.com/fleetconsole/console/internal/observability"
	"github.com/fleetconsole/console/internal/visibility"
)

var (
	// ErrNotOpen is returned by screen operations before Open succeeds or
	// after Close.
	ErrNotOpen = errors.New("console: screen not open")
	// ErrWrongEditor is returned when an operation targets the editor that
	// the current creation mode does not host.
	ErrWrongEditor = errors.New("console: operation not available in this creation mode")
	// ErrGlobalReadOnly is returned when a client-bound actor opens a global
	// geofence for editing.
	ErrGlobalReadOnly = errors.New("console: global geofences are edited by superusers only")
)

// Deps are the collaborators a screen is wired with.
type Deps struct {
	Surface   mapsurface.Surface
	Geocoder  circle.Geocoder // nil disables address lookup
	Directory visibility.Directory
	Persist   Persistence
	Routes    *access.Routes
	Navigator access.Navigator
	Metrics   *observability.Collector

	ClosureThresholdPx float64
}

// Existing is a stored geofence opened for editing.
type Existing struct {
	Geofence geofence.Geofence
	Scope    visibility.Scope
}

// Screen is the geofence create/edit screen. It hosts exactly one editor at a
// time, chosen by creation mode.
type Screen struct {
	mu sync.Mutex

	deps      Deps
	resolver  *visibility.Resolver
	submitter *Submitter
	guard     *access.Guard

	actor            access.Actor
	explicitClientID string
	open             bool

	mode      geofence.CreationMode
	polygon   *drawing.Engine
	circle    *circle.Editor
	fields    geofence.FormFields
	selection *visibility.Selection
	eligible  []visibility.User
}

// NewScreen gates on the edit screen's allow-list, falling back to defaults
// when deps.Routes is nil.
func NewScreen(deps Deps) *Screen {
	routes := deps.Routes
	if routes == nil {
		routes = access.DefaultRoutes()
	}
	resolver := visibility.NewResolver(deps.Directory)
	s := &Screen{
		deps:      deps,
		resolver:  resolver,
		submitter: NewSubmitter(deps.Persist, resolver, deps.Metrics),
	}
	s.guard = routes.Guard(access.ScreenGeofenceEdit, deps.Navigator, access.WithObserver(func(st access.State) {
		deps.Metrics.GuardDecision(access.ScreenGeofenceEdit, st.String())
	}))
	return s
}

// Open resolves the guard for actor and, when authorized, starts a session.
// A nil existing starts a new geofence in address mode. explicitClientID is
// the client the screen was opened for, if any. Any previous session ends
// first, also when the guard denies the new actor.
func (s *Screen) Open(ctx context.Context, actor *access.Actor, existing *Existing, explicitClientID string) error {
	if st := s.guard.Resolve(actor); st != access.StateAuthorized {
		s.Close()
		return st.Err()
	}
	if existing != nil && existing.Geofence.Assignment.Global() && !actor.IsSuperuser() {
		s.Close()
		return ErrGlobalReadOnly
	}

	s.mu.Lock()
	s.teardownLocked()
	s.actor = *actor
	s.explicitClientID = explicitClientID
	s.open = true

	if existing == nil {
		s.fields = geofence.FormFields{AlertType: geofence.AlertEntry}
		s.selection = visibility.NewSelection(visibility.Scope{Visibility: visibility.All})
		s.openEditorLocked(geofence.ModeAddress, nil)
	} else {
		g := existing.Geofence
		s.fields = fieldsOf(g)
		s.selection = visibility.NewSelection(existing.Scope)
		s.openEditorLocked(g.CreationMode, &g)
	}
	clientID := s.targetClientLocked()
	s.mu.Unlock()

	s.loadEligible(ctx, clientID)
	return nil
}

// SetMode switches the creation mode. Moving between the two circle modes
// keeps the circle editor; any other change replaces the editor, so an
// unfinished polygon is discarded.
func (s *Screen) SetMode(mode geofence.CreationMode) error {
	if !mode.Valid() {
		verr := &geofence.ValidationError{}
		verr.Add(geofence.FieldMode, "must be one of address, coordinates, pin")
		return verr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	if mode == s.modeLocked() {
		return nil
	}
	if s.circle != nil && mode.Kind() == geofence.KindCircle {
		s.circle.SetMode(subModeFor(mode))
		s.mode = mode
		return nil
	}
	s.closeEditorLocked()
	s.openEditorLocked(mode, nil)
	return nil
}

// Mode is the creation mode the saved geofence will record.
func (s *Screen) Mode() geofence.CreationMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modeLocked()
}

func (s *Screen) modeLocked() geofence.CreationMode {
	if s.circle != nil {
		return s.circle.Mode().CreationMode()
	}
	return s.mode
}

// Drawing returns the polygon engine, or nil outside coordinates mode.
func (s *Screen) Drawing() *drawing.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polygon
}

// Circle returns the circle editor, or nil in coordinates mode.
func (s *Screen) Circle() *circle.Editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.circle
}

// LookupAddress forwards to the circle editor. The screen lock is not held
// during the lookup.
func (s *Screen) LookupAddress(ctx context.Context, text string) (geo.Point, error) {
	ed := s.Circle()
	if ed == nil {
		return geo.Point{}, ErrWrongEditor
	}
	return ed.LookupAddress(ctx, text)
}

// SetFields replaces the non-geometry inputs and recolors the preview.
// Changing the assignment client reloads the eligible users and clears the
// user selection.
func (s *Screen) SetFields(ctx context.Context, f geofence.FormFields) {
	s.mu.Lock()
	before := s.targetClientLocked()
	if f.Color != s.fields.Color {
		if s.polygon != nil {
			s.polygon.SetColor(f.Color)
		}
		if s.circle != nil {
			s.circle.SetColor(f.Color)
		}
	}
	s.fields = f
	after := s.targetClientLocked()
	if before != after && s.selection != nil {
		s.selection.DeselectAll()
	}
	s.mu.Unlock()

	if before != after {
		s.loadEligible(ctx, after)
	}
}

// SetVisibility changes the visibility policy of the open session.
func (s *Screen) SetVisibility(v visibility.Visibility) error {
	return s.withSelection(func(sel *visibility.Selection) { sel.SetVisibility(v) })
}

// ToggleUser flips one user in the assigned set.
func (s *Screen) ToggleUser(id string) error {
	return s.withSelection(func(sel *visibility.Selection) { sel.ToggleUser(id) })
}

// SelectAllUsers assigns every currently eligible user.
func (s *Screen) SelectAllUsers() error {
	return s.withSelection(func(sel *visibility.Selection) { sel.SelectAll(s.eligible) })
}

func (s *Screen) DeselectAllUsers() error {
	return s.withSelection(func(sel *visibility.Selection) { sel.DeselectAll() })
}

// Scope is a snapshot of the visibility selection.
func (s *Screen) Scope() visibility.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return visibility.Scope{}
	}
	return s.selection.Scope()
}

// withSelection runs fn on the selection under the screen lock, since a
// Selection has no lock of its own.
func (s *Screen) withSelection(fn func(sel *visibility.Selection)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.selection == nil {
		return ErrNotOpen
	}
	fn(s.selection)
	return nil
}

// EligibleUsers is the last loaded list of assignable users.
func (s *Screen) EligibleUsers() []visibility.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]visibility.User(nil), s.eligible...)
}

// AssignmentOptions reports which assignment controls the actor is offered.
func (s *Screen) AssignmentOptions() geofence.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return geofence.AssignmentOptions(s.actor, s.explicitClientID)
}

// Submit assembles the payload from the active editor and hands it to
// persistence.
func (s *Screen) Submit(ctx context.Context) (string, geofence.Geofence, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return "", geofence.Geofence{}, ErrNotOpen
	}
	sub := Submission{
		Source:           s.sourceLocked(),
		Fields:           s.fields,
		Scope:            s.selection.Scope(),
		ExplicitClientID: s.explicitClientID,
	}
	actor := s.actor
	s.mu.Unlock()

	id, g, err := s.submitter.Submit(ctx, actor, sub)
	if err != nil {
		return "", geofence.Geofence{}, err
	}

	s.mu.Lock()
	if s.open {
		s.fields.ID = id
	}
	s.mu.Unlock()
	return id, g, nil
}

// Close tears down the active editor and ends the session.
func (s *Screen) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}

func (s *Screen) teardownLocked() {
	s.closeEditorLocked()
	s.open = false
	s.eligible = nil
}

func (s *Screen) closeEditorLocked() {
	if s.polygon != nil {
		s.polygon.Close()
		s.polygon = nil
	}
	if s.circle != nil {
		s.circle.Close()
		s.circle = nil
	}
}

func (s *Screen) openEditorLocked(mode geofence.CreationMode, seed *geofence.Geofence) {
	s.mode = mode
	color := s.fields.Color

	if mode.Kind() == geofence.KindPolygon {
		opts := []drawing.Option{
			drawing.WithColor(color),
			drawing.OnClosed(func([]geo.Point) { s.deps.Metrics.ShapeClosed(string(geofence.KindPolygon)) }),
		}
		if s.deps.ClosureThresholdPx > 0 {
			opts = append(opts, drawing.WithThreshold(s.deps.ClosureThresholdPx))
		}
		if seed != nil {
			opts = append(opts, drawing.WithSeed(seed.Ring()))
		}
		s.polygon = drawing.New(s.deps.Surface, opts...)
		s.polygon.Attach()
		return
	}

	opts := []circle.Option{circle.WithColor(color), circle.WithMode(subModeFor(mode))}
	if seed != nil && seed.Radius != nil {
		opts = append(opts, circle.WithCenter(seed.Center, *seed.Radius))
	}
	s.circle = circle.New(s.deps.Surface, s.deps.Geocoder, opts...)
	s.circle.Attach()
}

func (s *Screen) sourceLocked() geofence.GeometrySource {
	if s.circle != nil {
		return s.circle.Source()
	}
	src := geofence.GeometrySource{Mode: geofence.ModeCoordinates}
	if s.polygon != nil {
		if ring, ok := s.polygon.Ring(); ok {
			src.Ring = ring
		}
	}
	return src
}

// targetClientLocked is the client whose users may be assigned: the forced
// client for client-bound actors, otherwise the superuser's choice.
func (s *Screen) targetClientLocked() string {
	opts := geofence.AssignmentOptions(s.actor, s.explicitClientID)
	if opts.ForcedClientID != "" {
		return opts.ForcedClientID
	}
	if s.fields.AssignmentKind == geofence.AssignClient {
		return s.fields.ClientID
	}
	return ""
}

func (s *Screen) loadEligible(ctx context.Context, clientID string) {
	s.mu.Lock()
	actor := s.actor
	s.mu.Unlock()

	users, err := s.resolver.EligibleUsers(ctx, actor, clientID)
	if err != nil {
		log.Warn("eligible users unavailable for client %q: %v", clientID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open && s.targetClientLocked() == clientID {
		s.eligible = users
	}
}

func subModeFor(mode geofence.CreationMode) circle.SubMode {
	if mode == geofence.ModePin {
		return circle.SubModePin
	}
	return circle.SubModeAddress
}

func fieldsOf(g geofence.Geofence) geofence.FormFields {
	f := geofence.FormFields{
		ID:             g.ID,
		Name:           g.Name,
		Color:          g.Color,
		AlertType:      g.AlertType,
		AssignmentKind: g.Assignment.Kind,
		ClientID:       g.Assignment.ClientID,
	}
	if g.SpeedLimitKph != nil {
		f.SpeedLimit = strconv.Itoa(*g.SpeedLimitKph)
	}
	return f
}
