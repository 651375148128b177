package circle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fleetconsole/console/internal/circle"
	"github.com/fleetconsole/console/internal/geo"
	"github.com/fleetconsole/console/internal/geocoding"
	"github.com/fleetconsole/console/internal/geofence"
	"github.com/fleetconsole/console/internal/testfixtures"
)

func newEditor(t *testing.T, opts ...circle.Option) (*circle.Editor, *testfixtures.Surface, *testfixtures.Geocoder) {
	t.Helper()
	s := testfixtures.NewSurface()
	gc := testfixtures.NewGeocoder()
	e := circle.New(s, gc, opts...)
	e.Attach()
	t.Cleanup(e.Close)
	return e, s, gc
}

func TestLookupAddressPopulatesFields(t *testing.T) {
	e, s, gc := newEditor(t)
	gc.Set("1 Harbour St", geo.Point{Lat: -33.86, Lng: 151.2})
	e.SetRadius("500")

	p, err := e.LookupAddress(context.Background(), "1 Harbour St")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if p != (geo.Point{Lat: -33.86, Lng: 151.2}) {
		t.Fatalf("unexpected point %v", p)
	}
	f := e.Fields()
	if f.Lat != "-33.86" || f.Lng != "151.2" {
		t.Fatalf("expected fields populated, got %+v", f)
	}
	if circles := s.Shapes("circle"); len(circles) != 1 || circles[0].Radius != 500 {
		t.Fatalf("expected one 500m preview, got %+v", circles)
	}
}

func TestLookupFailuresLeaveFieldsUntouched(t *testing.T) {
	e, _, gc := newEditor(t)
	e.SetLat("1")
	e.SetLng("2")
	gc.Fail("offline", &geocoding.TransportError{Op: "search", Err: errors.New("connection reset")})

	_, err := e.LookupAddress(context.Background(), "nowhere")
	if !errors.Is(err, geocoding.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = e.LookupAddress(context.Background(), "offline")
	var terr *geocoding.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}

	if f := e.Fields(); f.Lat != "1" || f.Lng != "2" {
		t.Fatalf("failed lookups must not change coordinates, got %+v", f)
	}
}

func TestLookupRequiresText(t *testing.T) {
	e, _, gc := newEditor(t)
	_, err := e.LookupAddress(context.Background(), "   ")

	var verr *geofence.ValidationError
	if !errors.As(err, &verr) || verr.Field(circle.FieldAddress) == "" {
		t.Fatalf("expected address validation error, got %v", err)
	}
	if len(gc.Calls()) != 0 {
		t.Fatal("blank address must not reach the geocoder")
	}
}

func TestLookupWithoutGeocoder(t *testing.T) {
	e := circle.New(testfixtures.NewSurface(), nil)
	defer e.Close()
	if _, err := e.LookupAddress(context.Background(), "x"); !errors.Is(err, circle.ErrNoGeocoder) {
		t.Fatalf("expected ErrNoGeocoder, got %v", err)
	}
}

func TestStaleLookupAfterCloseIsDiscarded(t *testing.T) {
	s := testfixtures.NewSurface()
	gc := testfixtures.NewGeocoder()
	gc.Set("slow", geo.Point{Lat: 5, Lng: 5})
	started, release := gc.Hold("slow")
	e := circle.New(s, gc)
	e.SetRadius("100")

	done := make(chan error, 1)
	go func() {
		_, err := e.LookupAddress(context.Background(), "slow")
		done <- err
	}()

	<-started
	e.Close()
	release()

	if err := <-done; !errors.Is(err, circle.ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if s.Live() != 0 {
		t.Fatalf("closed editor must not draw, %d shapes live", s.Live())
	}
	if f := e.Fields(); f.Lat != "" {
		t.Fatalf("stale result must not be applied, got %+v", f)
	}
}

func TestNewerLookupWins(t *testing.T) {
	e, _, gc := newEditor(t)
	gc.Set("first", geo.Point{Lat: 1, Lng: 1})
	gc.Set("second", geo.Point{Lat: 2, Lng: 2})
	started, release := gc.Hold("first")

	done := make(chan error, 1)
	go func() {
		_, err := e.LookupAddress(context.Background(), "first")
		done <- err
	}()
	<-started

	if _, err := e.LookupAddress(context.Background(), "second"); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	release()

	if err := <-done; !errors.Is(err, circle.ErrStale) {
		t.Fatalf("expected the older lookup to be stale, got %v", err)
	}
	if f := e.Fields(); f.Lat != "2" || f.Lng != "2" {
		t.Fatalf("expected the newer result, got %+v", f)
	}
}

func TestModeChangeDiscardsLookup(t *testing.T) {
	e, _, gc := newEditor(t)
	gc.Set("slow", geo.Point{Lat: 3, Lng: 3})
	started, release := gc.Hold("slow")

	done := make(chan error, 1)
	go func() {
		_, err := e.LookupAddress(context.Background(), "slow")
		done <- err
	}()
	<-started
	e.SetMode(circle.SubModePin)
	release()

	if err := <-done; !errors.Is(err, circle.ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
}

func TestPinModeReplacesCenter(t *testing.T) {
	e, s, _ := newEditor(t, circle.WithMode(circle.SubModePin))
	e.SetRadius("250")

	s.Click(geo.Point{Lat: 1, Lng: 1})
	s.Click(geo.Point{Lat: 2, Lng: 3})

	f := e.Fields()
	if f.Lat != "2" || f.Lng != "3" {
		t.Fatalf("expected the second click to replace the center, got %+v", f)
	}
	circles := s.Shapes("circle")
	if len(circles) != 1 || circles[0].Points[0] != (geo.Point{Lat: 2, Lng: 3}) {
		t.Fatalf("expected a single preview at the new center, got %+v", circles)
	}
	if n := len(s.Shapes("marker")); n != 1 {
		t.Fatalf("expected one center marker, got %d", n)
	}
	if got := e.Source().Mode; got != geofence.ModePin {
		t.Fatalf("expected pin creation mode, got %s", got)
	}
}

func TestClicksIgnoredOutsidePinMode(t *testing.T) {
	e, s, _ := newEditor(t)
	s.Click(geo.Point{Lat: 1, Lng: 1})
	if f := e.Fields(); f.Lat != "" || f.Lng != "" {
		t.Fatalf("address mode must ignore map clicks, got %+v", f)
	}
}

func TestPreviewRedrawsOnChange(t *testing.T) {
	e, s, _ := newEditor(t, circle.WithMode(circle.SubModeManual))

	e.SetLat("10")
	e.SetLng("20")
	if n := len(s.Shapes("circle")); n != 0 {
		t.Fatalf("no circle without a radius, got %d", n)
	}
	if n := len(s.Shapes("marker")); n != 1 {
		t.Fatalf("expected a center marker once coordinates parse, got %d", n)
	}

	e.SetRadius("100")
	e.SetRadius("150")
	e.SetColor("#00ff00")

	circles := s.Shapes("circle")
	if len(circles) != 1 {
		t.Fatalf("expected exactly one preview circle, got %d", len(circles))
	}
	if circles[0].Radius != 150 || circles[0].Fill.Color != "#00ff00" {
		t.Fatalf("preview not redrawn, got %+v", circles[0])
	}
	if got := e.Source().Mode; got != geofence.ModeAddress {
		t.Fatalf("manual entry records address mode, got %s", got)
	}

	e.SetRadius("-1")
	if n := len(s.Shapes("circle")); n != 0 {
		t.Fatalf("invalid radius must remove the preview, got %d", n)
	}
}

func TestValidateKeepsEnteredValues(t *testing.T) {
	e, _, _ := newEditor(t, circle.WithMode(circle.SubModeManual))
	e.SetLat("90.0001")
	e.SetLng("10")
	e.SetRadius("0")

	_, _, err := e.Validate()
	var verr *geofence.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Field(geofence.FieldLat) == "" || verr.Field(geofence.FieldRadius) == "" {
		t.Fatalf("expected lat and radius errors, got %v", verr)
	}
	if f := e.Fields(); f.Lat != "90.0001" || f.Radius != "0" {
		t.Fatalf("validation must not clear inputs, got %+v", f)
	}

	e.SetLat("90")
	e.SetRadius("1")
	center, radius, err := e.Validate()
	if err != nil || center.Lat != 90 || radius != 1 {
		t.Fatalf("expected valid circle, got %v %v %v", center, radius, err)
	}
}

func TestSeededCenter(t *testing.T) {
	e, s, _ := newEditor(t, circle.WithCenter(geo.Point{Lat: 48.85, Lng: 2.35}, 300))
	if f := e.Fields(); f.Lat != "48.85" || f.Lng != "2.35" || f.Radius != "300" {
		t.Fatalf("unexpected seeded fields %+v", f)
	}
	if n := len(s.Shapes("circle")); n != 1 {
		t.Fatalf("expected the seed to be previewed, got %d", n)
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	s := testfixtures.NewSurface()
	e := circle.New(s, nil, circle.WithCenter(geo.Point{Lat: 1, Lng: 1}, 10))
	e.Attach()
	e.Close()

	if s.Live() != 0 || s.Listeners() != 0 {
		t.Fatalf("expected no shapes or listeners, got %d and %d", s.Live(), s.Listeners())
	}
	if _, err := e.LookupAddress(context.Background(), "x"); !errors.Is(err, circle.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
