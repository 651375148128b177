package geofence_test

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/fleetconsole/console/internal/access"
	"github.com/fleetconsole/console/internal/geo"
	"github.com/fleetconsole/console/internal/geofence"
)

var (
	superuser = access.Actor{UserID: "su", Role: access.RoleSuperuser}
	admin     = access.Actor{UserID: "ad", Role: access.RoleAdmin, ClientID: "c1"}
	operator  = access.Actor{UserID: "op", Role: access.RoleOperatorAdmin, ClientID: "c2"}

	triangle = []geo.Point{{Lat: 10, Lng: 10}, {Lat: 10, Lng: 20}, {Lat: 20, Lng: 20}}
)

func circleSource(lat, lng, radius string) geofence.GeometrySource {
	return geofence.GeometrySource{
		Mode:   geofence.ModePin,
		Circle: geofence.CircleFields{Lat: lat, Lng: lng, Radius: radius},
	}
}

func baseFields() geofence.FormFields {
	return geofence.FormFields{Name: "Depot", Color: "#ff0000", AlertType: geofence.AlertEntry}
}

func validationError(t *testing.T, err error) *geofence.ValidationError {
	t.Helper()
	var verr *geofence.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	return verr
}

func TestAssemblePolygon(t *testing.T) {
	src := geofence.GeometrySource{Mode: geofence.ModeCoordinates, Ring: triangle}

	g, err := geofence.Assemble(src, baseFields(), admin, "")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	if g.GeometryKind != geofence.KindPolygon || g.Radius != nil {
		t.Fatalf("expected polygon without radius, got %s radius %v", g.GeometryKind, g.Radius)
	}
	want := orb.Ring{{10, 10}, {20, 10}, {20, 20}}
	if !reflect.DeepEqual(g.Polygon, want) {
		t.Fatalf("expected exchange ring %v, got %v", want, g.Polygon)
	}
	if math.Abs(g.Center.Lat-13.33) > 0.01 || math.Abs(g.Center.Lng-16.67) > 0.01 {
		t.Fatalf("expected centroid (13.33, 16.67), got %v", g.Center)
	}
	if !reflect.DeepEqual(g.Ring(), triangle) {
		t.Fatalf("ring should convert back to interactive order, got %v", g.Ring())
	}
}

func TestAssemblePolygonNeedsThreePoints(t *testing.T) {
	src := geofence.GeometrySource{Mode: geofence.ModeCoordinates, Ring: triangle[:2]}
	_, err := geofence.Assemble(src, baseFields(), admin, "")
	if verr := validationError(t, err); verr.Field(geofence.FieldPolygon) == "" {
		t.Fatalf("expected polygon error, got %v", verr)
	}
}

func TestAssemblePolygonVertexRanges(t *testing.T) {
	cases := []struct {
		name string
		ring []geo.Point
		ok   bool
	}{
		{"latitude above 90", []geo.Point{{Lat: 200, Lng: 10}, {Lat: 10, Lng: 20}, {Lat: 20, Lng: 20}}, false},
		{"longitude above 180", []geo.Point{{Lat: 10, Lng: 10}, {Lat: 10, Lng: 500}, {Lat: 20, Lng: 20}}, false},
		{"longitude below -180", []geo.Point{{Lat: 10, Lng: 10}, {Lat: 10, Lng: 20}, {Lat: 20, Lng: -180.5}}, false},
		{"edges of the range", []geo.Point{{Lat: -90, Lng: -180}, {Lat: 90, Lng: -180}, {Lat: 90, Lng: 180}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := geofence.GeometrySource{Mode: geofence.ModeCoordinates, Ring: tc.ring}
			g, err := geofence.Assemble(src, baseFields(), admin, "")
			if tc.ok {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if verr := validationError(t, err); verr.Field(geofence.FieldPolygon) == "" {
				t.Fatalf("expected polygon error, got %v", verr)
			}
			if g.Polygon != nil {
				t.Fatalf("nothing may be assembled from an out-of-range ring, got %v", g.Polygon)
			}
		})
	}
}

func TestAssembleCircle(t *testing.T) {
	g, err := geofence.Assemble(circleSource("-33.86", "151.2", "250"), baseFields(), admin, "")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if g.GeometryKind != geofence.KindCircle || g.Polygon != nil {
		t.Fatalf("expected circle without polygon, got %s %v", g.GeometryKind, g.Polygon)
	}
	if g.Radius == nil || *g.Radius != 250 {
		t.Fatalf("expected radius 250, got %v", g.Radius)
	}
	if g.Center != (geo.Point{Lat: -33.86, Lng: 151.2}) {
		t.Fatalf("unexpected center %v", g.Center)
	}
}

func TestSpeedLimitOmittedUnlessRequired(t *testing.T) {
	fields := baseFields()
	fields.AlertType = geofence.AlertSpeedLimit
	fields.SpeedLimit = "80"

	g, err := geofence.Assemble(circleSource("1", "1", "10"), fields, admin, "")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if g.SpeedLimitKph == nil || *g.SpeedLimitKph != 80 {
		t.Fatalf("expected 80 kph, got %v", g.SpeedLimitKph)
	}

	// The operator switches the alert type back; the stale input stays in the form.
	for _, at := range []geofence.AlertType{geofence.AlertEntry, geofence.AlertExit, geofence.AlertBoth} {
		fields.AlertType = at
		g, err := geofence.Assemble(circleSource("1", "1", "10"), fields, admin, "")
		if err != nil {
			t.Fatalf("%s: %v", at, err)
		}
		if g.SpeedLimitKph != nil {
			t.Fatalf("%s: speed limit must be omitted, got %d", at, *g.SpeedLimitKph)
		}
		raw, _ := json.Marshal(g)
		if strings.Contains(string(raw), "speedLimit") {
			t.Fatalf("%s: payload must not carry a speed limit field: %s", at, raw)
		}
	}
}

func TestSpeedLimitBoundaries(t *testing.T) {
	cases := []struct {
		raw string
		ok  bool
	}{
		{"0", true},
		{"300", true},
		{"300.1", false},
		{"301", false},
		{"-1", false},
		{"", false},
		{"fast", false},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			t.Parallel()
			fields := baseFields()
			fields.AlertType = geofence.AlertSpeedLimit
			fields.SpeedLimit = tc.raw

			_, err := geofence.Assemble(circleSource("1", "1", "10"), fields, admin, "")
			if tc.ok && err != nil {
				t.Fatalf("expected %q accepted, got %v", tc.raw, err)
			}
			if !tc.ok {
				if verr := validationError(t, err); verr.Field(geofence.FieldSpeedLimit) == "" {
					t.Fatalf("expected speed limit error for %q, got %v", tc.raw, verr)
				}
			}
		})
	}
}

func TestCircleBoundaries(t *testing.T) {
	cases := []struct {
		name             string
		lat, lng, radius string
		field            string
	}{
		{"lat 90 accepted", "90", "0", "1", ""},
		{"lat -90 accepted", "-90", "180", "1", ""},
		{"lat 90.0001", "90.0001", "0", "1", geofence.FieldLat},
		{"lng -180.5", "0", "-180.5", "1", geofence.FieldLng},
		{"radius zero", "0", "0", "0", geofence.FieldRadius},
		{"radius negative", "0", "0", "-5", geofence.FieldRadius},
		{"lat not numeric", "north", "0", "1", geofence.FieldLat},
		{"lng NaN", "0", "NaN", "1", geofence.FieldLng},
		{"radius missing", "0", "0", " ", geofence.FieldRadius},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, _, verr := geofence.ParseCircle(geofence.CircleFields{Lat: tc.lat, Lng: tc.lng, Radius: tc.radius})
			if tc.field == "" {
				if verr != nil {
					t.Fatalf("expected valid circle, got %v", verr)
				}
				return
			}
			if verr.Field(tc.field) == "" {
				t.Fatalf("expected error on %s, got %v", tc.field, verr)
			}
		})
	}
}

func TestCircleReportsEveryField(t *testing.T) {
	_, _, verr := geofence.ParseCircle(geofence.CircleFields{Lat: "91", Lng: "x", Radius: "0"})
	want := []string{geofence.FieldLng, geofence.FieldLat, geofence.FieldRadius}
	got := verr.Fields()
	if len(got) != len(want) {
		t.Fatalf("expected %d failing fields, got %v", len(want), got)
	}
	if verr.Field(geofence.FieldLng) != "must be a number" {
		t.Fatalf("parse failure message should win, got %q", verr.Field(geofence.FieldLng))
	}
}

func TestAssignment(t *testing.T) {
	cases := []struct {
		name     string
		actor    access.Actor
		kind     geofence.AssignmentKind
		clientID string
		explicit string
		want     geofence.Assignment
		field    string
	}{
		{"admin forced to own client", admin, geofence.AssignGlobal, "c9", "", geofence.Assignment{Kind: geofence.AssignClient, ClientID: "c1"}, ""},
		{"operator forced to own client", operator, "", "", "", geofence.Assignment{Kind: geofence.AssignClient, ClientID: "c2"}, ""},
		{"superuser global", superuser, geofence.AssignGlobal, "", "", geofence.Assignment{Kind: geofence.AssignGlobal}, ""},
		{"superuser client", superuser, geofence.AssignClient, " c5 ", "", geofence.Assignment{Kind: geofence.AssignClient, ClientID: "c5"}, ""},
		{"superuser client missing id", superuser, geofence.AssignClient, "", "", geofence.Assignment{}, geofence.FieldClientID},
		{"superuser no choice", superuser, "", "", "", geofence.Assignment{}, geofence.FieldAssignment},
		{"explicit overrides superuser", superuser, geofence.AssignGlobal, "", "c7", geofence.Assignment{Kind: geofence.AssignClient, ClientID: "c7"}, ""},
		{"explicit overrides admin", admin, "", "", "c7", geofence.Assignment{Kind: geofence.AssignClient, ClientID: "c7"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fields := baseFields()
			fields.AssignmentKind = tc.kind
			fields.ClientID = tc.clientID

			g, err := geofence.Assemble(circleSource("1", "1", "10"), fields, tc.actor, tc.explicit)
			if tc.field != "" {
				if verr := validationError(t, err); verr.Field(tc.field) == "" {
					t.Fatalf("expected error on %s, got %v", tc.field, verr)
				}
				return
			}
			if err != nil {
				t.Fatalf("assemble: %v", err)
			}
			if g.Assignment != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, g.Assignment)
			}
		})
	}
}

func TestAssignmentUnavailableWithoutClient(t *testing.T) {
	orphan := access.Actor{UserID: "x", Role: access.RoleOperatorMonitor}
	_, err := geofence.Assemble(circleSource("1", "1", "10"), baseFields(), orphan, "")
	if !errors.Is(err, geofence.ErrAssignmentUnavailable) {
		t.Fatalf("expected ErrAssignmentUnavailable, got %v", err)
	}
}

func TestAssignmentOptions(t *testing.T) {
	if o := geofence.AssignmentOptions(superuser, ""); !o.ShowAssignment || !o.AllowGlobal || o.ForcedClientID != "" {
		t.Fatalf("superuser should choose freely, got %+v", o)
	}
	if o := geofence.AssignmentOptions(admin, ""); o.ShowAssignment || o.AllowGlobal || o.ForcedClientID != "c1" {
		t.Fatalf("admin should be pinned to c1 without global, got %+v", o)
	}
	if o := geofence.AssignmentOptions(superuser, "c3"); o.ShowAssignment || o.ForcedClientID != "c3" {
		t.Fatalf("explicit client should suppress the chooser, got %+v", o)
	}
}

func TestValidationOrderAndFirst(t *testing.T) {
	fields := geofence.FormFields{Name: "   ", AlertType: geofence.AlertSpeedLimit, SpeedLimit: "999"}
	src := geofence.GeometrySource{Mode: geofence.ModeCoordinates}

	_, err := geofence.Assemble(src, fields, superuser, "")
	verr := validationError(t, err)

	want := []string{geofence.FieldName, geofence.FieldSpeedLimit, geofence.FieldPolygon, geofence.FieldAssignment}
	if !reflect.DeepEqual(verr.Fields(), want) {
		t.Fatalf("expected fields in rule order %v, got %v", want, verr.Fields())
	}
	if field, _ := verr.First(); field != geofence.FieldName {
		t.Fatalf("expected name first, got %s", field)
	}
}

func TestUnknownAlertAndMode(t *testing.T) {
	fields := baseFields()
	fields.AlertType = "teleport"
	src := geofence.GeometrySource{Mode: "freehand"}

	_, err := geofence.Assemble(src, fields, admin, "")
	verr := validationError(t, err)
	if verr.Field(geofence.FieldAlertType) == "" || verr.Field(geofence.FieldMode) == "" {
		t.Fatalf("expected alert type and mode errors, got %v", verr)
	}
}

func TestAssembleIsIdempotent(t *testing.T) {
	src := geofence.GeometrySource{Mode: geofence.ModeCoordinates, Ring: triangle}
	fields := baseFields()

	a, errA := geofence.Assemble(src, fields, admin, "")
	b, errB := geofence.Assemble(src, fields, admin, "")
	if errA != nil || errB != nil {
		t.Fatalf("assemble: %v %v", errA, errB)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical payloads, got %+v and %+v", a, b)
	}
	if !reflect.DeepEqual(src.Ring, triangle) {
		t.Fatal("assemble must not modify the source ring")
	}
}

func TestAlertTypes(t *testing.T) {
	var requiring []geofence.AlertType
	for _, at := range geofence.AlertTypes() {
		if at.RequiresSpeedLimit() {
			requiring = append(requiring, at)
		}
	}
	if len(requiring) != 1 || requiring[0] != geofence.AlertSpeedLimit {
		t.Fatalf("only speed_limit requires a speed limit, got %v", requiring)
	}
}
