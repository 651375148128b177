package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/fleetconsole/console/internal/access"
	"github.com/fleetconsole/console/internal/db"
	"github.com/fleetconsole/console/internal/geo"
	"github.com/fleetconsole/console/internal/geofence"
	"github.com/fleetconsole/console/internal/visibility"
)

func polygonFence() geofence.Geofence {
	ring := []geo.Point{{Lat: 10, Lng: 10}, {Lat: 10, Lng: 20}, {Lat: 20, Lng: 20}}
	return geofence.Geofence{
		Name:         "Yard",
		Color:        "#3388ff",
		GeometryKind: geofence.KindPolygon,
		CreationMode: geofence.ModeCoordinates,
		Center:       geo.Centroid(ring),
		Polygon:      geo.ToExchange(ring),
		AlertType:    geofence.AlertExit,
		Assignment:   geofence.Assignment{Kind: geofence.AssignClient, ClientID: "c1"},
	}
}

func circleFence() geofence.Geofence {
	radius := 250.0
	limit := 80
	return geofence.Geofence{
		Name:          "Depot",
		GeometryKind:  geofence.KindCircle,
		CreationMode:  geofence.ModePin,
		Center:        geo.Point{Lat: -33.86, Lng: 151.2},
		Radius:        &radius,
		AlertType:     geofence.AlertSpeedLimit,
		SpeedLimitKph: &limit,
		Assignment:    geofence.Assignment{Kind: geofence.AssignGlobal},
	}
}

func TestEncodeShapeClosesRingLongitudeFirst(t *testing.T) {
	raw, err := EncodeShape(polygonFence())
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("invalid geojson %s: %v", raw, err)
	}
	want := [][2]float64{{10, 10}, {20, 10}, {20, 20}, {10, 10}}
	if doc.Type != "Polygon" || !reflect.DeepEqual(doc.Coordinates[0], want) {
		t.Fatalf("expected closed lng,lat ring %v, got %s", want, raw)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	for _, g := range []geofence.Geofence{polygonFence(), circleFence()} {
		g.ID = uuid.NewString()
		scope := visibility.Scope{Visibility: visibility.Assigned, AssignedUserIDs: []string{"u1"}}

		rec, err := toRecord(g, scope)
		if err != nil {
			t.Fatal(err)
		}
		got, err := fromRecord(rec)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, g) {
			t.Fatalf("%s: round trip changed the geofence\nwant %+v\ngot  %+v", g.GeometryKind, g, got)
		}
		if res := resourceOf(rec); !reflect.DeepEqual(res.Scope, scope) || res.ClientID != g.Assignment.ClientID {
			t.Fatalf("unexpected resource %+v", res)
		}
	}
}

func TestRecordGlobalHasNoClient(t *testing.T) {
	rec, err := toRecord(circleFence(), visibility.Scope{})
	if err != nil {
		t.Fatal(err)
	}
	if rec.ClientID != nil {
		t.Fatalf("global geofence must store a null client, got %q", *rec.ClientID)
	}
	if rec.Visibility != string(visibility.All) {
		t.Fatalf("expected default visibility all, got %q", rec.Visibility)
	}
}

func TestDecodeShapeRejectsMismatch(t *testing.T) {
	g := geofence.Geofence{GeometryKind: geofence.KindCircle}
	raw, _ := EncodeShape(polygonFence())
	if err := DecodeShape(raw, &g); !errors.Is(err, errBadShape) {
		t.Fatalf("expected errBadShape, got %v", err)
	}
	if _, err := EncodeShape(geofence.Geofence{GeometryKind: "hexagon"}); err == nil {
		t.Fatal("expected an error for an unknown geometry kind")
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	_ = godotenv.Load("../../.env.local")
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	if db.DB == nil {
		if err := db.Connect(dsn, false); err != nil {
			t.Fatalf("connect: %v", err)
		}
	}
	if err := Migrate(db.DB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db.DB)
}

func TestSaveAndListVisible(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	client := "test-" + uuid.NewString()
	owner := access.Actor{UserID: uuid.NewString(), Role: access.RoleOperatorAdmin, ClientID: client}
	peer := access.Actor{UserID: uuid.NewString(), Role: access.RoleOperatorMonitor, ClientID: client}

	g := polygonFence()
	g.Assignment.ClientID = client
	id, err := s.SaveGeofence(ctx, owner, g, visibility.Scope{Visibility: visibility.OwnerOnly})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	t.Cleanup(func() { db.DB.Delete(&Record{}, "id = ?", id) })

	got, res, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if res.OwnerID != owner.UserID || !reflect.DeepEqual(got.Polygon, g.Polygon) {
		t.Fatalf("unexpected record %+v %+v", got, res)
	}

	ids := func(a access.Actor) []string {
		list, err := s.ListVisible(ctx, a)
		if err != nil {
			t.Fatal(err)
		}
		var out []string
		for _, f := range list {
			if f.ID == id {
				out = append(out, f.ID)
			}
		}
		return out
	}
	if len(ids(owner)) != 1 || len(ids(peer)) != 0 {
		t.Fatal("owner_only record must be listed for the owner only")
	}

	g.ID = id
	g.Name = "Yard 2"
	if _, err := s.SaveGeofence(ctx, peer, g, visibility.Scope{Visibility: visibility.Assigned, AssignedUserIDs: []string{peer.UserID}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(ids(peer)) != 1 {
		t.Fatal("assigned peer should now see the record")
	}
	if _, res, _ := s.Get(ctx, id); res.OwnerID != owner.UserID {
		t.Fatalf("update must keep the owner, got %q", res.OwnerID)
	}
}

func TestSaveUnknownID(t *testing.T) {
	s := openStore(t)
	g := circleFence()
	g.ID = uuid.NewString()
	if _, err := s.SaveGeofence(context.Background(), access.Actor{}, g, visibility.Scope{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Get(context.Background(), "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestContains(t *testing.T) {
	poly := polygonFence()
	circ := circleFence()

	cases := []struct {
		name string
		g    geofence.Geofence
		p    geo.Point
		want bool
	}{
		{"inside triangle", poly, geo.Point{Lat: 12, Lng: 18}, true},
		{"outside triangle", poly, geo.Point{Lat: 18, Lng: 12}, false},
		{"circle center", circ, circ.Center, true},
		{"within radius", circ, geo.Point{Lat: -33.861, Lng: 151.2}, true},
		{"beyond radius", circ, geo.Point{Lat: -33.87, Lng: 151.2}, false},
		{"circle without radius", geofence.Geofence{GeometryKind: geofence.KindCircle}, geo.Point{}, false},
	}
	for _, tc := range cases {
		if got := Contains(tc.g, tc.p); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
