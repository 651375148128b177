package geofence

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fleetconsole/console/internal/access"
	"github.com/fleetconsole/console/internal/geo"
)

// Field keys used in ValidationError.
const (
	FieldName       = "name"
	FieldAlertType  = "alertType"
	FieldSpeedLimit = "speedLimitKph"
	FieldMode       = "creationMode"
	FieldPolygon    = "polygon"
	FieldLat        = "lat"
	FieldLng        = "lng"
	FieldRadius     = "radius"
	FieldAssignment = "assignment"
	FieldClientID   = "clientId"
)

type headerInput struct {
	Name      string `json:"name" validate:"required"`
	AlertType string `json:"alertType" validate:"required,alert_type"`
}

type speedInput struct {
	SpeedLimitKph int `json:"speedLimitKph" validate:"gte=0,lte=300"`
}

type circleInput struct {
	Lat    float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng    float64 `json:"lng" validate:"gte=-180,lte=180"`
	Radius float64 `json:"radius" validate:"gt=0"`
}

// Assemble validates the form and builds the payload. Rules run in order:
// name, alert type and speed limit, geometry, assignment. Every failing field
// is reported in a *ValidationError. Assemble has no side effects.
func Assemble(src GeometrySource, fields FormFields, actor access.Actor, explicitClientID string) (Geofence, error) {
	verr := &ValidationError{}

	name := strings.TrimSpace(fields.Name)
	verr.check(headerInput{Name: name, AlertType: string(fields.AlertType)})

	g := Geofence{
		ID:        fields.ID,
		Name:      name,
		Color:     fields.Color,
		AlertType: fields.AlertType,
	}

	if fields.AlertType.RequiresSpeedLimit() {
		if kph, ok := parseSpeedLimit(fields.SpeedLimit, verr); ok {
			g.SpeedLimitKph = &kph
		}
	}

	assembleGeometry(&g, src, verr)

	assignment, err := resolveAssignment(fields, actor, explicitClientID, verr)
	if verr.HasErrors() {
		return Geofence{}, verr
	}
	if err != nil {
		return Geofence{}, err
	}
	g.Assignment = assignment
	return g, nil
}

func parseSpeedLimit(raw string, verr *ValidationError) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		verr.Add(FieldSpeedLimit, "is required for speed limit alerts")
		return 0, false
	}
	kph, err := strconv.Atoi(raw)
	if err != nil {
		verr.Add(FieldSpeedLimit, "must be a whole number")
		return 0, false
	}
	before := len(verr.order)
	verr.check(speedInput{SpeedLimitKph: kph})
	return kph, len(verr.order) == before
}

func assembleGeometry(g *Geofence, src GeometrySource, verr *ValidationError) {
	if !src.Mode.Valid() {
		verr.Add(FieldMode, "must be one of address, coordinates, pin")
		return
	}
	g.CreationMode = src.Mode
	g.GeometryKind = src.Mode.Kind()

	if g.GeometryKind == KindPolygon {
		if len(src.Ring) < 3 {
			verr.Add(FieldPolygon, "draw at least 3 points and close the shape")
			return
		}
		for i, p := range src.Ring {
			if !geo.ValidLat(p.Lat) || !geo.ValidLng(p.Lng) {
				verr.Add(FieldPolygon, fmt.Sprintf("point %d is outside valid latitude/longitude ranges", i+1))
				return
			}
		}
		g.Center = geo.Centroid(src.Ring)
		g.Polygon = geo.ToExchange(src.Ring)
		g.Radius = nil
		return
	}

	center, radius, cerr := ParseCircle(src.Circle)
	if cerr != nil {
		verr.Merge(cerr)
		return
	}
	g.Center = center
	g.Radius = &radius
	g.Polygon = nil
}

// ParseCircle validates raw circle inputs. Each field is checked on its own so
// every bad field is reported at once.
func ParseCircle(f CircleFields) (geo.Point, float64, *ValidationError) {
	verr := &ValidationError{}
	lat := parseNumber(FieldLat, f.Lat, verr)
	lng := parseNumber(FieldLng, f.Lng, verr)
	radius := parseNumber(FieldRadius, f.Radius, verr)

	// Fields that failed to parse already hold a message; Add keeps it.
	verr.check(circleInput{Lat: lat, Lng: lng, Radius: radius})
	if verr.HasErrors() {
		return geo.Point{}, 0, verr
	}
	return geo.Point{Lat: lat, Lng: lng}, radius, nil
}

func parseNumber(field, raw string, verr *ValidationError) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		verr.Add(field, "is required")
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		verr.Add(field, "must be a number")
		return 0
	}
	return v
}

// Options describe the assignment controls the form offers an actor.
type Options struct {
	ShowAssignment bool   `json:"showAssignment"` // render the global/client chooser
	AllowGlobal    bool   `json:"allowGlobal"`    // offer the global option
	ForcedClientID string `json:"forcedClientId,omitempty"`
}

// AssignmentOptions decides the assignment UI. A caller-supplied client id
// suppresses the chooser for everyone; superusers otherwise choose freely;
// every other role is pinned to its own client.
func AssignmentOptions(actor access.Actor, explicitClientID string) Options {
	if explicitClientID != "" {
		return Options{ForcedClientID: explicitClientID}
	}
	if actor.IsSuperuser() {
		return Options{ShowAssignment: true, AllowGlobal: true}
	}
	return Options{ForcedClientID: actor.ClientID}
}

func resolveAssignment(fields FormFields, actor access.Actor, explicitClientID string, verr *ValidationError) (Assignment, error) {
	opts := AssignmentOptions(actor, explicitClientID)
	if opts.ForcedClientID != "" {
		return Assignment{Kind: AssignClient, ClientID: opts.ForcedClientID}, nil
	}
	if !opts.ShowAssignment {
		return Assignment{}, fmt.Errorf("%w: role %s", ErrAssignmentUnavailable, actor.Role)
	}

	switch fields.AssignmentKind {
	case AssignGlobal:
		return Assignment{Kind: AssignGlobal}, nil
	case AssignClient:
		clientID := strings.TrimSpace(fields.ClientID)
		if clientID == "" {
			verr.Add(FieldClientID, "select a client")
			return Assignment{}, nil
		}
		return Assignment{Kind: AssignClient, ClientID: clientID}, nil
	default:
		verr.Add(FieldAssignment, "choose global or a specific client")
		return Assignment{}, nil
	}
}
