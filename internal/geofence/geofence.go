// Package geofence assembles the geofence payload handed to persistence and
// decides which assignment and alert options an actor is offered.
package geofence

import (
	"github.com/paulmach/orb"

	"github.com/fleetconsole/console/internal/geo"
)

type GeometryKind string

const (
	KindCircle  GeometryKind = "circle"
	KindPolygon GeometryKind = "polygon"
)

// CreationMode records how the operator produced the geometry.
type CreationMode string

const (
	ModeAddress     CreationMode = "address"
	ModeCoordinates CreationMode = "coordinates"
	ModePin         CreationMode = "pin"
)

// Kind is the geometry a mode always produces.
func (m CreationMode) Kind() GeometryKind {
	if m == ModeCoordinates {
		return KindPolygon
	}
	return KindCircle
}

func (m CreationMode) Valid() bool {
	return m == ModeAddress || m == ModeCoordinates || m == ModePin
}

type AlertType string

const (
	AlertEntry      AlertType = "entry"
	AlertExit       AlertType = "exit"
	AlertBoth       AlertType = "both"
	AlertSpeedLimit AlertType = "speed_limit"
)

// AlertTypes lists the alert kinds in display order.
func AlertTypes() []AlertType {
	return []AlertType{AlertEntry, AlertExit, AlertBoth, AlertSpeedLimit}
}

func (a AlertType) Valid() bool {
	for _, known := range AlertTypes() {
		if a == known {
			return true
		}
	}
	return false
}

// RequiresSpeedLimit reports whether the form must collect a speed limit.
func (a AlertType) RequiresSpeedLimit() bool { return a == AlertSpeedLimit }

const MaxSpeedLimitKph = 300

type AssignmentKind string

const (
	AssignGlobal AssignmentKind = "global"
	AssignClient AssignmentKind = "client"
)

type Assignment struct {
	Kind     AssignmentKind `json:"kind"`
	ClientID string         `json:"clientId,omitempty"`
}

// Global reports whether the geofence applies across every client.
func (a Assignment) Global() bool { return a.Kind == AssignGlobal }

// Geofence is the assembled payload. Exactly one of Radius and Polygon is set.
// Polygon is in exchange order (lng, lat) and is not explicitly closed.
type Geofence struct {
	ID            string       `json:"id,omitempty"`
	Name          string       `json:"name"`
	Color         string       `json:"color"`
	GeometryKind  GeometryKind `json:"geometryKind"`
	CreationMode  CreationMode `json:"creationMode"`
	Center        geo.Point    `json:"center"`
	Radius        *float64     `json:"radius"`
	Polygon       orb.Ring     `json:"polygon"`
	AlertType     AlertType    `json:"alertType"`
	SpeedLimitKph *int         `json:"speedLimitKph,omitempty"`
	Assignment    Assignment   `json:"assignment"`
}

// Ring returns the polygon in interactive (lat, lng) order, suitable for
// seeding a drawing session in edit mode.
func (g Geofence) Ring() []geo.Point {
	if g.Polygon == nil {
		return nil
	}
	return geo.FromExchange(g.Polygon)
}

// CircleFields are the raw circle inputs, exactly as typed or populated.
type CircleFields struct {
	Lat    string
	Lng    string
	Radius string
}

// GeometrySource is what the active editor produced.
type GeometrySource struct {
	Mode   CreationMode
	Ring   []geo.Point // coordinates mode, interactive order
	Circle CircleFields
}

// FormFields are the remaining form inputs.
type FormFields struct {
	ID         string
	Name       string
	Color      string
	AlertType  AlertType
	SpeedLimit string // raw input, ignored unless AlertType requires it

	// Operator's assignment choice; only consulted for superusers.
	AssignmentKind AssignmentKind
	ClientID       string
}
