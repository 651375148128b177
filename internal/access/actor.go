// Package access answers the coarse question of whether an actor may reach a
// screen at all. Per-record visibility lives in the visibility package.
package access

import "errors"

// Role is an actor's console role.
type Role string

const (
	RoleSuperuser       Role = "superuser"
	RoleAdmin           Role = "admin"
	RoleOperatorAdmin   Role = "operator-admin"
	RoleOperatorMonitor Role = "operator-monitor"
	RoleClientUser      Role = "client-user"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleSuperuser, RoleAdmin, RoleOperatorAdmin, RoleOperatorMonitor, RoleClientUser}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}
	return false
}

// Actor is the authenticated user driving the console.
type Actor struct {
	UserID   string `json:"userId"`
	Role     Role   `json:"role"`
	ClientID string `json:"clientId,omitempty"` // empty for superusers
}

func (a Actor) IsSuperuser() bool { return a.Role == RoleSuperuser }

// SeesAllUsers reports whether the directory hands this actor the unscoped
// user collection.
func (a Actor) SeesAllUsers() bool {
	return a.Role == RoleSuperuser || a.Role == RoleAdmin
}

// ClientBound reports whether the actor is tied to a single client.
func (a Actor) ClientBound() bool {
	return a.Role != RoleSuperuser
}

var (
	// ErrAuthorizationDenied ends the current navigation. Callers redirect
	// instead of showing it as a form error.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrUnauthenticated is returned when no actor could be resolved.
	ErrUnauthenticated = errors.New("unauthenticated")
)
