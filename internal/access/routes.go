package access

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

const (
	DefaultLoginRoute   = "/login"
	DefaultLandingRoute = "/"
)

// Screen names gated by the console.
const (
	ScreenGeofences    = "geofences"
	ScreenGeofenceEdit = "geofences.edit"
)

// Routes is the per-screen role allow-list, usually loaded from YAML:
//
//	login: /login
//	landing: /dashboard
//	screens:
//	  geofences: [superuser, admin, operator-admin, operator-monitor]
//	  geofences.edit: [superuser, admin, operator-admin]
type Routes struct {
	Login   string            `yaml:"login"`
	Landing string            `yaml:"landing"`
	Screens map[string][]Role `yaml:"screens"`
}

// DefaultRoutes is used when no routes file is configured.
func DefaultRoutes() *Routes {
	return &Routes{
		Login:   DefaultLoginRoute,
		Landing: DefaultLandingRoute,
		Screens: map[string][]Role{
			ScreenGeofences:    {RoleSuperuser, RoleAdmin, RoleOperatorAdmin, RoleOperatorMonitor},
			ScreenGeofenceEdit: {RoleSuperuser, RoleAdmin, RoleOperatorAdmin},
		},
	}
}

// LoadRoutes reads an allow-list file.
func LoadRoutes(path string) (*Routes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes %s: %w", path, err)
	}
	return ParseRoutes(data)
}

// ParseRoutes decodes an allow-list document and rejects unknown roles.
func ParseRoutes(data []byte) (*Routes, error) {
	var rt Routes
	if err := yaml.Unmarshal(data, &rt); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}
	for screen, roles := range rt.Screens {
		for _, r := range roles {
			if !r.Valid() {
				return nil, fmt.Errorf("parse routes: screen %q: unknown role %q", screen, r)
			}
		}
	}
	if rt.Login == "" {
		rt.Login = DefaultLoginRoute
	}
	if rt.Landing == "" {
		rt.Landing = DefaultLandingRoute
	}
	return &rt, nil
}

// Allowed returns the roles that may reach a screen. Unknown screens allow
// nobody.
func (rt *Routes) Allowed(screen string) []Role {
	if rt == nil {
		return nil
	}
	return rt.Screens[screen]
}

// Guard builds a guard for one screen using this allow-list's redirects.
func (rt *Routes) Guard(screen string, nav Navigator, opts ...GuardOption) *Guard {
	opts = append([]GuardOption{WithRoutes(rt.Login, rt.Landing)}, opts...)
	return NewGuard(rt.Allowed(screen), nav, opts...)
}
