package access

import "sync"

// State is the guard's resolution state for one screen.
type State int

const (
	StateLoading State = iota
	StateUnauthenticated
	StateForbidden
	StateAuthorized
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateForbidden:
		return "forbidden"
	case StateAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Err maps a terminal state to the error a caller should act on.
func (s State) Err() error {
	switch s {
	case StateUnauthenticated:
		return ErrUnauthenticated
	case StateForbidden:
		return ErrAuthorizationDenied
	default:
		return nil
	}
}

// Navigator performs redirects for the hosting screen.
type Navigator interface {
	Redirect(route string)
}

// Decide evaluates an actor against a role allow-list. A nil actor means the
// identity resolved to nobody.
func Decide(allowed []Role, actor *Actor) State {
	if actor == nil {
		return StateUnauthenticated
	}
	for _, r := range allowed {
		if r == actor.Role {
			return StateAuthorized
		}
	}
	return StateForbidden
}

// Guard gates one screen on the actor's role.
type Guard struct {
	mu sync.Mutex

	allowed []Role
	nav     Navigator
	login   string
	landing string

	state    State
	observer func(State)
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithRoutes sets the login and landing redirect targets.
func WithRoutes(login, landing string) GuardOption {
	return func(g *Guard) {
		if login != "" {
			g.login = login
		}
		if landing != "" {
			g.landing = landing
		}
	}
}

// WithObserver is called with every resolved state.
func WithObserver(fn func(State)) GuardOption {
	return func(g *Guard) { g.observer = fn }
}

// NewGuard returns a guard in the loading state.
func NewGuard(allowed []Role, nav Navigator, opts ...GuardOption) *Guard {
	g := &Guard{
		allowed: append([]Role(nil), allowed...),
		nav:     nav,
		login:   DefaultLoginRoute,
		landing: DefaultLandingRoute,
		state:   StateLoading,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve settles the guard once the actor identity is known and performs
// the matching redirect. A forbidden actor goes to the landing screen, a
// missing one to login.
func (g *Guard) Resolve(actor *Actor) State {
	g.mu.Lock()
	state := Decide(g.allowed, actor)
	g.state = state
	nav, observer := g.nav, g.observer
	login, landing := g.login, g.landing
	g.mu.Unlock()

	if observer != nil {
		observer(state)
	}
	if nav == nil {
		return state
	}
	switch state {
	case StateUnauthenticated:
		nav.Redirect(login)
	case StateForbidden:
		nav.Redirect(landing)
	}
	return state
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Authorized reports whether guarded content may render.
func (g *Guard) Authorized() bool {
	return g.State() == StateAuthorized
}
