package access_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/fleetconsole/console/internal/access"
	"github.com/fleetconsole/console/internal/testfixtures"
)

var editors = []access.Role{access.RoleSuperuser, access.RoleAdmin}

func TestGuardStartsLoadingWithoutSideEffects(t *testing.T) {
	nav := &testfixtures.Navigator{}
	g := access.NewGuard(editors, nav)

	if g.State() != access.StateLoading {
		t.Fatalf("expected loading, got %s", g.State())
	}
	if len(nav.Redirects()) != 0 {
		t.Fatalf("loading must not navigate, got %v", nav.Redirects())
	}
	if g.Authorized() {
		t.Fatal("loading guard must not render content")
	}
}

func TestGuardResolve(t *testing.T) {
	cases := []struct {
		name      string
		actor     *access.Actor
		want      access.State
		redirects []string
		err       error
	}{
		{"no actor", nil, access.StateUnauthenticated, []string{"/signin"}, access.ErrUnauthenticated},
		{"role not allowed", &access.Actor{UserID: "u1", Role: access.RoleOperatorMonitor, ClientID: "c1"}, access.StateForbidden, []string{"/home"}, access.ErrAuthorizationDenied},
		{"admin", &access.Actor{UserID: "u2", Role: access.RoleAdmin, ClientID: "c1"}, access.StateAuthorized, nil, nil},
		{"superuser", &access.Actor{UserID: "u3", Role: access.RoleSuperuser}, access.StateAuthorized, nil, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			nav := &testfixtures.Navigator{}
			var observed []access.State
			g := access.NewGuard(editors, nav,
				access.WithRoutes("/signin", "/home"),
				access.WithObserver(func(s access.State) { observed = append(observed, s) }),
			)

			got := g.Resolve(tc.actor)
			if got != tc.want || g.State() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
			if !reflect.DeepEqual(nav.Redirects(), tc.redirects) {
				t.Fatalf("expected redirects %v, got %v", tc.redirects, nav.Redirects())
			}
			if !errors.Is(got.Err(), tc.err) {
				t.Fatalf("expected error %v, got %v", tc.err, got.Err())
			}
			if len(observed) != 1 || observed[0] != tc.want {
				t.Fatalf("observer saw %v", observed)
			}
		})
	}
}

func TestDecideEmptyAllowList(t *testing.T) {
	actor := &access.Actor{UserID: "u1", Role: access.RoleSuperuser}
	if got := access.Decide(nil, actor); got != access.StateForbidden {
		t.Fatalf("an empty allow-list must forbid everyone, got %s", got)
	}
}

func TestActorHelpers(t *testing.T) {
	su := access.Actor{Role: access.RoleSuperuser}
	admin := access.Actor{Role: access.RoleAdmin, ClientID: "c1"}
	op := access.Actor{Role: access.RoleOperatorAdmin, ClientID: "c1"}

	if !su.SeesAllUsers() || !admin.SeesAllUsers() || op.SeesAllUsers() {
		t.Fatal("only superusers and admins see the unscoped directory")
	}
	if su.ClientBound() || !admin.ClientBound() {
		t.Fatal("superusers are the only unbound role")
	}
	if access.Role("root").Valid() {
		t.Fatal("unknown role reported valid")
	}
}
