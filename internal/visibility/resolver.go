package visibility

import (
	"context"
	"fmt"
	"sort"

	"github.com/fleetconsole/console/internal/access"
)

// Directory lists console users.
type Directory interface {
	ListAll(ctx context.Context) ([]User, error)
	ListByClient(ctx context.Context, clientID string) ([]User, error)
}

// Resolver derives the users eligible for assignment on a record.
type Resolver struct {
	dir Directory
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// EligibleUsers returns every user of clientID, the actor included, sorted by
// ID. Superusers and admins read the full directory and filter here; other
// roles get the directory's client-scoped list, which is filtered again so
// both paths yield the same set. An empty clientID means the actor's own
// client; for a superuser it means a global record, which has no eligible
// users.
//
// On directory failure the list is empty and the error is returned for
// logging only.
func (r *Resolver) EligibleUsers(ctx context.Context, actor access.Actor, clientID string) ([]User, error) {
	if clientID == "" {
		clientID = actor.ClientID
	}
	if clientID == "" {
		return []User{}, nil
	}

	var (
		users []User
		err   error
	)
	if actor.SeesAllUsers() {
		users, err = r.dir.ListAll(ctx)
	} else {
		users, err = r.dir.ListByClient(ctx, clientID)
	}
	if err != nil {
		return []User{}, fmt.Errorf("list users for client %s: %w", clientID, err)
	}
	return scopeToClient(users, clientID), nil
}

func scopeToClient(users []User, clientID string) []User {
	seen := make(map[string]struct{}, len(users))
	out := make([]User, 0, len(users))
	for _, u := range users {
		if u.ClientID != clientID {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
