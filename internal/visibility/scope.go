// Package visibility decides which users may see a single record. It is
// generic over resource types and runs after route-level role gating.
package visibility

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fleetconsole/console/internal/access"
)

type Visibility string

const (
	All       Visibility = "all"
	OwnerOnly Visibility = "owner_only"
	Assigned  Visibility = "assigned"
)

func (v Visibility) Valid() bool {
	return v == All || v == OwnerOnly || v == Assigned
}

// Scope is a record's visibility policy. AssignedUserIDs is sorted, has no
// duplicates, and is only populated for Assigned. An empty assigned set is
// valid and differs from OwnerOnly.
type Scope struct {
	Visibility      Visibility `json:"visibility"`
	AssignedUserIDs []string   `json:"assignedUserIds"`
}

// User is a directory entry.
type User struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
}

var (
	ErrInvalidVisibility = errors.New("visibility: unknown visibility")
	ErrNotEligible       = errors.New("visibility: assigned users outside the record's client")
	ErrUnexpectedUsers   = errors.New("visibility: users assigned without assigned visibility")
)

// Validate checks a scope against the users eligible for the record.
func Validate(scope Scope, eligible []User) error {
	if !scope.Visibility.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidVisibility, scope.Visibility)
	}
	if scope.Visibility != Assigned {
		if len(scope.AssignedUserIDs) > 0 {
			return ErrUnexpectedUsers
		}
		return nil
	}

	allowed := make(map[string]struct{}, len(eligible))
	for _, u := range eligible {
		allowed[u.ID] = struct{}{}
	}
	var outside []string
	for _, id := range scope.AssignedUserIDs {
		if _, ok := allowed[id]; !ok {
			outside = append(outside, id)
		}
	}
	if len(outside) > 0 {
		sort.Strings(outside)
		return fmt.Errorf("%w: %s", ErrNotEligible, strings.Join(outside, ", "))
	}
	return nil
}

// Resource is the part of a record the visibility check needs.
type Resource struct {
	OwnerID  string
	ClientID string // empty for global records
	Scope    Scope
}

// CanView reports whether actor may see the record. Superusers see
// everything. Everyone else is confined to their own client's records and
// global ones; within that, admins see every record and other roles follow
// the record's scope.
func CanView(actor access.Actor, res Resource) bool {
	if actor.IsSuperuser() {
		return true
	}
	if res.ClientID != "" && res.ClientID != actor.ClientID {
		return false
	}
	if actor.Role == access.RoleAdmin {
		return true
	}
	if actor.UserID != "" && actor.UserID == res.OwnerID {
		return true
	}
	switch res.Scope.Visibility {
	case All:
		return true
	case Assigned:
		for _, id := range res.Scope.AssignedUserIDs {
			if id == actor.UserID {
				return true
			}
		}
	}
	return false
}

// CanEdit reports whether actor may change the record. Global records belong
// to superusers; any other record is editable by whoever can see it.
func CanEdit(actor access.Actor, res Resource) bool {
	if actor.IsSuperuser() {
		return true
	}
	if res.ClientID == "" {
		return false
	}
	return CanView(actor, res)
}
