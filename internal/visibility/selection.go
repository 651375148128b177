package visibility

import "sort"

// Selection is the editable visibility state of one form. Leaving Assigned
// clears the chosen users and coming back starts from an empty set; nothing
// is restored. A Selection is not safe for concurrent use.
type Selection struct {
	visibility Visibility
	assigned   map[string]struct{}
}

// NewSelection starts from an existing scope. Unknown visibilities fall back
// to All.
func NewSelection(scope Scope) *Selection {
	s := &Selection{visibility: scope.Visibility, assigned: make(map[string]struct{})}
	if !s.visibility.Valid() {
		s.visibility = All
	}
	if s.visibility == Assigned {
		for _, id := range scope.AssignedUserIDs {
			s.assigned[id] = struct{}{}
		}
	}
	return s
}

func (s *Selection) Visibility() Visibility { return s.visibility }

// SetVisibility changes the policy. Any change clears the assigned users.
func (s *Selection) SetVisibility(v Visibility) {
	if !v.Valid() || v == s.visibility {
		return
	}
	s.visibility = v
	s.assigned = make(map[string]struct{})
}

// ToggleUser adds or removes one user. No-op unless Assigned.
func (s *Selection) ToggleUser(id string) {
	if s.visibility != Assigned || id == "" {
		return
	}
	if _, ok := s.assigned[id]; ok {
		delete(s.assigned, id)
		return
	}
	s.assigned[id] = struct{}{}
}

// SelectAll assigns every eligible user. No-op unless Assigned.
func (s *Selection) SelectAll(eligible []User) {
	if s.visibility != Assigned {
		return
	}
	for _, u := range eligible {
		s.assigned[u.ID] = struct{}{}
	}
}

// DeselectAll clears the assigned users. No-op unless Assigned.
func (s *Selection) DeselectAll() {
	if s.visibility != Assigned {
		return
	}
	s.assigned = make(map[string]struct{})
}

func (s *Selection) Selected(id string) bool {
	_, ok := s.assigned[id]
	return ok
}

// Scope returns the current policy with users in sorted order.
func (s *Selection) Scope() Scope {
	scope := Scope{Visibility: s.visibility, AssignedUserIDs: []string{}}
	for id := range s.assigned {
		scope.AssignedUserIDs = append(scope.AssignedUserIDs, id)
	}
	sort.Strings(scope.AssignedUserIDs)
	return scope
}
