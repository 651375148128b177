// Package console composes the geofence screen: route gating, the editor for
// the chosen creation mode, payload assembly, visibility and persistence.
package console

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleetconsole/console/internal/access"
	"github.com/fleetconsole/console/internal/geofence"
	"github.com/fleetconsole/console/internal/observability"
	"github.com/fleetconsole/console/internal/utils/logger"
	"github.com/fleetconsole/console/internal/visibility"
)

var log = logger.New("console")

// ErrDirectoryUnavailable is returned when assigned users cannot be checked
// because the user directory failed.
var ErrDirectoryUnavailable = errors.New("console: user directory unavailable")

// Validation keys for the visibility part of the form.
const (
	FieldVisibility      = "visibility"
	FieldAssignedUserIDs = "assignedUserIds"
)

// Save results recorded on the geofences_saved counter.
const (
	resultSaved   = "saved"
	resultInvalid = "invalid"
	resultDenied  = "denied"
	resultFailed  = "failed"
)

// Persistence stores an assembled geofence and returns its ID.
type Persistence interface {
	SaveGeofence(ctx context.Context, owner access.Actor, g geofence.Geofence, scope visibility.Scope) (string, error)
}

// Submission is everything the form hands over on save.
type Submission struct {
	Source           geofence.GeometrySource
	Fields           geofence.FormFields
	Scope            visibility.Scope
	ExplicitClientID string
}

// Submitter runs assembly, visibility checks and persistence in that order.
// Nothing is persisted unless every check passes.
type Submitter struct {
	persist  Persistence
	resolver *visibility.Resolver
	metrics  *observability.Collector
}

func NewSubmitter(persist Persistence, resolver *visibility.Resolver, metrics *observability.Collector) *Submitter {
	return &Submitter{persist: persist, resolver: resolver, metrics: metrics}
}

func (s *Submitter) Submit(ctx context.Context, actor access.Actor, sub Submission) (string, geofence.Geofence, error) {
	g, err := geofence.Assemble(sub.Source, sub.Fields, actor, sub.ExplicitClientID)
	if err != nil {
		if errors.Is(err, geofence.ErrAssignmentUnavailable) {
			s.metrics.GeofenceSaved(resultDenied)
		} else {
			s.metrics.GeofenceSaved(resultInvalid)
		}
		return "", geofence.Geofence{}, err
	}

	scope := sub.Scope
	if scope.Visibility == "" {
		scope.Visibility = visibility.All
	}
	eligible, dirErr := s.resolver.EligibleUsers(ctx, actor, g.Assignment.ClientID)
	if dirErr != nil {
		log.Warn("eligible users unavailable for client %q: %v", g.Assignment.ClientID, dirErr)
	}
	if err := visibility.Validate(scope, eligible); err != nil {
		if dirErr != nil && errors.Is(err, visibility.ErrNotEligible) {
			s.metrics.GeofenceSaved(resultFailed)
			return "", geofence.Geofence{}, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, dirErr)
		}
		s.metrics.GeofenceSaved(resultInvalid)
		return "", geofence.Geofence{}, scopeError(err)
	}

	id, err := s.persist.SaveGeofence(ctx, actor, g, scope)
	if err != nil {
		s.metrics.GeofenceSaved(resultFailed)
		return "", geofence.Geofence{}, fmt.Errorf("save geofence: %w", err)
	}
	g.ID = id
	s.metrics.GeofenceSaved(resultSaved)
	log.Info("geofence %s saved by %s (%s, %s)", id, actor.UserID, g.GeometryKind, scope.Visibility)
	return id, g, nil
}

func scopeError(err error) *geofence.ValidationError {
	verr := &geofence.ValidationError{}
	switch {
	case errors.Is(err, visibility.ErrInvalidVisibility):
		verr.Add(FieldVisibility, "must be one of all, owner_only, assigned")
	case errors.Is(err, visibility.ErrUnexpectedUsers):
		verr.Add(FieldAssignedUserIDs, "users can only be listed for assigned visibility")
	default:
		verr.Add(FieldAssignedUserIDs, "includes users outside the selected client")
	}
	return verr
}
