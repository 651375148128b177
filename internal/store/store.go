// Package store persists assembled geofences with Postgres via gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/fleetconsole/console/internal/access"
	"github.com/fleetconsole/console/internal/db"
	"github.com/fleetconsole/console/internal/geofence"
	"github.com/fleetconsole/console/internal/visibility"
)

var ErrNotFound = errors.New("store: geofence not found")

// Record is the stored row. Shape is a GeoJSON geometry with a closed ring
// for polygons and a Point for circle centers.
type Record struct {
	ID              string `gorm:"primaryKey;type:uuid"`
	Name            string `gorm:"not null"`
	Color           string
	GeometryKind    string `gorm:"not null"`
	CreationMode    string `gorm:"not null"`
	Shape           string `gorm:"type:jsonb;not null"`
	RadiusM         *float64
	AlertType       string `gorm:"not null"`
	SpeedLimitKph   *int
	AssignmentKind  string         `gorm:"not null"`
	ClientID        *string        `gorm:"index"`
	OwnerID         string         `gorm:"index;not null"`
	Visibility      string         `gorm:"not null;default:'all'"`
	AssignedUserIDs pq.StringArray `gorm:"type:text[]"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Record) TableName() string { return db.Schema + ".geofences" }

type Store struct {
	db *gorm.DB
}

func New(d *gorm.DB) *Store {
	return &Store{db: d}
}

func Migrate(d *gorm.DB) error {
	return db.Migrate(d, &Record{})
}

// SaveGeofence inserts g, or replaces it when g.ID is set, and returns its ID.
// Owner is only written on insert.
func (s *Store) SaveGeofence(ctx context.Context, owner access.Actor, g geofence.Geofence, scope visibility.Scope) (string, error) {
	rec, err := toRecord(g, scope)
	if err != nil {
		return "", err
	}

	tx := s.db.WithContext(ctx)
	if g.ID == "" {
		rec.ID = uuid.NewString()
		rec.OwnerID = owner.UserID
		if err := tx.Create(&rec).Error; err != nil {
			return "", fmt.Errorf("create geofence: %w", err)
		}
		return rec.ID, nil
	}

	if _, err := uuid.Parse(g.ID); err != nil {
		return "", ErrNotFound
	}
	res := tx.Model(&Record{}).Where("id = ?", g.ID).Select("*").Omit("id", "owner_id", "created_at").Updates(&rec)
	if res.Error != nil {
		return "", fmt.Errorf("update geofence %s: %w", g.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return "", ErrNotFound
	}
	return g.ID, nil
}

// Get loads a geofence with the metadata used for visibility checks.
func (s *Store) Get(ctx context.Context, id string) (geofence.Geofence, visibility.Resource, error) {
	if _, err := uuid.Parse(id); err != nil {
		return geofence.Geofence{}, visibility.Resource{}, ErrNotFound
	}
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return geofence.Geofence{}, visibility.Resource{}, ErrNotFound
	}
	if err != nil {
		return geofence.Geofence{}, visibility.Resource{}, fmt.Errorf("get geofence %s: %w", id, err)
	}
	g, err := fromRecord(rec)
	if err != nil {
		return geofence.Geofence{}, visibility.Resource{}, err
	}
	return g, resourceOf(rec), nil
}

// ListVisible returns the geofences the actor may see, newest first.
func (s *Store) ListVisible(ctx context.Context, actor access.Actor) ([]geofence.Geofence, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if actor.ClientBound() {
		q = q.Where("client_id IS NULL OR client_id = ?", actor.ClientID)
	}
	var rows []Record
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list geofences: %w", err)
	}

	out := make([]geofence.Geofence, 0, len(rows))
	for _, rec := range rows {
		if !visibility.CanView(actor, resourceOf(rec)) {
			continue
		}
		g, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func resourceOf(rec Record) visibility.Resource {
	res := visibility.Resource{
		OwnerID: rec.OwnerID,
		Scope: visibility.Scope{
			Visibility:      visibility.Visibility(rec.Visibility),
			AssignedUserIDs: []string(rec.AssignedUserIDs),
		},
	}
	if rec.ClientID != nil {
		res.ClientID = *rec.ClientID
	}
	return res
}
