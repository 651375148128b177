// Package directory is the Postgres-backed user directory.
package directory

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fleetconsole/console/internal/access"
	"github.com/fleetconsole/console/internal/db"
	"github.com/fleetconsole/console/internal/visibility"
)

type User struct {
	UserID   string `gorm:"primaryKey" json:"user_id"`
	Username string `json:"username"`
	Role     string `gorm:"not null;default:'client-user'" json:"role"`
	ClientID string `gorm:"index" json:"client_id"`
}

func (User) TableName() string { return db.Schema + ".users" }

var ErrUserNotFound = errors.New("directory: user not found")

type Store struct {
	db *gorm.DB
}

func New(d *gorm.DB) *Store {
	return &Store{db: d}
}

// Migrate creates the users table.
func Migrate(d *gorm.DB) error {
	return db.Migrate(d, &User{})
}

func (s *Store) ListAll(ctx context.Context) ([]visibility.User, error) {
	var rows []User
	if err := s.db.WithContext(ctx).Order("user_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return toUsers(rows), nil
}

func (s *Store) ListByClient(ctx context.Context, clientID string) ([]visibility.User, error) {
	var rows []User
	err := s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("user_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list users for client %s: %w", clientID, err)
	}
	return toUsers(rows), nil
}

// FindActor loads the current role and client of a user. Roles are read
// from the table rather than trusted from a token alone.
func (s *Store) FindActor(ctx context.Context, userID string) (*access.Actor, error) {
	var u User
	err := s.db.WithContext(ctx).First(&u, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", userID, err)
	}
	return &access.Actor{UserID: u.UserID, Role: access.Role(u.Role), ClientID: u.ClientID}, nil
}

// Upsert writes a user row, used by the seed tool.
func (s *Store) Upsert(ctx context.Context, u User) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "role", "client_id"}),
	}).Create(&u).Error
}

func toUsers(rows []User) []visibility.User {
	out := make([]visibility.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, visibility.User{ID: r.UserID, ClientID: r.ClientID, Name: r.Username})
	}
	return out
}
