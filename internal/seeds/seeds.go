package seeds

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/goccy/go-yaml"
	"gorm.io/gorm"

	"github.com/fleetconsole/console/internal/access"
	"github.com/fleetconsole/console/internal/directory"
	"github.com/fleetconsole/console/internal/store"
)

const DefaultUsersFile = "internal/seeds/data/users.yaml"

type seedUser struct {
	ID       string      `yaml:"id"`
	Username string      `yaml:"username"`
	Role     access.Role `yaml:"role"`
	ClientID string      `yaml:"client_id"`
}

// ParseUsers reads a YAML list of directory users. Every role must be known
// and only superusers may lack a client.
func ParseUsers(data []byte) ([]directory.User, error) {
	var raw []seedUser
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse users: %w", err)
	}
	out := make([]directory.User, 0, len(raw))
	for i, u := range raw {
		if u.ID == "" {
			return nil, fmt.Errorf("parse users: entry %d has no id", i)
		}
		if !u.Role.Valid() {
			return nil, fmt.Errorf("parse users: %s: unknown role %q", u.ID, u.Role)
		}
		if u.Role != access.RoleSuperuser && u.ClientID == "" {
			return nil, fmt.Errorf("parse users: %s: role %s needs a client_id", u.ID, u.Role)
		}
		out = append(out, directory.User{UserID: u.ID, Username: u.Username, Role: string(u.Role), ClientID: u.ClientID})
	}
	return out, nil
}

// SeedAll migrates the console tables and upserts the users in path.
func SeedAll(ctx context.Context, d *gorm.DB, path string) error {
	if err := directory.Migrate(d); err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}
	if err := store.Migrate(d); err != nil {
		return fmt.Errorf("migrate geofences: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", path, err)
	}
	users, err := ParseUsers(data)
	if err != nil {
		return err
	}

	dir := directory.New(d)
	for _, u := range users {
		if err := dir.Upsert(ctx, u); err != nil {
			return fmt.Errorf("failed to upsert user %s: %w", u.UserID, err)
		}
	}
	log.Printf("Seeded %d users", len(users))
	return nil
}
