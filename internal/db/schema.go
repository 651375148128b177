package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Schema holds every console table.
const Schema = "console"

// Migrate creates the console schema if needed and auto-migrates models
// into it. Models must name their tables with the Schema prefix.
func Migrate(d *gorm.DB, models ...interface{}) error {
	if err := d.Exec(`CREATE SCHEMA IF NOT EXISTS "` + Schema + `"`).Error; err != nil {
		return fmt.Errorf("ensure schema %s: %w", Schema, err)
	}
	return d.AutoMigrate(models...)
}
