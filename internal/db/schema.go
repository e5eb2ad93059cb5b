package db

import (
	"fmt"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
)

func EnsureSchema(d *gorm.DB, schema string) error {
	return d.Exec(`CREATE SCHEMA IF NOT EXISTS ` + pq.QuoteIdentifier(schema)).Error
}

// Migrate creates the schema (Postgres only) and brings every table up to date.
func Migrate(d *gorm.DB, schema string) error {
	if schema != "" && d.Dialector.Name() == "postgres" {
		if err := EnsureSchema(d, schema); err != nil {
			return fmt.Errorf("ensure schema %s: %w", schema, err)
		}
	}

	if err := d.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.PasswordResetToken{},
		&models.Town{},
		&models.Project{},
		&models.Photo{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
