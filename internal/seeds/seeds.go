// Package seeds loads the canonical towns and the first admin account.
package seeds

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/auth"
	"github.com/SmallTownDocumentary/gallery-backend/internal/config"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/towns"
)

type Result struct {
	Towns        int  `json:"towns"`
	AdminCreated bool `json:"adminCreated"`
}

// SeedAll upserts every canonical town, then creates the admin when ADMIN_EMAIL and
// ADMIN_PASSWORD are both set. Safe to run repeatedly.
func SeedAll(ctx context.Context, db *gorm.DB, catalog *towns.Catalog, cfg config.SeedConfig, log zerolog.Logger) (Result, error) {
	var res Result
	n, err := catalog.Seed(db.WithContext(ctx))
	if err != nil {
		return res, err
	}
	res.Towns = n
	log.Info().Int("towns", n).Msg("seeded towns")

	created, err := SeedAdmin(ctx, db, cfg, log)
	if err != nil {
		return res, err
	}
	res.AdminCreated = created
	return res, nil
}

// SeedAdmin never touches an existing account with the same email.
func SeedAdmin(ctx context.Context, db *gorm.DB, cfg config.SeedConfig, log zerolog.Logger) (bool, error) {
	email := models.NormalizeEmail(cfg.AdminEmail)
	if email == "" || cfg.AdminPassword == "" {
		log.Info().Msg("ADMIN_EMAIL/ADMIN_PASSWORD not set, skipping admin")
		return false, nil
	}
	if len(cfg.AdminPassword) < auth.MinPasswordLength {
		return false, fmt.Errorf("ADMIN_PASSWORD must be at least %d characters", auth.MinPasswordLength)
	}

	tx := db.WithContext(ctx)
	var existing models.User
	err := tx.Where("email = ?", email).First(&existing).Error
	if err == nil {
		log.Info().Str("email", email).Msg("admin user already exists")
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), auth.BcryptCost)
	if err != nil {
		return false, err
	}
	name := cfg.AdminName
	if name == "" {
		name = "Admin"
	}
	admin := models.User{Email: email, Name: name, PasswordHash: string(hash), Role: models.RoleAdmin}
	if err := tx.Create(&admin).Error; err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	log.Info().Str("email", email).Str("id", admin.ID).Msg("created admin user")
	return true, nil
}
