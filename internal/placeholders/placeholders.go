// Package placeholders manages the synthetic accounts that own imported galleries until a
// real photographer claims them.
package placeholders

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/towns"
	"github.com/SmallTownDocumentary/gallery-backend/internal/utils"
)

const (
	Domain        = "smalltown.gallery"
	DefaultEmail  = "unclaimed@" + Domain
	DefaultName   = "Unclaimed Legacy Collection"
	perUserPrefix = "legacy+"
)

// Registry knows which accounts are placeholders.
type Registry struct {
	GlobalEmail string
	GlobalName  string
}

func New(email, name string) *Registry {
	if email == "" {
		email = DefaultEmail
	}
	if name == "" {
		name = DefaultName
	}
	return &Registry{GlobalEmail: models.NormalizeEmail(email), GlobalName: name}
}

// EmailFor is the per-photographer placeholder address.
func EmailFor(photographer string) string {
	slug := towns.Slugify(photographer)
	if slug == "" {
		slug = "unknown"
	}
	return perUserPrefix + slug + "@" + Domain
}

func (r *Registry) IsPlaceholderEmail(email string) bool {
	email = models.NormalizeEmail(email)
	if email == r.GlobalEmail {
		return true
	}
	return strings.HasPrefix(email, perUserPrefix) && strings.HasSuffix(email, "@"+Domain)
}

func (r *Registry) IsPlaceholder(u *models.User) bool {
	return u != nil && u.Role == models.RolePending && r.IsPlaceholderEmail(u.Email)
}

// Global returns the collection owner, creating it on first use.
func (r *Registry) Global(tx *gorm.DB) (*models.User, error) {
	return ensure(tx, r.GlobalEmail, r.GlobalName)
}

// ForPhotographer returns the placeholder for a named photographer without an account.
func (r *Registry) ForPhotographer(tx *gorm.DB, photographer string) (*models.User, error) {
	return ensure(tx, EmailFor(photographer), photographer)
}

// IDs lists every placeholder account id.
func (r *Registry) IDs(tx *gorm.DB) ([]string, error) {
	var ids []string
	err := tx.Model(&models.User{}).
		Where("role = ?", models.RolePending).
		Where("email = ? OR (email LIKE ? AND email LIKE ?)", r.GlobalEmail, perUserPrefix+"%", "%@"+Domain).
		Pluck("id", &ids).Error
	return ids, err
}

func ensure(tx *gorm.DB, email, name string) (*models.User, error) {
	var user models.User
	err := tx.Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Nobody can log in as a placeholder: the password is random and discarded.
	hash, err := bcrypt.GenerateFromPassword([]byte(utils.GenerateUUID()), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user = models.User{Email: email, Name: name, PasswordHash: string(hash), Role: models.RolePending}
	if err := tx.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create placeholder %s: %w", email, err)
	}
	return &user, nil
}
