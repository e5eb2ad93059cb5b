package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Email           string    `gorm:"uniqueIndex:idx_users_email;not null" json:"email"`
	Name            string    `gorm:"not null" json:"name"`
	PasswordHash    string    `gorm:"not null" json:"-"`
	Role            Role      `gorm:"type:varchar(16);not null;default:PENDING;index:idx_users_role" json:"role"`
	Bio             *string   `json:"bio"`
	Website         *string   `json:"website"`
	Location        *string   `json:"location"`
	ProfilePhotoURL *string   `json:"profilePhotoUrl"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	Projects []Project `gorm:"foreignKey:UserID" json:"projects,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RolePending
	}
	u.Email = NormalizeEmail(u.Email)
	return nil
}

// Actor returns the request-scoped identity for u.
func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Actor is the caller of a service operation.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) Authenticated() bool { return a.UserID != "" }
func (a Actor) IsAdmin() bool       { return a.UserID != "" && a.Role == RoleAdmin }
func (a Actor) IsApproved() bool    { return a.UserID != "" && a.Role.IsApproved() }

// CanManage reports whether the actor may mutate content owned by ownerID.
func (a Actor) CanManage(ownerID string) bool {
	return a.IsAdmin() || (a.Authenticated() && a.UserID == ownerID)
}
