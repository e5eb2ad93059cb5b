package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Session struct {
	SessionID string    `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_sessions_user" json:"-"`
	ExpiresAt time.Time `gorm:"not null"`
}

type PasswordResetToken struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Token     string    `gorm:"uniqueIndex:idx_reset_tokens_token;not null"`
	UserID    string    `gorm:"size:36;not null;index:idx_reset_tokens_user"`
	ExpiresAt time.Time `gorm:"not null"`
	Used      bool      `gorm:"not null;default:false"`
	CreatedAt time.Time

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (t *PasswordResetToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
