package auth

import (
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/utils"
	"gorm.io/gorm"
)

// SessionInfo resolves session ids for the middleware. The role is read fresh from the
// user row so approvals and demotions apply to live sessions.
type SessionInfo struct {
	DB *gorm.DB
}

func (si SessionInfo) FindSessionByID(id string) (utils.SessionData, error) {
	var session models.Session
	if err := si.DB.First(&session, "session_id = ?", id).Error; err != nil {
		return utils.SessionData{}, err
	}

	var user models.User
	if err := si.DB.Select("id", "role").First(&user, "id = ?", session.UserID).Error; err != nil {
		return utils.SessionData{}, err
	}

	return utils.SessionData{
		UserID:    session.UserID,
		Role:      user.Role,
		ExpiresAt: session.ExpiresAt,
	}, nil
}
