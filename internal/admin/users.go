package admin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
)

const (
	ResetTokenTTL   = 24 * time.Hour
	resetTokenBytes = 32
	resetPath       = "/reset-password?token="
)

var transitionMessages = map[models.RoleAction]string{
	models.ActionApprove: "User is not pending.",
	models.ActionReject:  "Can only reject pending users.",
	models.ActionPromote: "Can only promote photographers.",
	models.ActionDemote:  "User is not an admin.",
}

// ListUsers returns real accounts, newest first. Placeholder owners are listed separately.
func (s *Service) ListUsers(ctx context.Context, actor models.Actor, filter UserFilter) ([]UserSummary, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	tx := s.db.WithContext(ctx)
	excluded, err := s.placeholders.IDs(tx)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	q := tx.Model(&models.User{}).Order("created_at DESC")
	if filter == FilterPending {
		q = q.Where("role = ?", models.RolePending)
	}
	if len(excluded) > 0 {
		q = q.Where("id NOT IN ?", excluded)
	}
	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	counts, err := projectCounts(tx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]UserSummary, len(users))
	for i, u := range users {
		out[i] = UserSummary{
			ID:           u.ID,
			Email:        u.Email,
			Name:         u.Name,
			Role:         u.Role,
			CreatedAt:    u.CreatedAt,
			ProjectCount: counts[u.ID],
		}
	}
	return out, nil
}

func projectCounts(tx *gorm.DB) (map[string]int, error) {
	var rows []struct {
		UserID string
		N      int
	}
	err := tx.Model(&models.Project{}).Select("user_id, COUNT(*) AS n").Group("user_id").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.UserID] = r.N
	}
	return counts, nil
}

// ChangeRole applies one admin role action. Reject deletes the pending account.
func (s *Service) ChangeRole(ctx context.Context, actor models.Actor, userID string, action models.RoleAction) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return apperr.Invalid("Missing user ID.")
	}
	if _, ok := transitionMessages[action]; !ok {
		return apperr.Invalid("Unknown action.")
	}
	if action == models.ActionDemote && userID == actor.UserID {
		return apperr.Invalid("Cannot demote yourself.")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("User not found.")
			}
			return apperr.Internal(err)
		}
		if s.placeholders.IsPlaceholder(&user) {
			switch action {
			case models.ActionApprove:
				return apperr.Invalid("Placeholder accounts cannot be approved.")
			case models.ActionReject:
				return apperr.Invalid("Placeholder accounts cannot be rejected.")
			}
		}

		next, err := user.Role.Transition(action)
		var invalid *models.InvalidTransitionError
		switch {
		case errors.As(err, &invalid):
			return apperr.Invalid(transitionMessages[action])
		case errors.Is(err, models.ErrRoleDeleted):
			return deleteUser(tx, user.ID)
		case err != nil:
			return apperr.Internal(err)
		}

		// Guarded on the old role so two admins acting at once cannot both succeed.
		res := tx.Model(&models.User{}).Where("id = ? AND role = ?", user.ID, user.Role).Update("role", next)
		if res.Error != nil {
			return apperr.Internal(res.Error)
		}
		if res.RowsAffected != 1 {
			return apperr.Conflict("User was changed by someone else. Reload and try again.")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func deleteUser(tx *gorm.DB, userID string) error {
	for _, m := range []interface{}{&models.Session{}, &models.PasswordResetToken{}} {
		if err := tx.Where("user_id = ?", userID).Delete(m).Error; err != nil {
			return apperr.Internal(err)
		}
	}
	res := tx.Where("id = ? AND role = ?", userID, models.RolePending).Delete(&models.User{})
	if res.Error != nil {
		return apperr.Internal(res.Error)
	}
	if res.RowsAffected != 1 {
		return apperr.Invalid(transitionMessages[models.ActionReject])
	}
	return nil
}

// GenerateResetToken issues a 24h single-use token and revokes the user's older unused ones.
func (s *Service) GenerateResetToken(ctx context.Context, actor models.Actor, userID string) (*ResetToken, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Invalid("Missing user ID.")
	}

	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, apperr.Internal(err)
	}
	token := hex.EncodeToString(raw)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return apperr.Internal(err)
		}
		if count == 0 {
			return apperr.NotFound("User not found.")
		}
		// Superseded links stop resolving at all.
		if err := tx.Where("user_id = ? AND used = ?", userID, false).
			Delete(&models.PasswordResetToken{}).Error; err != nil {
			return apperr.Internal(err)
		}
		row := &models.PasswordResetToken{Token: token, UserID: userID, ExpiresAt: s.now().Add(ResetTokenTTL)}
		if err := tx.Create(row).Error; err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ResetToken{Token: token, ResetURL: resetPath + url.QueryEscape(token)}, nil
}

// Stats counts real users, pending applicants, projects and published projects.
func (s *Service) Stats(ctx context.Context, actor models.Actor) (*Stats, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	tx := s.db.WithContext(ctx)
	excluded, err := s.placeholders.IDs(tx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	users := func() *gorm.DB {
		q := tx.Model(&models.User{})
		if len(excluded) > 0 {
			q = q.Where("id NOT IN ?", excluded)
		}
		return q
	}

	var st Stats
	if err := users().Count(&st.Users).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if err := users().Where("role = ?", models.RolePending).Count(&st.Pending).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if err := tx.Model(&models.Project{}).Count(&st.Projects).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if err := tx.Model(&models.Project{}).Where("published = ?", true).Count(&st.Published).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return &st, nil
}
