package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/storage"
	"github.com/SmallTownDocumentary/gallery-backend/internal/utils"
)

const (
	BcryptCost        = 12
	MinPasswordLength = 8
)

var authAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gallery_auth_attempts_total",
		Help: "Auth attempts by event and outcome",
	},
	[]string{"event", "success"},
)

func record(event string, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	authAttempts.WithLabelValues(event, success).Inc()
}

// Invalidator is notified when public gallery data may have changed.
type Invalidator interface {
	Invalidate()
}

type Service struct {
	db         *gorm.DB
	store      storage.Store
	cache      Invalidator
	validate   *validator.Validate
	sessionTTL time.Duration
	log        zerolog.Logger
}

// NewService wires the account service. store may be nil when object storage is not configured.
func NewService(db *gorm.DB, store storage.Store, cache Invalidator, sessionTTL time.Duration, log zerolog.Logger) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 6 * time.Hour
	}
	return &Service{
		db:         db,
		store:      store,
		cache:      cache,
		validate:   validator.New(),
		sessionTTL: sessionTTL,
		log:        log,
	}
}

func hashPassword(pw string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(pw), BcryptCost)
	if err != nil {
		return "", apperr.Internal(err)
	}
	return string(hashed), nil
}

// Register creates a PENDING account; an admin must approve it before it can publish.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = models.NormalizeEmail(req.Email)
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Invalid("All fields are required.")
	}
	if len(req.Password) < MinPasswordLength {
		return nil, apperr.Invalid("Password must be at least 8 characters.")
	}
	if req.Password != req.ConfirmPassword {
		return nil, apperr.Invalid("Passwords do not match.")
	}

	tx := s.db.WithContext(ctx)
	var count int64
	if err := tx.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if count > 0 {
		return nil, apperr.Conflict("An account with this email already exists.")
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Email: req.Email, Name: req.Name, PasswordHash: hashed, Role: models.RolePending}
	if err := tx.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("An account with this email already exists.")
		}
		return nil, apperr.Internal(err)
	}
	return user, nil
}

// Login verifies credentials and replaces the user's session. It returns the new session id.
func (s *Service) Login(ctx context.Context, req LoginRequest) (models.Session, *models.User, error) {
	var session models.Session
	if err := s.validate.Struct(req); err != nil {
		return session, nil, apperr.Invalid("Email and password are required.")
	}

	tx := s.db.WithContext(ctx)
	var user models.User
	if err := tx.First(&user, "email = ?", models.NormalizeEmail(req.Email)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return session, nil, apperr.New(apperr.KindUnauthorized, "Invalid email or password.")
		}
		return session, nil, apperr.Internal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return session, nil, apperr.New(apperr.KindUnauthorized, "Invalid email or password.")
	}

	session = models.Session{
		SessionID: utils.GenerateUUID(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}
	// One live session per user: replace whatever was there.
	err := tx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		return tx.Create(&session).Error
	})
	if err != nil {
		return models.Session{}, nil, apperr.Internal(err)
	}
	return session, &user, nil
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	res := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&models.Session{})
	if res.Error != nil {
		return apperr.Internal(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Unauthorized()
	}
	return nil
}

func (s *Service) Me(ctx context.Context, actor models.Actor) (*models.User, error) {
	if !actor.Authenticated() {
		return nil, apperr.Unauthorized()
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", actor.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("User not found.")
		}
		return nil, apperr.Internal(err)
	}
	return &user, nil
}

func (s *Service) ChangePassword(ctx context.Context, actor models.Actor, req ChangePasswordRequest) error {
	if !actor.Authenticated() {
		return apperr.Unauthorized()
	}
	if err := s.validate.Struct(req); err != nil {
		return apperr.Invalid("All fields are required.")
	}
	if len(req.NewPassword) < MinPasswordLength {
		return apperr.Invalid("New password must be at least 8 characters.")
	}
	if req.NewPassword != req.ConfirmPassword {
		return apperr.Invalid("New passwords do not match.")
	}

	user, err := s.Me(ctx, actor)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return apperr.Invalid("Current password is incorrect.")
	}

	hashed, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", hashed).Error; err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// ResetPassword consumes a single-use token. The new hash and the used flag are written together.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return apperr.Invalid("All fields are required.")
	}
	if len(req.NewPassword) < MinPasswordLength {
		return apperr.Invalid("Password must be at least 8 characters.")
	}
	if req.NewPassword != req.ConfirmPassword {
		return apperr.Invalid("Passwords do not match.")
	}

	hashed, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token models.PasswordResetToken
		if err := tx.First(&token, "token = ?", req.Token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Invalid("Invalid or expired reset link.")
			}
			return apperr.Internal(err)
		}
		if token.Used {
			return apperr.Invalid("This reset link has already been used.")
		}
		if token.ExpiresAt.Before(time.Now()) {
			return apperr.Invalid("This reset link has expired. Please request a new one.")
		}

		// Guard against a concurrent reset consuming the same token.
		res := tx.Model(&models.PasswordResetToken{}).
			Where("id = ? AND used = ?", token.ID, false).
			Update("used", true)
		if res.Error != nil {
			return apperr.Internal(res.Error)
		}
		if res.RowsAffected != 1 {
			return apperr.Invalid("This reset link has already been used.")
		}
		if err := tx.Model(&models.User{}).Where("id = ?", token.UserID).Update("password_hash", hashed).Error; err != nil {
			return apperr.Internal(err)
		}
		if err := tx.Where("user_id = ?", token.UserID).Delete(&models.Session{}).Error; err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func validateWebsite(raw *string) error {
	if raw == nil {
		return nil
	}
	u, err := url.Parse(*raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if err == nil && u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
			return apperr.Invalid("Website URL must use http:// or https://")
		}
		return apperr.Invalid("Website URL is invalid.")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apperr.Invalid("Website URL must use http:// or https://")
	}
	return nil
}

// UpdateProfile replaces the public profile fields. A replaced profile photo is removed
// from storage on a best-effort basis.
func (s *Service) UpdateProfile(ctx context.Context, actor models.Actor, req ProfileRequest) (*models.User, error) {
	if !actor.Authenticated() {
		return nil, apperr.Unauthorized()
	}
	website := optional(req.Website)
	if err := validateWebsite(website); err != nil {
		return nil, err
	}

	user, err := s.Me(ctx, actor)
	if err != nil {
		return nil, err
	}
	previous := user.ProfilePhotoURL

	updates := map[string]interface{}{
		"bio":               optional(req.Bio),
		"website":           website,
		"location":          optional(req.Location),
		"profile_photo_url": optional(req.ProfilePhotoURL),
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if s.cache != nil {
		s.cache.Invalidate()
	}

	next := optional(req.ProfilePhotoURL)
	if s.store != nil && previous != nil && (next == nil || *next != *previous) {
		storage.BestEffortDelete(ctx, s.store, s.log, storage.KeyFromURL(s.store, *previous))
	}
	return s.Me(ctx, actor)
}
