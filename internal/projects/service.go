package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/storage"
)

const MinYear = 2000

// Invalidator is notified when public gallery data may have changed.
type Invalidator interface {
	Invalidate()
}

type Service struct {
	db    *gorm.DB
	store storage.Store
	cache Invalidator
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(db *gorm.DB, store storage.Store, cache Invalidator, log zerolog.Logger) *Service {
	return &Service{db: db, store: store, cache: cache, log: log, now: time.Now}
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

var (
	errProjectNotFound = apperr.NotFound("Project not found.")
	errPhotoNotFound   = apperr.NotFound("Photo not found.")
)

// ownedProject loads a project the actor owns. Admins pass too when allowAdmin is set.
func (s *Service) ownedProject(tx *gorm.DB, actor models.Actor, id string, allowAdmin bool) (*models.Project, error) {
	if !actor.Authenticated() {
		return nil, apperr.Unauthorized()
	}
	var p models.Project
	if err := tx.First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errProjectNotFound
		}
		return nil, apperr.Internal(err)
	}
	if p.UserID == actor.UserID || (allowAdmin && actor.IsAdmin()) {
		return &p, nil
	}
	return nil, errProjectNotFound
}

func (s *Service) managedPhoto(tx *gorm.DB, actor models.Actor, id string) (*models.Photo, error) {
	if !actor.Authenticated() {
		return nil, apperr.Unauthorized()
	}
	var p models.Photo
	if err := tx.First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errPhotoNotFound
		}
		return nil, apperr.Internal(err)
	}
	if !actor.CanManage(p.UserID) {
		return nil, errPhotoNotFound
	}
	return &p, nil
}

// Create starts an unpublished project for an approved photographer.
func (s *Service) Create(ctx context.Context, actor models.Actor, req CreateRequest) (*models.Project, error) {
	if !actor.IsApproved() {
		return nil, apperr.Unauthorized()
	}
	if strings.TrimSpace(req.TownID) == "" {
		return nil, apperr.Invalid("Please select a town.")
	}
	if req.Year < MinYear || req.Year > s.now().Year()+1 {
		return nil, apperr.Invalid("Please enter a valid year (2000 or later).")
	}

	tx := s.db.WithContext(ctx)
	var town models.Town
	if err := tx.First(&town, "id = ?", req.TownID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Invalid("Selected town not found.")
		}
		return nil, apperr.Internal(err)
	}
	duplicate := apperr.Conflict(fmt.Sprintf("You already have a project for %s in %d.", town.Name, req.Year))

	var count int64
	if err := tx.Model(&models.Project{}).
		Where("town_id = ? AND year = ? AND user_id = ?", town.ID, req.Year, actor.UserID).
		Count(&count).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if count > 0 {
		return nil, duplicate
	}

	var owner models.User
	if err := tx.Select("id", "name").First(&owner, "id = ?", actor.UserID).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	photographer := strings.TrimSpace(owner.Name)
	if photographer == "" {
		photographer = "Unknown"
	}

	project := &models.Project{
		TownID:       town.ID,
		Year:         req.Year,
		UserID:       actor.UserID,
		Photographer: photographer,
		Title:        optional(req.Title),
		Description:  optional(req.Description),
	}
	if err := tx.Create(project).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, duplicate
		}
		return nil, apperr.Internal(err)
	}
	project.Town = town
	return project, nil
}

func (s *Service) Update(ctx context.Context, actor models.Actor, id string, req UpdateRequest) (*models.Project, error) {
	tx := s.db.WithContext(ctx)
	p, err := s.ownedProject(tx, actor, id, false)
	if err != nil {
		return nil, err
	}
	err = tx.Model(p).Updates(map[string]interface{}{
		"title":       optional(req.Title),
		"description": optional(req.Description),
		"notes":       optional(req.Notes),
	}).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.invalidate()
	return s.Get(ctx, actor, id)
}

// TogglePublished flips the published flag and returns the new value.
func (s *Service) TogglePublished(ctx context.Context, actor models.Actor, id string) (bool, error) {
	tx := s.db.WithContext(ctx)
	p, err := s.ownedProject(tx, actor, id, false)
	if err != nil {
		return false, err
	}
	next := !p.Published
	if err := tx.Model(p).Update("published", next).Error; err != nil {
		return false, apperr.Internal(err)
	}
	s.invalidate()
	return next, nil
}

// Delete removes a project with its photos. Stored objects are removed best-effort first.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id string) error {
	tx := s.db.WithContext(ctx)
	p, err := s.ownedProject(tx, actor, id, false)
	if err != nil {
		return err
	}
	return DeleteProject(ctx, s.db, s.store, s.cache, s.log, p.ID)
}

// DeleteProject is shared with the admin console; callers have already authorised.
func DeleteProject(ctx context.Context, db *gorm.DB, store storage.Store, cache Invalidator, log zerolog.Logger, projectID string) error {
	tx := db.WithContext(ctx)
	var photos []models.Photo
	if err := tx.Where("project_id = ?", projectID).Find(&photos).Error; err != nil {
		return apperr.Internal(err)
	}
	storage.BestEffortDelete(ctx, store, log, StorageKeys(store, photos)...)

	err := tx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Photo{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", projectID).Delete(&models.Project{}).Error
	})
	if err != nil {
		return apperr.Internal(err)
	}
	if cache != nil {
		cache.Invalidate()
	}
	return nil
}

// List returns the actor's own projects, newest year first.
func (s *Service) List(ctx context.Context, actor models.Actor) ([]models.Project, error) {
	if !actor.Authenticated() {
		return nil, apperr.Unauthorized()
	}
	var out []models.Project
	err := s.db.WithContext(ctx).Preload("Town").
		Where("user_id = ?", actor.UserID).
		Order("year DESC").Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// Get returns one project with its town and ordered photos. Admins may read any project.
func (s *Service) Get(ctx context.Context, actor models.Actor, id string) (*models.Project, error) {
	tx := s.db.WithContext(ctx)
	p, err := s.ownedProject(tx, actor, id, true)
	if err != nil {
		return nil, err
	}
	if err := tx.First(&p.Town, "id = ?", p.TownID).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	if p.Photos, err = OrderedPhotos(tx, p.ID); err != nil {
		return nil, apperr.Internal(err)
	}
	return p, nil
}

func (s *Service) UpdateCaption(ctx context.Context, actor models.Actor, photoID, caption string) error {
	tx := s.db.WithContext(ctx)
	p, err := s.managedPhoto(tx, actor, photoID)
	if err != nil {
		return err
	}
	if err := tx.Model(p).Update("caption", optional(caption)).Error; err != nil {
		return apperr.Internal(err)
	}
	s.invalidate()
	return nil
}

// Reorder applies a complete ordering of the project's photos; ids must be a permutation.
func (s *Service) Reorder(ctx context.Context, actor models.Actor, projectID string, ids []string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.ownedProject(tx, actor, projectID, true); err != nil {
			return err
		}
		current, err := OrderedPhotos(tx, projectID)
		if err != nil {
			return apperr.Internal(err)
		}
		if !isPermutation(photoIDs(current), ids) {
			return apperr.Invalid("Invalid photo IDs.")
		}
		if err := Renumber(tx, ids); err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func isPermutation(have, want []string) bool {
	if len(have) != len(want) {
		return false
	}
	seen := make(map[string]bool, len(have))
	for _, id := range have {
		seen[id] = true
	}
	for _, id := range want {
		if !seen[id] {
			return false
		}
		delete(seen, id)
	}
	return true
}

// Move swaps a photo with its neighbour. Moving past either end is a no-op.
func (s *Service) Move(ctx context.Context, actor models.Actor, photoID string, dir Direction) error {
	if dir != Left && dir != Right {
		return apperr.Invalid("Invalid direction.")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		photo, err := s.managedPhoto(tx, actor, photoID)
		if err != nil {
			return err
		}
		photos, err := OrderedPhotos(tx, photo.ProjectID)
		if err != nil {
			return apperr.Internal(err)
		}
		ids := photoIDs(photos)
		i := indexOf(ids, photo.ID)
		j := i - 1
		if dir == Right {
			j = i + 1
		}
		if i < 0 || j < 0 || j >= len(ids) {
			return nil
		}
		ids[i], ids[j] = ids[j], ids[i]
		if err := Renumber(tx, ids); err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// DeletePhoto removes one photo, compacts the remaining order and refreshes the count.
func (s *Service) DeletePhoto(ctx context.Context, actor models.Actor, photoID string) error {
	var removed models.Photo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		photo, err := s.managedPhoto(tx, actor, photoID)
		if err != nil {
			return err
		}
		removed = *photo
		if err := tx.Delete(&models.Photo{}, "id = ?", photo.ID).Error; err != nil {
			return apperr.Internal(err)
		}
		rest, err := OrderedPhotos(tx, photo.ProjectID)
		if err != nil {
			return apperr.Internal(err)
		}
		if err := Renumber(tx, photoIDs(rest)); err != nil {
			return apperr.Internal(err)
		}
		if _, err := Recount(tx, photo.ProjectID); err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	storage.BestEffortDelete(ctx, s.store, s.log, StorageKeys(s.store, []models.Photo{removed})...)
	s.invalidate()
	return nil
}
