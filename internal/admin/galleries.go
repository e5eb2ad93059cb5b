package admin

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/projects"
)

var errProjectNotFound = apperr.NotFound("Project not found.")

// ListProjects returns every project, most recently changed first.
func (s *Service) ListProjects(ctx context.Context, actor models.Actor) ([]models.Project, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var out []models.Project
	err := s.db.WithContext(ctx).
		Preload("Town").
		Preload("User", func(tx *gorm.DB) *gorm.DB { return tx.Select("id", "name", "email", "role") }).
		Order("updated_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

func (s *Service) GetProject(ctx context.Context, actor models.Actor, id string) (*models.Project, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	tx := s.db.WithContext(ctx)
	var p models.Project
	if err := tx.Preload("Town").Preload("User").First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errProjectNotFound
		}
		return nil, apperr.Internal(err)
	}
	photos, err := projects.OrderedPhotos(tx, p.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	p.Photos = photos
	return &p, nil
}

func (s *Service) TogglePublished(ctx context.Context, actor models.Actor, id string) (bool, error) {
	if err := requireAdmin(actor); err != nil {
		return false, err
	}
	if id == "" {
		return false, apperr.Invalid("Missing project ID.")
	}
	tx := s.db.WithContext(ctx)
	var p models.Project
	if err := tx.First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, errProjectNotFound
		}
		return false, apperr.Internal(err)
	}
	next := !p.Published
	if err := tx.Model(&p).Update("published", next).Error; err != nil {
		return false, apperr.Internal(err)
	}
	s.invalidate()
	return next, nil
}

// DeleteProject removes any project; stored objects go first, best-effort.
func (s *Service) DeleteProject(ctx context.Context, actor models.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if id == "" {
		return apperr.Invalid("Missing project ID.")
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return apperr.Internal(err)
	}
	if count == 0 {
		return errProjectNotFound
	}
	return projects.DeleteProject(ctx, s.db, s.store, s.cache, s.log, id)
}
