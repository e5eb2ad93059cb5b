package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
)

// UnassignedPhotographer credits placeholder projects created without a name.
const UnassignedPhotographer = "Unassigned"

var errAlreadyClaimed = apperr.Conflict("Project has already been claimed.")

// ListPlaceholders returns projects still owned by a placeholder account, newest year first.
func (s *Service) ListPlaceholders(ctx context.Context, actor models.Actor) ([]PlaceholderProject, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	tx := s.db.WithContext(ctx)
	ids, err := s.placeholders.IDs(tx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := []PlaceholderProject{}
	if len(ids) == 0 {
		return out, nil
	}

	var rows []models.Project
	if err := tx.Preload("Town").Preload("User").Where("user_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Year != rows[j].Year {
			return rows[i].Year > rows[j].Year
		}
		return rows[i].Town.Name < rows[j].Town.Name
	})
	for _, p := range rows {
		pp := PlaceholderProject{
			ID:           p.ID,
			TownName:     p.Town.Name,
			Year:         p.Year,
			Photographer: p.Photographer,
			PhotoCount:   p.PhotoCount,
			Published:    p.Published,
		}
		if p.User != nil {
			pp.OwnerEmail = p.User.Email
		}
		out = append(out, pp)
	}
	return out, nil
}

// CreatePlaceholder opens an empty, unpublished project owned by the global placeholder.
func (s *Service) CreatePlaceholder(ctx context.Context, actor models.Actor, req CreatePlaceholderRequest) (*models.Project, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if req.TownID == "" {
		return nil, apperr.Invalid("Please select a town.")
	}
	if req.Year < 2000 || req.Year > s.now().Year()+1 {
		return nil, apperr.Invalid("Please enter a valid year (2000 or later).")
	}
	photographer := strings.TrimSpace(req.Photographer)
	if photographer == "" {
		photographer = UnassignedPhotographer
	}

	var project *models.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var town models.Town
		if err := tx.First(&town, "id = ?", req.TownID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Invalid("Selected town not found.")
			}
			return apperr.Internal(err)
		}
		owner, err := s.placeholders.Global(tx)
		if err != nil {
			return apperr.Internal(err)
		}
		project = &models.Project{
			TownID:       town.ID,
			Year:         req.Year,
			UserID:       owner.ID,
			Photographer: photographer,
		}
		if err := tx.Create(project).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict(fmt.Sprintf("A placeholder for %s (%d) already exists.", town.Name, req.Year))
			}
			return apperr.Internal(err)
		}
		project.Town = town
		return nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// ClaimPlaceholder hands a placeholder project and all of its photos to a real account.
// The owner swap is conditional on the placeholder still owning the project, so of two
// concurrent claims exactly one succeeds.
func (s *Service) ClaimPlaceholder(ctx context.Context, actor models.Actor, projectID string, req ClaimRequest) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if projectID == "" || req.UserID == "" {
		return apperr.Invalid("Missing required fields.")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Preload("Town").Preload("User").First(&project, "id = ?", projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errProjectNotFound
			}
			return apperr.Internal(err)
		}
		if !s.placeholders.IsPlaceholder(project.User) {
			return errAlreadyClaimed
		}
		target, err := s.assignee(tx, req.UserID)
		if err != nil {
			return err
		}

		var clash int64
		if err := tx.Model(&models.Project{}).
			Where("town_id = ? AND year = ? AND user_id = ?", project.TownID, project.Year, target.ID).
			Count(&clash).Error; err != nil {
			return apperr.Internal(err)
		}
		if clash > 0 {
			return apperr.Conflict(fmt.Sprintf("%s already has a project for %s in %d.", target.Name, project.Town.Name, project.Year))
		}

		updates := map[string]interface{}{"user_id": target.ID}
		if req.Publish {
			updates["published"] = true
		}
		if project.Photographer == "" || project.Photographer == UnassignedPhotographer {
			updates["photographer"] = target.Name
		}
		res := tx.Model(&models.Project{}).
			Where("id = ? AND user_id = ?", project.ID, project.UserID).
			Updates(updates)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return apperr.Conflict(fmt.Sprintf("%s already has a project for %s in %d.", target.Name, project.Town.Name, project.Year))
			}
			return apperr.Internal(res.Error)
		}
		if res.RowsAffected != 1 {
			return errAlreadyClaimed
		}
		if err := tx.Model(&models.Photo{}).Where("project_id = ?", project.ID).Update("user_id", target.ID).Error; err != nil {
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
