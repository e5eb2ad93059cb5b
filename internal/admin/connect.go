package admin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/legacyfs"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/towns"
)

// LegacyPhotoURL is the public path the photo server answers for a legacy file.
func LegacyPhotoURL(town string, year int, file string) string {
	return models.LegacyPhotoPrefix + url.PathEscape(town) + "/" + strconv.Itoa(year) + "/" + url.PathEscape(file)
}

// ListLegacyGalleries walks the legacy tree and marks which town/years already have a project.
func (s *Service) ListLegacyGalleries(ctx context.Context, actor models.Actor) ([]LegacyGallery, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if s.townsRoot == "" {
		return nil, apperr.Unavailable("Legacy towns directory is not configured.")
	}
	found, err := legacyfs.DiscoverTownYears(s.townsRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []LegacyGallery{}, nil
		}
		return nil, apperr.Internal(err)
	}

	tx := s.db.WithContext(ctx)
	var existing []models.Project
	if err := tx.Preload("Town").Preload("User", func(tx *gorm.DB) *gorm.DB { return tx.Select("id", "name") }).
		Find(&existing).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	byKey := make(map[string]models.Project, len(existing))
	for _, p := range existing {
		key := galleryKey(p.Town.Name, p.Year)
		if _, seen := byKey[key]; !seen {
			byKey[key] = p
		}
	}

	out := make([]LegacyGallery, 0, len(found))
	for _, ty := range found {
		files, _ := legacyfs.PhotoFiles(ty.Dir)
		g := LegacyGallery{
			TownName:     ty.Town,
			Year:         ty.Year,
			Photographer: legacyfs.Photographer(ty.Dir),
			PhotoCount:   len(files),
		}
		if p, ok := byKey[galleryKey(ty.Town, ty.Year)]; ok {
			id := p.ID
			g.Connected = true
			g.ProjectID = &id
			if p.User != nil {
				name := p.User.Name
				g.OwnerName = &name
			}
		}
		out = append(out, g)
	}
	return out, nil
}

func galleryKey(town string, year int) string {
	return strings.ToLower(town) + "/" + strconv.Itoa(year)
}

func (s *Service) assignee(tx *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	if err := tx.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Invalid("Selected user not found.")
		}
		return nil, apperr.Internal(err)
	}
	if user.Role == models.RolePending {
		return nil, apperr.Invalid("User must be approved before assigning galleries.")
	}
	return &user, nil
}

// ConnectGallery publishes a legacy directory as a project owned by userID. Photos keep
// being served from the filesystem.
func (s *Service) ConnectGallery(ctx context.Context, actor models.Actor, req ConnectRequest) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	req.TownName = strings.TrimSpace(req.TownName)
	if req.TownName == "" || req.Year == 0 || req.UserID == "" {
		return apperr.Invalid("Missing required fields.")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.assignee(tx, req.UserID)
		if err != nil {
			return err
		}
		return s.connect(tx, req.TownName, req.Year, user)
	})
	if err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *Service) connect(tx *gorm.DB, townName string, year int, user *models.User) error {
	town, err := towns.FindByName(tx, townName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Invalid(fmt.Sprintf("Town %q not found in database.", townName))
		}
		return apperr.Internal(err)
	}

	var count int64
	if err := tx.Model(&models.Project{}).Where("town_id = ? AND year = ?", town.ID, year).Count(&count).Error; err != nil {
		return apperr.Internal(err)
	}
	if count > 0 {
		return apperr.Conflict(fmt.Sprintf("A project for %s (%d) already exists.", town.Name, year))
	}

	dir, ok := legacyfs.YearDir(s.townsRoot, town.Name, year)
	if !ok {
		return apperr.Invalid(fmt.Sprintf("Directory not found: %s/%d", town.Name, year))
	}
	files, err := legacyfs.PhotoFiles(dir)
	if err != nil {
		return apperr.Internal(err)
	}
	if len(files) == 0 {
		return apperr.Invalid(fmt.Sprintf("No photos found in %s/%d.", town.Name, year))
	}

	project := &models.Project{
		TownID:       town.ID,
		Year:         year,
		UserID:       user.ID,
		Photographer: legacyfs.Photographer(dir),
		Description:  legacyfs.Description(dir),
		Published:    true,
		PhotoCount:   len(files),
	}
	if err := tx.Create(project).Error; err != nil {
		return apperr.Internal(err)
	}

	townDir := filepath.Base(filepath.Dir(dir))
	photos := make([]models.Photo, len(files))
	for i, name := range files {
		path := filepath.Join(dir, name)
		var size int64
		if st, err := os.Stat(path); err == nil {
			size = st.Size()
		}
		photos[i] = models.Photo{
			ProjectID: project.ID,
			UserID:    user.ID,
			Filename:  name,
			BlobURL:   LegacyPhotoURL(townDir, year, name),
			Pathname:  path,
			Width:     legacyfs.DefaultWidth,
			Height:    legacyfs.DefaultHeight,
			Size:      size,
			Order:     i,
		}
	}
	if err := tx.CreateInBatches(&photos, 100).Error; err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// BulkConnect connects each gallery it can and counts the rest as skipped.
func (s *Service) BulkConnect(ctx context.Context, actor models.Actor, req BulkConnectRequest) (*BulkResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if req.UserID == "" || req.Galleries == nil {
		return nil, apperr.Invalid("Missing required fields.")
	}
	if len(req.Galleries) == 0 {
		return nil, apperr.Invalid("No galleries selected.")
	}
	tx := s.db.WithContext(ctx)
	user, err := s.assignee(tx, req.UserID)
	if err != nil {
		return nil, err
	}

	res := &BulkResult{}
	for _, g := range req.Galleries {
		err := tx.Transaction(func(tx *gorm.DB) error {
			return s.connect(tx, g.TownName, g.Year, user)
		})
		if err != nil {
			if apperr.KindOf(err) == apperr.KindInternal {
				s.log.Warn().Err(err).Str("town", g.TownName).Int("year", g.Year).Msg("bulk connect failed")
			}
			res.Skipped++
			continue
		}
		res.Connected++
	}
	if res.Connected > 0 {
		s.invalidate()
	}
	if res.Connected == 0 && res.Skipped > 0 {
		return res, apperr.Invalid(fmt.Sprintf("All %d galleries were already connected or had errors.", res.Skipped))
	}
	return res, nil
}

// DisconnectGallery removes the legacy-backed project for a town/year. Projects holding
// uploaded photos are never touched here.
func (s *Service) DisconnectGallery(ctx context.Context, actor models.Actor, ref GalleryRef) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if strings.TrimSpace(ref.TownName) == "" || ref.Year == 0 {
		return apperr.Invalid("Missing required fields.")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return disconnect(tx, ref)
	})
	if err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *Service) BulkDisconnect(ctx context.Context, actor models.Actor, req BulkDisconnectRequest) (*BulkResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if req.Galleries == nil {
		return nil, apperr.Invalid("Missing gallery data.")
	}
	if len(req.Galleries) == 0 {
		return nil, apperr.Invalid("No galleries selected.")
	}
	res := &BulkResult{}
	tx := s.db.WithContext(ctx)
	for _, g := range req.Galleries {
		if err := tx.Transaction(func(tx *gorm.DB) error { return disconnect(tx, g) }); err != nil {
			res.Skipped++
			continue
		}
		res.Disconnected++
	}
	if res.Disconnected == 0 {
		return res, apperr.Invalid("No connected galleries found to disconnect.")
	}
	s.invalidate()
	return res, nil
}

func disconnect(tx *gorm.DB, ref GalleryRef) error {
	town, err := towns.FindByName(tx, ref.TownName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Town not found.")
		}
		return apperr.Internal(err)
	}
	var candidates []models.Project
	if err := tx.Where("town_id = ? AND year = ?", town.ID, ref.Year).Order("created_at ASC").Find(&candidates).Error; err != nil {
		return apperr.Internal(err)
	}
	for _, p := range candidates {
		var uploaded int64
		if err := tx.Model(&models.Photo{}).
			Where("project_id = ? AND blob_url NOT LIKE ?", p.ID, models.LegacyPhotoPrefix+"%").
			Count(&uploaded).Error; err != nil {
			return apperr.Internal(err)
		}
		if uploaded > 0 {
			continue
		}
		if err := tx.Where("project_id = ?", p.ID).Delete(&models.Photo{}).Error; err != nil {
			return apperr.Internal(err)
		}
		if err := tx.Delete(&models.Project{}, "id = ?", p.ID).Error; err != nil {
			return apperr.Internal(err)
		}
		return nil
	}
	return apperr.NotFound("No connected project found.")
}
