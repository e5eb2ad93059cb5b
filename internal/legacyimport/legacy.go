package legacyimport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/imaging"
	"github.com/SmallTownDocumentary/gallery-backend/internal/legacyfs"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/storage"
	"github.com/SmallTownDocumentary/gallery-backend/internal/towns"
)

const jobLegacy = "legacy"

// LegacyCounters summarises a filesystem import.
type LegacyCounters struct {
	Scanned                int `json:"scanned"`
	Imported               int `json:"imported"`
	SkippedExistingProject int `json:"skippedExistingProject"`
	SkippedNoPhotos        int `json:"skippedNoPhotos"`
	SkippedMissingTownMeta int `json:"skippedMissingTownMeta"`
	PhotoUploaded          int `json:"photoUploaded"`
	PhotoReused            int `json:"photoReused"`
	PhotoFailed            int `json:"photoFailed"`
}

// ImportLegacy copies every <town>/<year> directory under root into object storage as a
// project owned by the global placeholder. Town/years that already have any project are
// left alone.
func (imp *Importer) ImportLegacy(ctx context.Context, root string) (LegacyCounters, error) {
	var c LegacyCounters
	if imp.store == nil {
		return c, errors.New("object storage is not configured")
	}
	entries, err := legacyfs.DiscoverTownYears(root)
	if err != nil {
		return c, fmt.Errorf("scan %s: %w", root, err)
	}

	tx := imp.db.WithContext(ctx)
	owner, err := imp.placeholders.Global(tx)
	if err != nil {
		return c, fmt.Errorf("placeholder owner: %w", err)
	}
	imp.log.Info().Int("directories", len(entries)).Str("root", root).Str("owner", owner.Email).Msg("legacy import starting")

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		if err := imp.importTownYear(ctx, entry, owner, &c); err != nil {
			return c, err
		}
	}
	return c, nil
}

func (imp *Importer) importTownYear(ctx context.Context, entry legacyfs.TownYear, owner *models.User, c *LegacyCounters) error {
	c.Scanned++
	tx := imp.db.WithContext(ctx)
	log := imp.log.With().Str("town", entry.Town).Int("year", entry.Year).Logger()

	name, ok := imp.catalog.Resolve(entry.Town)
	if !ok {
		c.SkippedMissingTownMeta++
		count(jobLegacy, "skipped_town")
		log.Info().Msg("skip: town not in catalog")
		return nil
	}
	town, err := imp.catalog.Ensure(tx, name)
	if err != nil {
		if errors.Is(err, towns.ErrUnknownTown) {
			c.SkippedMissingTownMeta++
			return nil
		}
		return err
	}

	var existing int64
	if err := tx.Model(&models.Project{}).Where("town_id = ? AND year = ?", town.ID, entry.Year).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		c.SkippedExistingProject++
		count(jobLegacy, "skipped_existing")
		return nil
	}

	files, err := legacyfs.PhotoFiles(entry.Dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		c.SkippedNoPhotos++
		count(jobLegacy, "skipped_empty")
		return nil
	}

	project := models.Project{
		TownID:       town.ID,
		Year:         entry.Year,
		UserID:       owner.ID,
		Photographer: legacyfs.Photographer(entry.Dir),
		Description:  legacyfs.Description(entry.Dir),
		Published:    imp.publish,
	}
	// The id is fixed up front so photo ids derive from it before the row exists.
	project.ID = v5(fmt.Sprintf("project:%s:%d:%s", town.ID, entry.Year, owner.ID))

	var photos []models.Photo
	var uploaded []string
	for i, file := range files {
		photo, reused, err := imp.storeLegacyPhoto(ctx, entry, file)
		if err != nil {
			c.PhotoFailed++
			count(jobLegacy, "photo_failed")
			log.Warn().Err(err).Str("file", file).Msg("photo failed")
			continue
		}
		if reused {
			c.PhotoReused++
			count(jobLegacy, "photo_reused")
		} else {
			c.PhotoUploaded++
			count(jobLegacy, "photo_uploaded")
			uploaded = append(uploaded, photo.Pathname)
		}
		photo.ID = legacyPhotoID(project.ID, file)
		photo.ProjectID = project.ID
		photo.UserID = owner.ID
		photo.Order = i
		photos = append(photos, photo)
	}
	if len(photos) == 0 {
		c.SkippedNoPhotos++
		count(jobLegacy, "skipped_empty")
		return nil
	}
	project.PhotoCount = len(photos)

	err = tx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(&photos, 100).Error
	})
	if err != nil {
		storage.BestEffortDelete(ctx, imp.store, log, uploaded...)
		return fmt.Errorf("save %s/%d: %w", entry.Town, entry.Year, err)
	}
	c.Imported++
	count(jobLegacy, "imported")
	log.Info().Int("photos", len(photos)).Str("project", project.ID).Msg("imported")
	return nil
}

// storeLegacyPhoto uploads one file unless its deterministic key already exists.
func (imp *Importer) storeLegacyPhoto(ctx context.Context, entry legacyfs.TownYear, file string) (models.Photo, bool, error) {
	path := filepath.Join(entry.Dir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Photo{}, false, err
	}
	key := storage.LegacyKey(entry.Town, entry.Year, file)

	photo := models.Photo{
		Filename: file,
		Pathname: key,
		Size:     int64(len(data)),
		Width:    legacyfs.DefaultWidth,
		Height:   legacyfs.DefaultHeight,
	}
	if w, h, _, err := imaging.Dimensions(bytes.NewReader(data)); err == nil {
		photo.Width, photo.Height = w, h
	}

	exists, err := imp.store.Exists(ctx, key)
	if err != nil {
		return models.Photo{}, false, err
	}
	if exists {
		photo.BlobURL = imp.store.PublicURL(key)
		return photo, true, nil
	}

	err = imp.retry.Do(ctx, func(ctx context.Context) error {
		obj, err := imp.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
			ContentType:  "image/jpeg",
			CacheControl: storage.CacheControlImmutable,
		})
		if err == nil {
			photo.BlobURL = obj.URL
		}
		return err
	})
	if err != nil {
		return models.Photo{}, false, err
	}
	return photo, false, nil
}
