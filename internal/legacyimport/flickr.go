package legacyimport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/flickr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/imaging"
	"github.com/SmallTownDocumentary/gallery-backend/internal/legacyfs"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/projects"
	"github.com/SmallTownDocumentary/gallery-backend/internal/storage"
	"github.com/SmallTownDocumentary/gallery-backend/internal/towns"
)

const jobFlickr = "flickr"

// FlickrAPI is the part of the Flickr client the importer uses.
type FlickrAPI interface {
	PhotoSets(ctx context.Context) ([]flickr.PhotoSet, error)
	SetPhotos(ctx context.Context, setID string) ([]flickr.Photo, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// AlbumSummary totals an album import run.
type AlbumSummary struct {
	Albums      int `json:"albums"`
	SkippedSets int `json:"skippedSets"`
	Imported    int `json:"imported"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

type albumResult struct {
	imported, skipped, failed int
	skippedSet                bool
}

func (s *AlbumSummary) add(r albumResult) {
	s.Imported += r.imported
	s.Skipped += r.skipped
	s.Failed += r.failed
	if r.skippedSet {
		s.SkippedSets++
	}
}

// albumPhoto is one photo of an album regardless of where its bytes come from.
type albumPhoto struct {
	id         string
	title      string
	dateTaken  string
	dateUpload string
	tags       string
	width      int
	height     int
	// extra provenance fields merged into the metadata.
	extra map[string]interface{}
	fetch func(ctx context.Context) ([]byte, error)
}

// albumTarget is where an album's photos land.
type albumTarget struct {
	setID        string
	town         string
	year         int
	photographer string
}

// resolveAlbum maps an album title onto a canonical town. ok is false when the album must
// be skipped; the reason is logged.
func (imp *Importer) resolveAlbum(log zerolog.Logger, title string) (towns.AlbumTitle, string, bool) {
	parsed := imp.catalog.ParseAlbumTitle(title)
	name, ok := imp.catalog.Resolve(parsed.Town)
	if !ok {
		log.Info().Str("parsed", parsed.Town).Msg("skip: town not found")
		return parsed, "", false
	}
	return parsed, name, true
}

// ImportFlickr imports every album of the configured Flickr user. Each album becomes (or
// extends) the project for its town, year and photographer.
func (imp *Importer) ImportFlickr(ctx context.Context, api FlickrAPI) (AlbumSummary, error) {
	var sum AlbumSummary
	if imp.store == nil {
		return sum, errors.New("object storage is not configured")
	}
	sets, err := api.PhotoSets(ctx)
	if err != nil {
		return sum, fmt.Errorf("list albums: %w", err)
	}
	sum.Albums = len(sets)
	imp.log.Info().Int("albums", len(sets)).Msg("flickr import starting")

	for _, set := range sets {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		log := imp.log.With().Str("set", set.ID).Str("title", set.TitleText()).Logger()
		parsed, town, ok := imp.resolveAlbum(log, set.TitleText())
		if !ok {
			sum.add(albumResult{skipped: set.PhotoCount(), skippedSet: true})
			count(jobFlickr, "skipped_set")
			continue
		}

		setPhotos, err := api.SetPhotos(ctx, set.ID)
		if err != nil {
			log.Warn().Err(err).Msg("list album photos failed")
			sum.add(albumResult{failed: set.PhotoCount(), skippedSet: true})
			count(jobFlickr, "skipped_set")
			continue
		}

		photos := make([]albumPhoto, 0, len(setPhotos))
		for _, p := range setPhotos {
			ap := albumPhoto{
				id:         p.ID,
				title:      p.Title,
				dateTaken:  p.DateTaken,
				dateUpload: p.DateUpload,
				tags:       p.Tags,
			}
			if size, ok := flickr.BestSize(p); ok {
				ap.width, ap.height = size.Width, size.Height
				ap.extra = map[string]interface{}{"flickrSize": size.Key}
				url := size.URL
				ap.fetch = func(ctx context.Context) ([]byte, error) {
					var data []byte
					err := imp.retry.Do(ctx, func(ctx context.Context) error {
						var err error
						data, err = api.Download(ctx, url)
						return err
					})
					return data, err
				}
			}
			photos = append(photos, ap)
		}

		target := albumTarget{
			setID:        set.ID,
			town:         town,
			year:         flickr.YearFromUnix(set.DateCreate, imp.now()),
			photographer: parsed.Photographer,
		}
		res, err := imp.importAlbum(ctx, log, target, photos)
		if err != nil {
			return sum, err
		}
		sum.add(res)
	}
	return sum, nil
}

// importAlbum finds or creates the project and adds every photo not already present,
// matching by "<id>.jpg" filename or by recorded Flickr id.
func (imp *Importer) importAlbum(ctx context.Context, log zerolog.Logger, t albumTarget, photos []albumPhoto) (albumResult, error) {
	tx := imp.db.WithContext(ctx)

	town, err := imp.catalog.Ensure(tx, t.town)
	if err != nil {
		if errors.Is(err, towns.ErrUnknownTown) {
			log.Info().Str("town", t.town).Msg("skip: town metadata missing")
			return albumResult{skipped: len(photos), skippedSet: true}, nil
		}
		return albumResult{}, err
	}
	owner, err := imp.placeholders.ForPhotographer(tx, t.photographer)
	if err != nil {
		return albumResult{}, fmt.Errorf("placeholder for %s: %w", t.photographer, err)
	}

	var project models.Project
	err = tx.Where("town_id = ? AND year = ? AND photographer = ?", town.ID, t.year, t.photographer).
		Order("created_at ASC").First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		project = models.Project{TownID: town.ID, Year: t.year, Photographer: t.photographer, UserID: owner.ID}
		err = tx.Create(&project).Error
	}
	if err != nil {
		return albumResult{}, fmt.Errorf("project for %s %d: %w", town.Name, t.year, err)
	}

	seenNames, seenIDs, err := existingPhotos(tx, project.ID)
	if err != nil {
		return albumResult{}, err
	}
	next, err := projects.NextOrder(tx, project.ID)
	if err != nil {
		return albumResult{}, err
	}

	var res albumResult
	for _, p := range photos {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if p.id == "" {
			res.failed++
			continue
		}
		filename := p.id + ".jpg"
		if seenNames[filename] || seenIDs[p.id] {
			res.skipped++
			continue
		}
		if p.fetch == nil {
			res.failed++
			count(jobFlickr, "photo_failed")
			log.Warn().Str("photo", p.id).Msg("photo has no downloadable source")
			continue
		}

		err := imp.addAlbumPhoto(ctx, tx, t, project, p, next+res.imported)
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			res.skipped++
		case err != nil:
			res.failed++
			count(jobFlickr, "photo_failed")
			log.Warn().Err(err).Str("photo", p.id).Msg("photo import failed")
		default:
			res.imported++
			count(jobFlickr, "photo_imported")
			seenNames[filename] = true
			seenIDs[p.id] = true
		}
	}

	total, err := projects.Recount(tx, project.ID)
	if err != nil {
		return res, err
	}
	log.Info().
		Str("town", town.Name).Int("year", t.year).Str("photographer", t.photographer).
		Int("imported", res.imported).Int("skipped", res.skipped).Int("failed", res.failed).
		Int("total", total).Msg("album done")
	return res, nil
}

func (imp *Importer) addAlbumPhoto(ctx context.Context, tx *gorm.DB, t albumTarget, project models.Project, p albumPhoto, order int) error {
	data, err := p.fetch(ctx)
	if err != nil {
		return err
	}
	width, height := p.width, p.height
	if width == 0 || height == 0 {
		width, height = legacyfs.DefaultWidth, legacyfs.DefaultHeight
		if w, h, _, err := imaging.Dimensions(bytes.NewReader(data)); err == nil {
			width, height = w, h
		}
	}

	key := storage.FlickrKey(project.ID, p.id)
	obj, err := imp.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
		ContentType:  "image/jpeg",
		CacheControl: storage.CacheControlImmutable,
	})
	if err != nil {
		return err
	}

	meta := map[string]interface{}{
		"source":       "flickr",
		"flickrSetId":  t.setID,
		"flickrId":     p.id,
		"flickrTitle":  nullable(p.title),
		"dateTaken":    nullable(p.dateTaken),
		"dateUploaded": nullable(p.dateUpload),
		"tags":         nullable(p.tags),
	}
	for k, v := range p.extra {
		meta[k] = v
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	photo := models.Photo{
		ID:        flickrPhotoID(project.ID, p.id),
		ProjectID: project.ID,
		UserID:    project.UserID,
		Filename:  p.id + ".jpg",
		BlobURL:   obj.URL,
		Pathname:  obj.Key,
		Width:     width,
		Height:    height,
		Size:      int64(len(data)),
		Order:     order,
		Title:     nullable(p.title),
		DateTaken: flickr.ParseDateTaken(p.dateTaken),
		Metadata:  datatypes.JSON(raw),
	}
	return tx.Create(&photo).Error
}

// existingPhotos indexes a project's photos by filename and by recorded Flickr id.
func existingPhotos(tx *gorm.DB, projectID string) (map[string]bool, map[string]bool, error) {
	var rows []models.Photo
	if err := tx.Select("filename", "metadata").Where("project_id = ?", projectID).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	names := make(map[string]bool, len(rows))
	ids := make(map[string]bool, len(rows))
	for _, r := range rows {
		names[r.Filename] = true
		if len(r.Metadata) == 0 {
			continue
		}
		var meta struct {
			FlickrID interface{} `json:"flickrId"`
		}
		if json.Unmarshal(r.Metadata, &meta) != nil {
			continue
		}
		if id, ok := meta.FlickrID.(string); ok && id != "" {
			ids[id] = true
		}
	}
	return names, ids, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
