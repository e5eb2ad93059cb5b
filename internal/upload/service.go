package upload

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/imaging"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/projects"
	"github.com/SmallTownDocumentary/gallery-backend/internal/storage"
)

const (
	MaxUploadBytes  = 20 << 20
	MaxProfileBytes = 10 << 20
	// FallbackBudget is the largest body the relay forwards untouched; bigger images are
	// recompressed first.
	FallbackBudget = 4_500_000
	PresignExpiry  = 15 * time.Minute
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

var uploadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gallery_uploads_total",
		Help: "Upload requests by kind and outcome",
	},
	[]string{"kind", "success"},
)

func record(kind string, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	uploadsTotal.WithLabelValues(kind, success).Inc()
}

// Invalidator is notified when public gallery data may have changed.
type Invalidator interface {
	Invalidate()
}

// Options wires the stores. A nil store with StoreErr set reports that error to callers.
type Options struct {
	Store          storage.Store
	StoreErr       error
	Blob           storage.Store
	BlobErr        error
	Tickets        *Tickets
	Cache          Invalidator
	FallbackBudget int
}

type Service struct {
	db       *gorm.DB
	store    storage.Store
	storeErr error
	blob     storage.Store
	blobErr  error
	tickets  *Tickets
	cache    Invalidator
	budget   int
	log      zerolog.Logger
}

func NewService(db *gorm.DB, opts Options, log zerolog.Logger) *Service {
	budget := opts.FallbackBudget
	if budget <= 0 {
		budget = FallbackBudget
	}
	return &Service{
		db:       db,
		store:    opts.Store,
		storeErr: opts.StoreErr,
		blob:     opts.Blob,
		blobErr:  opts.BlobErr,
		tickets:  opts.Tickets,
		cache:    opts.Cache,
		budget:   budget,
		log:      log,
	}
}

func unavailable(store storage.Store, err error) error {
	if store != nil {
		return nil
	}
	var cfgErr *storage.ConfigError
	if errors.As(err, &cfgErr) {
		return apperr.Internalf("%s", cfgErr.Error())
	}
	return apperr.Internalf("R2 is not configured.")
}

// project returns a project the actor may upload into: its own, or any for admins.
func (s *Service) project(ctx context.Context, actor models.Actor, id string) (*models.Project, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Project not found")
		}
		return nil, apperr.Internal(err)
	}
	if !actor.CanManage(p.UserID) {
		return nil, apperr.NotFound("Project not found")
	}
	return &p, nil
}

// Sign reserves a key and returns a presigned PUT the browser uploads to directly.
func (s *Service) Sign(ctx context.Context, actor models.Actor, req SignRequest) (*SignResponse, error) {
	if !actor.IsApproved() {
		return nil, apperr.Unauthorized()
	}
	if err := unavailable(s.store, s.storeErr); err != nil {
		return nil, err
	}
	if req.ProjectID == "" || req.ContentType == "" || req.Size <= 0 {
		return nil, apperr.Invalid("Missing project or file metadata")
	}
	if !allowedTypes[req.ContentType] {
		return nil, apperr.Invalid("Unsupported file type")
	}
	if req.Size > MaxUploadBytes {
		return nil, apperr.Invalid("File too large (max 20MB)")
	}
	if _, err := s.project(ctx, actor, req.ProjectID); err != nil {
		return nil, err
	}

	name := storage.SanitizeFilename(req.Filename, storage.DefaultUploadName)
	key := storage.ProjectKey(req.ProjectID, name)
	uploadURL, err := s.store.PresignPut(ctx, key, PresignExpiry)
	if err != nil {
		if errors.Is(err, storage.ErrPresignUnsupported) {
			return nil, apperr.Unavailable("Direct uploads are not available; upload through the server instead.")
		}
		return nil, apperr.Internal(err)
	}
	publicURL := s.store.PublicURL(key)
	ticket, err := s.tickets.Issue(actor.UserID, req.ProjectID, key, publicURL)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &SignResponse{
		Filename:  name,
		Pathname:  key,
		BlobURL:   publicURL,
		UploadURL: uploadURL,
		Method:    "PUT",
		Headers: map[string]string{
			"Content-Type":  req.ContentType,
			"Cache-Control": storage.CacheControlImmutable,
		},
		Ticket: ticket,
	}, nil
}

// Relay stores a file posted through the server in the primary store.
func (s *Service) Relay(ctx context.Context, actor models.Actor, in RelayInput) (*RelayResponse, error) {
	return s.relay(ctx, actor, s.store, s.storeErr, in)
}

// RelayBlob is Relay against the secondary blob store.
func (s *Service) RelayBlob(ctx context.Context, actor models.Actor, in RelayInput) (*RelayResponse, error) {
	return s.relay(ctx, actor, s.blob, s.blobErr, in)
}

func (s *Service) relay(ctx context.Context, actor models.Actor, store storage.Store, storeErr error, in RelayInput) (*RelayResponse, error) {
	if !actor.IsApproved() {
		return nil, apperr.Unauthorized()
	}
	if err := unavailable(store, storeErr); err != nil {
		return nil, err
	}
	if in.ProjectID == "" || len(in.Data) == 0 {
		return nil, apperr.Invalid("Missing project or file")
	}
	if !allowedTypes[in.ContentType] {
		return nil, apperr.Invalid("Unsupported file type")
	}
	if len(in.Data) > MaxUploadBytes {
		return nil, apperr.Invalid("File too large (max 20MB)")
	}
	if _, err := s.project(ctx, actor, in.ProjectID); err != nil {
		return nil, err
	}

	name := storage.SanitizeFilename(in.Filename, storage.DefaultUploadName)
	data, contentType := in.Data, in.ContentType
	width, height := in.Width, in.Height

	if len(data) > s.budget {
		fitted, err := imaging.FitToBytes(data, s.budget)
		if err != nil {
			if errors.Is(err, imaging.ErrCannotFit) {
				return nil, apperr.TooLarge("Image could not be compressed enough to upload. Please resize it and try again.")
			}
			return nil, apperr.Invalid("Could not read image.")
		}
		data, contentType = fitted.Data, fitted.ContentType
		width, height = fitted.Width, fitted.Height
		if contentType == "image/jpeg" {
			name = jpegName(name)
		}
	} else if width <= 0 || height <= 0 {
		if w, h, _, err := imaging.Dimensions(bytes.NewReader(data)); err == nil {
			width, height = w, h
		}
	}

	key := storage.ProjectKey(in.ProjectID, name)
	obj, err := store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
		ContentType:  contentType,
		CacheControl: storage.CacheControlImmutable,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	ticket, err := s.tickets.Issue(actor.UserID, in.ProjectID, obj.Key, obj.URL)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &RelayResponse{
		Filename: name,
		BlobURL:  obj.URL,
		Pathname: obj.Key,
		Size:     int64(len(data)),
		Width:    width,
		Height:   height,
		Ticket:   ticket,
	}, nil
}

func jpegName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
}

// Finalize records uploaded objects as photos at the end of the project's order.
// Every entry must carry a ticket issued to this caller for this project and key.
func (s *Service) Finalize(ctx context.Context, actor models.Actor, req FinalizeRequest) (*FinalizeResult, error) {
	if !actor.IsApproved() {
		return nil, apperr.Unauthorized()
	}
	if req.ProjectID == "" || len(req.Photos) == 0 {
		return nil, apperr.Invalid("Missing project or files")
	}
	project, err := s.project(ctx, actor, req.ProjectID)
	if err != nil {
		return nil, err
	}

	unverified := apperr.Invalid("Upload could not be verified.")
	claims := make([]*TicketClaims, len(req.Photos))
	keys := make([]string, len(req.Photos))
	seen := make(map[string]bool, len(req.Photos))
	for i, p := range req.Photos {
		c, err := s.tickets.Verify(p.Ticket)
		if err != nil {
			return nil, unverified
		}
		if c.Subject != actor.UserID || c.ProjectID != project.ID || c.Pathname != p.Pathname || seen[c.Pathname] {
			return nil, unverified
		}
		seen[c.Pathname] = true
		claims[i], keys[i] = c, c.Pathname
	}

	res := &FinalizeResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var already int64
		if err := tx.Model(&models.Photo{}).Where("pathname IN ?", keys).Count(&already).Error; err != nil {
			return apperr.Internal(err)
		}
		if already > 0 {
			return apperr.Conflict("These photos have already been saved.")
		}
		next, err := projects.NextOrder(tx, project.ID)
		if err != nil {
			return apperr.Internal(err)
		}
		photos := make([]models.Photo, len(req.Photos))
		for i, p := range req.Photos {
			photos[i] = models.Photo{
				ProjectID: project.ID,
				UserID:    project.UserID,
				Filename:  storage.SanitizeFilename(p.Filename, storage.DefaultUploadName),
				BlobURL:   claims[i].URL,
				Pathname:  claims[i].Pathname,
				Width:     p.Width,
				Height:    p.Height,
				Size:      p.Size,
				Order:     next + i,
			}
		}
		if err := tx.Create(&photos).Error; err != nil {
			return apperr.Internal(err)
		}
		count, err := projects.Recount(tx, project.ID)
		if err != nil {
			return apperr.Internal(err)
		}
		res.Photos, res.Count = photos, count
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate()
	}
	return res, nil
}

// ProfilePhoto stores a profile picture for any signed-in account. The profile itself is
// updated separately through the auth profile endpoint.
func (s *Service) ProfilePhoto(ctx context.Context, actor models.Actor, filename, contentType string, data []byte) (*ProfilePhotoResponse, error) {
	if !actor.Authenticated() {
		return nil, apperr.Unauthorized()
	}
	if err := unavailable(s.store, s.storeErr); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apperr.Invalid("Missing file")
	}
	if !allowedTypes[contentType] {
		return nil, apperr.Invalid("Unsupported file type")
	}
	if len(data) > MaxProfileBytes {
		return nil, apperr.Invalid("File too large (max 10MB)")
	}

	name := storage.SanitizeFilename(filename, storage.DefaultProfileName)
	key := storage.ProfileKey(actor.UserID, name)
	obj, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
		ContentType:  contentType,
		CacheControl: storage.CacheControlImmutable,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &ProfilePhotoResponse{
		Filename:        name,
		ProfilePhotoURL: obj.URL,
		Pathname:        obj.Key,
		Size:            int64(len(data)),
	}, nil
}
