// Package admin holds the operations only administrators may perform. Every exported
// method re-checks the caller, even though the router also gates on role.
package admin

import (
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/placeholders"
	"github.com/SmallTownDocumentary/gallery-backend/internal/storage"
)

// Invalidator is notified when public gallery data may have changed.
type Invalidator interface {
	Invalidate()
}

type Service struct {
	db           *gorm.DB
	store        storage.Store
	cache        Invalidator
	placeholders *placeholders.Registry
	townsRoot    string
	log          zerolog.Logger
	now          func() time.Time
}

type Options struct {
	Store        storage.Store
	Cache        Invalidator
	Placeholders *placeholders.Registry
	// TownsRoot is the legacy town/year directory tree used by connect.
	TownsRoot string
}

func NewService(db *gorm.DB, opts Options, log zerolog.Logger) *Service {
	reg := opts.Placeholders
	if reg == nil {
		reg = placeholders.New("", "")
	}
	return &Service{
		db:           db,
		store:        opts.Store,
		cache:        opts.Cache,
		placeholders: reg,
		townsRoot:    opts.TownsRoot,
		log:          log,
		now:          time.Now,
	}
}

func requireAdmin(actor models.Actor) error {
	if !actor.IsAdmin() {
		return apperr.Unauthorized()
	}
	return nil
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}
