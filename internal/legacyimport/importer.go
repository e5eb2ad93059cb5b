// Package legacyimport brings photos from the original site and from Flickr into the
// gallery, and moves stored objects between backends. Every job is safe to re-run.
package legacyimport

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/placeholders"
	"github.com/SmallTownDocumentary/gallery-backend/internal/storage"
	"github.com/SmallTownDocumentary/gallery-backend/internal/towns"
)

var importItems = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gallery_import_items_total",
		Help: "Items handled by import and migration jobs, by job and outcome.",
	},
	[]string{"job", "outcome"},
)

func count(job, outcome string) {
	importItems.WithLabelValues(job, outcome).Inc()
}

// Retry runs an operation up to Attempts times, each bounded by Timeout.
type Retry struct {
	Attempts int
	Timeout  time.Duration
	Delay    time.Duration
}

var DefaultRetry = Retry{Attempts: 3, Timeout: 30 * time.Second, Delay: time.Second}

// Do returns the last error once every attempt failed. Cancelling ctx stops early.
func (r Retry) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last error
	for i := 0; i < attempts; i++ {
		if i > 0 && r.Delay > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(last, ctx.Err())
			case <-time.After(r.Delay * time.Duration(i)):
			}
		}
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		}
		last = fn(attemptCtx)
		cancel()
		if last == nil {
			return nil
		}
		if ctx.Err() != nil {
			return last
		}
	}
	return last
}

type Options struct {
	Store        storage.Store
	Catalog      *towns.Catalog
	Placeholders *placeholders.Registry
	// PublishOnImport makes filesystem imports visible immediately.
	PublishOnImport bool
	Retry           Retry
}

type Importer struct {
	db           *gorm.DB
	store        storage.Store
	catalog      *towns.Catalog
	placeholders *placeholders.Registry
	publish      bool
	retry        Retry
	log          zerolog.Logger
	now          func() time.Time
}

func New(db *gorm.DB, opts Options, log zerolog.Logger) *Importer {
	imp := &Importer{
		db:           db,
		store:        opts.Store,
		catalog:      opts.Catalog,
		placeholders: opts.Placeholders,
		publish:      opts.PublishOnImport,
		retry:        opts.Retry,
		log:          log,
		now:          time.Now,
	}
	if imp.catalog == nil {
		imp.catalog = towns.Default()
	}
	if imp.placeholders == nil {
		imp.placeholders = placeholders.New("", "")
	}
	if imp.retry.Attempts == 0 {
		imp.retry = DefaultRetry
	}
	return imp
}
