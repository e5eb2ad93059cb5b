package legacyimport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/storage"
)

const (
	jobMigrate = "migrate"

	DefaultBatchSize = 100
	DefaultParallel  = 4
)

// MigrateOptions configures a storage migration.
type MigrateOptions struct {
	// StateFile holds the resume cursor between runs; empty disables resuming.
	StateFile  string
	BatchSize  int
	Parallel   int
	HTTPClient *http.Client
}

// MigrateStats totals a storage migration run.
type MigrateStats struct {
	Scanned     int `json:"scanned"`
	Migrated    int `json:"migrated"`
	UpdatedOnly int `json:"updatedOnly"`
	Failed      int `json:"failed"`
}

type migrateState struct {
	Cursor string `json:"cursor"`
}

// MigrateStorage copies every photo whose URL points at an absolute https location outside
// the target store into the target under its existing pathname, then rewrites the row.
// Progress is checkpointed per batch; the state file is removed when the run completes.
func (imp *Importer) MigrateStorage(ctx context.Context, opts MigrateOptions) (MigrateStats, error) {
	var stats MigrateStats
	if imp.store == nil {
		return stats, errors.New("object storage is not configured")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Parallel <= 0 {
		opts.Parallel = DefaultParallel
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	cursor := readState(opts.StateFile)
	if cursor != "" {
		imp.log.Info().Str("cursor", cursor).Msg("resuming migration")
	}
	targetPrefix := imp.store.PublicURL("")

	var mu sync.Mutex
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		var batch []models.Photo
		q := imp.db.WithContext(ctx).
			Select("id", "filename", "pathname", "blob_url").
			Where("blob_url LIKE ?", "https://%").
			Where("blob_url NOT LIKE ?", targetPrefix+"%").
			Where("pathname <> ''").
			Order("id ASC").
			Limit(opts.BatchSize)
		if cursor != "" {
			q = q.Where("id > ?", cursor)
		}
		if err := q.Find(&batch).Error; err != nil {
			return stats, fmt.Errorf("load batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Parallel)
		for _, photo := range batch {
			g.Go(func() error {
				existed, err := imp.migrateOne(gctx, opts.HTTPClient, photo)
				mu.Lock()
				defer mu.Unlock()
				stats.Scanned++
				switch {
				case err != nil:
					stats.Failed++
					count(jobMigrate, "failed")
					imp.log.Warn().Err(err).Str("photo", photo.ID).Str("pathname", photo.Pathname).Msg("migrate failed")
				case existed:
					stats.UpdatedOnly++
					count(jobMigrate, "updated_only")
				default:
					stats.Migrated++
					count(jobMigrate, "migrated")
				}
				// Per-photo failures are counted, not fatal.
				return nil
			})
		}
		_ = g.Wait()

		cursor = batch[len(batch)-1].ID
		if err := writeState(opts.StateFile, cursor); err != nil {
			return stats, err
		}
		imp.log.Info().
			Int("scanned", stats.Scanned).Int("migrated", stats.Migrated).
			Int("updatedOnly", stats.UpdatedOnly).Int("failed", stats.Failed).
			Msg("batch done")
	}

	if opts.StateFile != "" {
		if err := os.Remove(opts.StateFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return stats, err
		}
	}
	return stats, nil
}

// migrateOne reports whether the object was already present in the target.
func (imp *Importer) migrateOne(ctx context.Context, client *http.Client, photo models.Photo) (bool, error) {
	key := photo.Pathname
	exists, err := imp.store.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if !exists {
		var data []byte
		err := imp.retry.Do(ctx, func(ctx context.Context) error {
			var err error
			data, err = fetch(ctx, client, photo.BlobURL)
			return err
		})
		if err != nil {
			return false, err
		}
		_, err = imp.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
			ContentType:  storage.ContentTypeFor(photo.Filename),
			CacheControl: storage.CacheControlImmutable,
		})
		if err != nil {
			return false, err
		}
	}
	err = imp.db.WithContext(ctx).Model(&models.Photo{}).Where("id = ?", photo.ID).
		Updates(map[string]interface{}{"blob_url": imp.store.PublicURL(key), "pathname": key}).Error
	return exists, err
}

func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source fetch failed (%d)", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// readState returns "" when there is no usable checkpoint.
func readState(path string) string {
	if path == "" {
		return ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var st migrateState
	if json.Unmarshal(raw, &st) != nil {
		return ""
	}
	return st.Cursor
}

func writeState(path, cursor string) error {
	if path == "" {
		return nil
	}
	raw, err := json.Marshal(migrateState{Cursor: cursor})
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
