// Package storage abstracts the object store photos live in.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/SmallTownDocumentary/gallery-backend/internal/config"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
)

type Backend string

const (
	BackendR2     Backend = "r2"
	BackendLocal  Backend = "local"
	BackendMemory Backend = "memory"
)

// CacheControlImmutable is sent with every uploaded object; keys are never reused.
const CacheControlImmutable = "public, max-age=31536000, immutable"

var (
	ErrUnknownBackend     = errors.New("unknown storage backend")
	ErrPresignUnsupported = errors.New("storage backend does not support presigned uploads")
)

// ConfigError lists the variables a backend is missing.
type ConfigError struct {
	Backend Backend
	Missing []string
}

func (e *ConfigError) Error() string {
	if e.Backend == BackendR2 {
		return "Missing R2 configuration: " + strings.Join(e.Missing, ", ")
	}
	return fmt.Sprintf("Missing %s storage configuration: %s", e.Backend, strings.Join(e.Missing, ", "))
}

type PutOptions struct {
	ContentType  string
	CacheControl string
}

type Object struct {
	Key  string
	URL  string
	Size int64
}

// Store is implemented by every backend.
type Store interface {
	Name() Backend
	Put(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) (Object, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	// PresignPut returns a URL the browser can PUT the object to directly.
	PresignPut(ctx context.Context, key string, expires time.Duration) (string, error)
}

var registry = map[Backend]func(config.StorageConfig) (Store, error){}

// Register is called from init() in each backend file.
func Register(b Backend, constructor func(config.StorageConfig) (Store, error)) {
	registry[b] = constructor
}

// New builds the store selected by cfg.Backend. Misconfiguration yields a *ConfigError.
func New(cfg config.StorageConfig) (Store, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(cfg.Backend)))
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	constructor, ok := registry[b]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
	return constructor(cfg)
}

func Validate(cfg config.StorageConfig) error {
	b := Backend(strings.ToLower(strings.TrimSpace(cfg.Backend)))
	var missing []string
	switch b {
	case BackendR2:
		missing = MissingR2Vars(cfg)
	case BackendLocal:
		if cfg.LocalDir == "" {
			missing = append(missing, "LOCAL_STORAGE_DIR")
		}
	}
	if len(missing) > 0 {
		return &ConfigError{Backend: b, Missing: missing}
	}
	return nil
}

func MissingR2Vars(cfg config.StorageConfig) []string {
	var missing []string
	if cfg.R2Bucket == "" {
		missing = append(missing, "R2_BUCKET")
	}
	if cfg.R2Endpoint == "" {
		missing = append(missing, "R2_ENDPOINT or R2_ACCOUNT_ID")
	}
	if cfg.R2AccessKeyID == "" {
		missing = append(missing, "R2_ACCESS_KEY_ID")
	}
	if cfg.R2SecretAccessKey == "" {
		missing = append(missing, "R2_SECRET_ACCESS_KEY")
	}
	return missing
}

// IsLegacyPath reports whether a photo pathname points at the legacy filesystem route.
func IsLegacyPath(pathname string) bool {
	return strings.HasPrefix(pathname, models.LegacyPhotoPrefix)
}

// BestEffortDelete removes objects, logging failures and never returning them.
// Empty and legacy pathnames are skipped.
func BestEffortDelete(ctx context.Context, store Store, log zerolog.Logger, pathnames ...string) {
	if store == nil {
		return
	}
	for _, p := range pathnames {
		key := strings.TrimLeft(strings.TrimSpace(p), "/")
		if key == "" || IsLegacyPath(p) {
			continue
		}
		if err := store.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Str("backend", string(store.Name())).Msg("storage cleanup failed")
		}
	}
}

// KeyFromURL recovers the object key from a public URL or a bare pathname.
func KeyFromURL(s Store, raw string) string {
	raw = strings.TrimSpace(raw)
	if prefix := s.PublicURL(""); strings.HasPrefix(raw, prefix) {
		return strings.Trim(raw[len(prefix):], "/")
	}
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		return strings.Trim(u.Path, "/")
	}
	return strings.Trim(raw, "/")
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Trim(key, "/")
}
