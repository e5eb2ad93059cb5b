package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SmallTownDocumentary/gallery-backend/internal/config"
)

func init() {
	Register(BackendLocal, NewLocal)
}

// Local keeps objects on disk, for development and single-host installs.
type Local struct {
	dir     string
	baseURL string
}

func NewLocal(cfg config.StorageConfig) (Store, error) {
	if err := os.MkdirAll(cfg.LocalDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", cfg.LocalDir, err)
	}
	base := cfg.LocalBaseURL
	if base == "" {
		base = "/blobs"
	}
	return &Local{dir: cfg.LocalDir, baseURL: base}, nil
}

func (s *Local) Name() Backend { return BackendLocal }

func (s *Local) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *Local) Put(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) (Object, error) {
	p, err := s.path(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return Object{}, err
	}
	f, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return Object{}, err
	}
	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(f.Name())
		return Object{}, errors.Join(copyErr, closeErr)
	}
	if err := os.Rename(f.Name(), p); err != nil {
		_ = os.Remove(f.Name())
		return Object{}, err
	}
	return Object{Key: key, URL: s.PublicURL(key), Size: n}, nil
}

func (s *Local) Exists(ctx context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *Local) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Local) PublicURL(key string) string { return joinURL(s.baseURL, key) }

func (s *Local) PresignPut(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "", ErrPresignUnsupported
}

// BaseURL is the path prefix Handler must be mounted at.
func (s *Local) BaseURL() string { return s.baseURL }

// Handler serves stored objects with long-lived caching.
func (s *Local) Handler() http.Handler {
	fs := http.StripPrefix(strings.TrimRight(s.baseURL, "/"), http.FileServer(http.Dir(s.dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", CacheControlImmutable)
		fs.ServeHTTP(w, r)
	})
}
