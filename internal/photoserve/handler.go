// Package photoserve answers /photos/{town}/{year}/{file} for galleries still kept on the
// legacy filesystem.
package photoserve

import (
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/SmallTownDocumentary/gallery-backend/internal/storage"
)

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// Handler redirects to BaseURL when set, otherwise streams from Dir. With neither it 404s.
type Handler struct {
	BaseURL string
	Dir     string
	Log     zerolog.Logger
}

type target struct {
	town, year, file string
}

// parse validates the path below the mount point. Segments are percent-decoded before the
// traversal checks so an encoded slash cannot slip through.
func parse(escapedPath string) (target, bool) {
	raw := strings.Split(strings.Trim(escapedPath, "/"), "/")
	if len(raw) != 3 {
		return target{}, false
	}
	seg := make([]string, 3)
	for i, s := range raw {
		d, err := url.PathUnescape(s)
		if err != nil || d == "" {
			return target{}, false
		}
		seg[i] = d
	}
	t := target{town: seg[0], year: seg[1], file: seg[2]}

	if !yearPattern.MatchString(t.year) {
		return target{}, false
	}
	switch strings.ToLower(filepath.Ext(t.file)) {
	case ".jpg", ".jpeg":
	default:
		return target{}, false
	}
	for _, s := range seg {
		if strings.Contains(s, "..") {
			return target{}, false
		}
	}
	if strings.ContainsAny(t.town, `/\`) || strings.ContainsAny(t.file, `/\`) {
		return target{}, false
	}
	return t, true
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t, ok := parse(strings.TrimPrefix(r.URL.EscapedPath(), "/photos"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	if h.BaseURL != "" {
		dest := strings.TrimRight(h.BaseURL, "/") + "/" + url.PathEscape(t.town) + "/" + t.year + "/" + url.PathEscape(t.file)
		http.Redirect(w, r, dest, http.StatusTemporaryRedirect)
		return
	}
	if h.Dir == "" {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.Dir, t.town, t.year, t.file)
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.Log.Warn().Err(err).Str("path", path).Msg("open legacy photo")
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil || st.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", storage.CacheControlImmutable)
	http.ServeContent(w, r, t.file, st.ModTime(), f)
}
