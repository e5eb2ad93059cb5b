package photoserve

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/SmallTownDocumentary/gallery-backend/internal/config"
)

// SetupRoutes mounts under /photos.
func SetupRoutes(cfg config.LegacyConfig, log zerolog.Logger) http.Handler {
	h := &Handler{BaseURL: cfg.PhotosBaseURL, Dir: cfg.PhotosDir, Log: log}
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/*", h)
	r.Method(http.MethodHead, "/*", h)
	return r
}
