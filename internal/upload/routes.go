package upload

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SmallTownDocumentary/gallery-backend/internal/middleware"
)

// SetupRoutes mounts under /api/upload.
func SetupRoutes(h *Handlers, fetcher middleware.SessionFetcher) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.SessionMiddleware(fetcher))

	r.Post("/", h.FinalizeHandler)
	r.Post("/r2/sign", h.SignHandler)
	r.Post("/r2", h.RelayHandler())
	r.Post("/blob", h.BlobHandler())
	r.Post("/profile-photo", h.ProfilePhotoHandler)

	return r
}
