package projects

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SmallTownDocumentary/gallery-backend/internal/middleware"
)

// SetupRoutes mounts under /api/projects. Every route needs a session; ownership is checked per call.
func SetupRoutes(h *Handlers, fetcher middleware.SessionFetcher) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.SessionMiddleware(fetcher))

	r.Get("/", h.ListHandler)
	r.Post("/", h.CreateHandler)

	r.Put("/photos/{photoId}/caption", h.CaptionHandler)
	r.Post("/photos/{photoId}/move", h.MoveHandler)
	r.Delete("/photos/{photoId}", h.DeletePhotoHandler)

	r.Get("/{id}", h.GetHandler)
	r.Put("/{id}", h.UpdateHandler)
	r.Post("/{id}/publish", h.TogglePublishedHandler)
	r.Delete("/{id}", h.DeleteHandler)
	r.Put("/{id}/photos/order", h.ReorderHandler)

	return r
}
