package gallery

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes serves the public read API; mounted at /api.
func SetupRoutes(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Get("/galleries", h.GalleryParamsHandler)
	r.Get("/galleries/previews", h.PreviewsHandler)
	r.Get("/towns", h.TownParamsHandler)
	r.Get("/towns/map", h.MapHandler)
	r.Get("/towns/{town}", h.TownHandler)
	r.Get("/towns/{town}/previews", h.TownPreviewsHandler)
	r.Get("/towns/{town}/{year:[0-9]{4}}", h.GalleryHandler)
	r.Get("/photographers/{slug}", h.PhotographerHandler)

	return r
}
