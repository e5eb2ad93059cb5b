package gallery

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
)

type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func notFound(w http.ResponseWriter, what string) {
	apperr.WriteJSON(w, http.StatusNotFound, map[string]string{"error": what + " not found."})
}

func previewCount(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || n <= 0 || n > 200 {
		return DefaultPreviewCount
	}
	return n
}

func (h *Handlers) GalleryParamsHandler(w http.ResponseWriter, r *http.Request) {
	apperr.WriteJSON(w, http.StatusOK, h.svc.GalleryParams(r.Context()))
}

func (h *Handlers) PreviewsHandler(w http.ResponseWriter, r *http.Request) {
	apperr.WriteJSON(w, http.StatusOK, h.svc.RandomPreviews(r.Context(), previewCount(r)))
}

func (h *Handlers) TownParamsHandler(w http.ResponseWriter, r *http.Request) {
	apperr.WriteJSON(w, http.StatusOK, h.svc.TownParams(r.Context()))
}

func (h *Handlers) MapHandler(w http.ResponseWriter, r *http.Request) {
	apperr.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"towns": h.svc.MapTowns(r.Context()),
		"view":  h.svc.catalog.Map,
	})
}

func (h *Handlers) TownHandler(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.svc.Town(r.Context(), chi.URLParam(r, "town"))
	if !ok {
		notFound(w, "Town")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handlers) TownPreviewsHandler(w http.ResponseWriter, r *http.Request) {
	apperr.WriteJSON(w, http.StatusOK, h.svc.TownPreviews(r.Context(), chi.URLParam(r, "town"), previewCount(r)))
}

func (h *Handlers) GalleryHandler(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		notFound(w, "Gallery")
		return
	}
	data, ok := h.svc.Gallery(r.Context(), chi.URLParam(r, "town"), year)
	if !ok {
		notFound(w, "Gallery")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, data)
}

func (h *Handlers) PhotographerHandler(w http.ResponseWriter, r *http.Request) {
	page, ok := h.svc.Photographer(r.Context(), chi.URLParam(r, "slug"))
	if !ok {
		notFound(w, "Photographer")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, page)
}
