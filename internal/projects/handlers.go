package projects

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/utils"
)

type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func (h *Handlers) ListHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), utils.ActorFromContext(r.Context()))
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, list)
}

func (h *Handlers) GetHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), utils.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, p)
}

func (h *Handlers) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.Create(r.Context(), utils.ActorFromContext(r.Context()), req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, map[string]interface{}{"project": p})
}

func (h *Handlers) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.Update(r.Context(), utils.ActorFromContext(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, map[string]interface{}{"success": true, "project": p})
}

func (h *Handlers) TogglePublishedHandler(w http.ResponseWriter, r *http.Request) {
	published, err := h.svc.TogglePublished(r.Context(), utils.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, map[string]interface{}{"published": published})
}

func (h *Handlers) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), utils.ActorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, nil)
}

func (h *Handlers) ReorderHandler(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.Reorder(r.Context(), utils.ActorFromContext(r.Context()), chi.URLParam(r, "id"), req.PhotoIDs); err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, nil)
}

func (h *Handlers) CaptionHandler(w http.ResponseWriter, r *http.Request) {
	var req CaptionRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.UpdateCaption(r.Context(), utils.ActorFromContext(r.Context()), chi.URLParam(r, "photoId"), req.Caption); err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, nil)
}

func (h *Handlers) MoveHandler(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.Move(r.Context(), utils.ActorFromContext(r.Context()), chi.URLParam(r, "photoId"), req.Direction); err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, nil)
}

func (h *Handlers) DeletePhotoHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePhoto(r.Context(), utils.ActorFromContext(r.Context()), chi.URLParam(r, "photoId")); err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, nil)
}
