package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/utils"
)

type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func actor(r *http.Request) models.Actor {
	return utils.ActorFromContext(r.Context())
}

func (h *Handlers) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	filter := UserFilter(r.URL.Query().Get("filter"))
	users, err := h.svc.ListUsers(r.Context(), actor(r), filter)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, users)
}

func (h *Handlers) ChangeRoleHandler(w http.ResponseWriter, r *http.Request) {
	action := models.RoleAction(chi.URLParam(r, "action"))
	if err := h.svc.ChangeRole(r.Context(), actor(r), chi.URLParam(r, "id"), action); err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, nil)
}

func (h *Handlers) ResetTokenHandler(w http.ResponseWriter, r *http.Request) {
	tok, err := h.svc.GenerateResetToken(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, map[string]interface{}{"token": tok.Token, "resetUrl": tok.ResetURL})
}

func (h *Handlers) StatsHandler(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context(), actor(r))
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, st)
}

func (h *Handlers) ListProjectsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListProjects(r.Context(), actor(r))
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, list)
}

func (h *Handlers) GetProjectHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProject(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, p)
}

func (h *Handlers) TogglePublishedHandler(w http.ResponseWriter, r *http.Request) {
	published, err := h.svc.TogglePublished(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, map[string]interface{}{"published": published})
}

func (h *Handlers) DeleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProject(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, nil)
}

func (h *Handlers) ListLegacyHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListLegacyGalleries(r.Context(), actor(r))
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, list)
}

func (h *Handlers) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ConnectGallery(r.Context(), actor(r), req); err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, nil)
}

func (h *Handlers) BulkConnectHandler(w http.ResponseWriter, r *http.Request) {
	var req BulkConnectRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.BulkConnect(r.Context(), actor(r), req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, map[string]interface{}{"connected": res.Connected, "skipped": res.Skipped})
}

func (h *Handlers) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	var req GalleryRef
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.DisconnectGallery(r.Context(), actor(r), req); err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, nil)
}

func (h *Handlers) BulkDisconnectHandler(w http.ResponseWriter, r *http.Request) {
	var req BulkDisconnectRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.BulkDisconnect(r.Context(), actor(r), req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, map[string]interface{}{"disconnected": res.Disconnected, "skipped": res.Skipped})
}

func (h *Handlers) ListPlaceholdersHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListPlaceholders(r.Context(), actor(r))
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, list)
}

func (h *Handlers) CreatePlaceholderHandler(w http.ResponseWriter, r *http.Request) {
	var req CreatePlaceholderRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.CreatePlaceholder(r.Context(), actor(r), req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, map[string]interface{}{"project": p})
}

func (h *Handlers) ClaimHandler(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ClaimPlaceholder(r.Context(), actor(r), chi.URLParam(r, "id"), req); err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, nil)
}
