package auth

import (
	"net/http"
	"time"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/middleware"
	"github.com/SmallTownDocumentary/gallery-backend/internal/utils"
)

type Handlers struct {
	svc          *Service
	secureCookie bool
}

func NewHandlers(svc *Service, secureCookie bool) *Handlers {
	return &Handlers{svc: svc, secureCookie: secureCookie}
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookie,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookie,
	})
}

func (h *Handlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	user, err := h.svc.Register(r.Context(), req)
	record("register", err)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, map[string]interface{}{"user": meFromUser(user)})
}

func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	session, user, err := h.svc.Login(r.Context(), req)
	record("login", err)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	h.setSessionCookie(w, session.SessionID, session.ExpiresAt)
	apperr.WriteResult(w, map[string]interface{}{"user": meFromUser(user)})
}

func (h *Handlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookie)
	if err != nil {
		apperr.WriteError(w, r, apperr.Unauthorized())
		return
	}
	if err := h.svc.Logout(r.Context(), cookie.Value); err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	h.clearSessionCookie(w)
	apperr.WriteResult(w, nil)
}

func (h *Handlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context(), utils.ActorFromContext(r.Context()))
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, meFromUser(user))
}

func (h *Handlers) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	err := h.svc.ChangePassword(r.Context(), utils.ActorFromContext(r.Context()), req)
	record("change_password", err)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, nil)
}

func (h *Handlers) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	err := h.svc.ResetPassword(r.Context(), req)
	record("reset_password", err)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, nil)
}

func (h *Handlers) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	user, err := h.svc.UpdateProfile(r.Context(), utils.ActorFromContext(r.Context()), req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, map[string]interface{}{"user": meFromUser(user)})
}
