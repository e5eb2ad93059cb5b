package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SmallTownDocumentary/gallery-backend/internal/middleware"
)

// SetupRoutes mounts under /auth. limit guards the credential endpoints.
func SetupRoutes(h *Handlers, fetcher middleware.SessionFetcher, limit func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Post("/register", h.RegisterHandler)
		r.Post("/login", h.LoginHandler)
		r.Post("/reset-password", h.ResetPasswordHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(fetcher))
		r.Post("/logout", h.LogoutHandler)
		r.Get("/me", h.MeHandler)
		r.Post("/change-password", h.ChangePasswordHandler)
		r.Put("/profile", h.UpdateProfileHandler)
	})

	return r
}
