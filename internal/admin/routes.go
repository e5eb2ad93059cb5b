package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SmallTownDocumentary/gallery-backend/internal/middleware"
)

// SetupRoutes mounts under /api/admin; every route requires an ADMIN session.
func SetupRoutes(h *Handlers, fetcher middleware.SessionFetcher) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.SessionMiddleware(fetcher))
	r.Use(middleware.AdminMiddleware)

	r.Get("/stats", h.StatsHandler)

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.ListUsersHandler)
		r.Post("/{id}/reset-token", h.ResetTokenHandler)
		r.Post("/{id}/{action:approve|reject|promote|demote}", h.ChangeRoleHandler)
	})

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.ListProjectsHandler)
		r.Get("/{id}", h.GetProjectHandler)
		r.Post("/{id}/publish", h.TogglePublishedHandler)
		r.Delete("/{id}", h.DeleteProjectHandler)
	})

	r.Get("/connect", h.ListLegacyHandler)
	r.Post("/connect", h.ConnectHandler)
	r.Post("/connect/bulk", h.BulkConnectHandler)
	r.Post("/disconnect", h.DisconnectHandler)
	r.Post("/disconnect/bulk", h.BulkDisconnectHandler)

	r.Route("/placeholders", func(r chi.Router) {
		r.Get("/", h.ListPlaceholdersHandler)
		r.Post("/", h.CreatePlaceholderHandler)
		r.Post("/{id}/claim", h.ClaimHandler)
	})

	return r
}
