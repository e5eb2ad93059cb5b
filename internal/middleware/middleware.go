package middleware

import (
	"net/http"
	"time"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/utils"
)

const SessionCookie = "session_id"

type SessionFetcher interface {
	FindSessionByID(id string) (utils.SessionData, error)
}

func deny(w http.ResponseWriter, status int, msg string) {
	apperr.WriteJSON(w, status, map[string]string{"error": msg})
}

// SessionMiddleware resolves the session cookie into the caller's id and current role.
func SessionMiddleware(fetcher SessionFetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				deny(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			session, err := fetcher.FindSessionByID(cookie.Value)
			if err != nil {
				deny(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			if session.ExpiresAt.Before(time.Now()) {
				deny(w, http.StatusUnauthorized, "Session expired")
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.WithSession(r.Context(), session)))
		})
	}
}

// AdminMiddleware must run after SessionMiddleware.
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := utils.ActorFromContext(r.Context())
		if !actor.Authenticated() {
			deny(w, http.StatusUnauthorized, "Unauthorized: missing user ID in context")
			return
		}
		if !actor.IsAdmin() {
			deny(w, http.StatusForbidden, "Forbidden: admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ApprovedMiddleware lets through photographers and admins; pending accounts are refused.
func ApprovedMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := utils.ActorFromContext(r.Context())
		if !actor.IsApproved() {
			deny(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole is the generic form of the role gates.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := utils.ActorFromContext(r.Context())
			for _, role := range roles {
				if actor.Authenticated() && actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			deny(w, http.StatusUnauthorized, "Unauthorized")
		})
	}
}
