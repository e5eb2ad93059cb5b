package auth

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/config"
	"github.com/SmallTownDocumentary/gallery-backend/internal/logging"
	"github.com/SmallTownDocumentary/gallery-backend/internal/middleware"
	"github.com/SmallTownDocumentary/gallery-backend/internal/storage"
)

// Setup builds the /auth router. store may be nil.
func Setup(cfg *config.Config, gdb *gorm.DB, store storage.Store, cache Invalidator, log zerolog.Logger) (http.Handler, error) {
	limit, err := middleware.NewIPRateLimiter(cfg.RateLimit.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth rate limit %q: %w", cfg.RateLimit.Auth, err)
	}
	svc := NewService(gdb, store, cache, cfg.Session.TTL, logging.Component(log, "auth"))
	h := NewHandlers(svc, cfg.Session.SecureCookie)
	return SetupRoutes(h, SessionInfo{DB: gdb}, limit), nil
}
