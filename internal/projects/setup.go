package projects

import (
	"net/http"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/logging"
	"github.com/SmallTownDocumentary/gallery-backend/internal/middleware"
	"github.com/SmallTownDocumentary/gallery-backend/internal/storage"
)

func Setup(gdb *gorm.DB, store storage.Store, cache Invalidator, fetcher middleware.SessionFetcher, log zerolog.Logger) http.Handler {
	svc := NewService(gdb, store, cache, logging.Component(log, "projects"))
	return SetupRoutes(NewHandlers(svc), fetcher)
}
