package admin

import (
	"net/http"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/logging"
	"github.com/SmallTownDocumentary/gallery-backend/internal/middleware"
)

func Setup(gdb *gorm.DB, opts Options, fetcher middleware.SessionFetcher, log zerolog.Logger) http.Handler {
	svc := NewService(gdb, opts, logging.Component(log, "admin"))
	return SetupRoutes(NewHandlers(svc), fetcher)
}
