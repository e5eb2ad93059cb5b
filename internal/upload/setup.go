package upload

import (
	"net/http"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/config"
	"github.com/SmallTownDocumentary/gallery-backend/internal/middleware"
)

// Setup builds the upload router. opts.Tickets is created from config when unset.
func Setup(cfg *config.Config, gdb *gorm.DB, opts Options, fetcher middleware.SessionFetcher, log zerolog.Logger) (http.Handler, error) {
	if opts.Tickets == nil {
		if cfg.Upload.TicketSecret == "" {
			log.Warn().Msg("UPLOAD_TICKET_SECRET is not set; upload tickets will not survive a restart")
		}
		t, err := NewTickets(cfg.Upload.TicketSecret, cfg.Upload.TicketTTL)
		if err != nil {
			return nil, err
		}
		opts.Tickets = t
	}
	svc := NewService(gdb, opts, log)
	return SetupRoutes(NewHandlers(svc), fetcher), nil
}
