// Package health serves /healthz.
package health

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/db"
)

const pingTimeout = 3 * time.Second

type Response struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Message string            `json:"message,omitempty"`
}

// Handler pings the database and reports whether object storage was configured.
// A dead database is unhealthy (503); missing storage only degrades the service, since
// browsing still works without it.
type Handler struct {
	DB       *gorm.DB
	StoreErr error
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	res := Response{Status: "ok", Checks: map[string]string{}}

	switch {
	case h.DB == nil:
		res.Checks["database"] = "down: not connected"
		res.Status = "unhealthy"
	default:
		if err := db.Ping(ctx, h.DB); err != nil {
			res.Checks["database"] = "down: " + err.Error()
			res.Status = "unhealthy"
		} else {
			res.Checks["database"] = "ok"
		}
	}

	if h.StoreErr != nil {
		res.Checks["storage"] = "not configured: " + h.StoreErr.Error()
		if res.Status == "ok" {
			res.Status = "degraded"
		}
	} else {
		res.Checks["storage"] = "ok"
	}

	status := http.StatusOK
	if res.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
		res.Message = "one or more checks failed"
	}
	apperr.WriteJSON(w, status, res)
}
