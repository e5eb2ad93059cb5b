package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/SmallTownDocumentary/gallery-backend/internal/admin"
	"github.com/SmallTownDocumentary/gallery-backend/internal/auth"
	"github.com/SmallTownDocumentary/gallery-backend/internal/config"
	"github.com/SmallTownDocumentary/gallery-backend/internal/db"
	"github.com/SmallTownDocumentary/gallery-backend/internal/gallery"
	"github.com/SmallTownDocumentary/gallery-backend/internal/health"
	"github.com/SmallTownDocumentary/gallery-backend/internal/logging"
	"github.com/SmallTownDocumentary/gallery-backend/internal/middleware"
	"github.com/SmallTownDocumentary/gallery-backend/internal/photoserve"
	"github.com/SmallTownDocumentary/gallery-backend/internal/placeholders"
	"github.com/SmallTownDocumentary/gallery-backend/internal/projects"
	"github.com/SmallTownDocumentary/gallery-backend/internal/storage"
	"github.com/SmallTownDocumentary/gallery-backend/internal/towns"
	"github.com/SmallTownDocumentary/gallery-backend/internal/upload"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.IsDevelopment())

	gdb, err := db.Connect(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close(gdb)
	if err := db.Migrate(gdb, cfg.Database.Schema); err != nil {
		return err
	}

	// Missing storage is not fatal: browsing works and uploads report the missing variables.
	store, storeErr := storage.New(cfg.Storage)
	if storeErr != nil {
		log.Warn().Err(storeErr).Msg("object storage unavailable")
	}
	blob, blobErr := storage.New(cfg.Blob)
	if blobErr != nil {
		log.Warn().Err(blobErr).Msg("blob storage unavailable")
	}

	catalog := towns.Default()
	galleries := gallery.NewService(gdb, catalog, cfg.Cache.TTL, logging.Component(log, "gallery"))
	fetcher := auth.SessionInfo{DB: gdb}

	authRoutes, err := auth.Setup(cfg, gdb, store, galleries, log)
	if err != nil {
		return err
	}
	uploadRoutes, err := upload.Setup(cfg, gdb, upload.Options{
		Store:    store,
		StoreErr: storeErr,
		Blob:     blob,
		BlobErr:  blobErr,
		Cache:    galleries,
	}, fetcher, logging.Component(log, "upload"))
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AccessLog(log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Secure(middleware.SecureOptions(cfg.IsDevelopment())))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.Metrics)

	r.Get("/", RootHandler)
	r.Method(http.MethodGet, "/healthz", &health.Handler{DB: gdb, StoreErr: storeErr})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Mount("/auth", authRoutes)
	r.Route("/api", func(r chi.Router) {
		r.Mount("/projects", projects.Setup(gdb, store, galleries, fetcher, log))
		r.Mount("/admin", admin.Setup(gdb, admin.Options{
			Store:        store,
			Cache:        galleries,
			Placeholders: placeholders.New(cfg.Legacy.PlaceholderEmail, cfg.Legacy.PlaceholderName),
			TownsRoot:    cfg.Legacy.TownsRoot,
		}, fetcher, log))
		r.Mount("/upload", uploadRoutes)
		r.Mount("/", gallery.SetupRoutes(gallery.NewHandlers(galleries)))
	})
	r.Mount("/photos", photoserve.SetupRoutes(cfg.Legacy, logging.Component(log, "photos")))
	mountLocal(r, log, store, blob)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// mountLocal serves disk-backed stores whose public URL is a path on this server.
func mountLocal(r chi.Router, log zerolog.Logger, stores ...storage.Store) {
	mounted := map[string]bool{}
	for _, s := range stores {
		local, ok := s.(*storage.Local)
		if !ok {
			continue
		}
		base := strings.TrimRight(local.BaseURL(), "/")
		if !strings.HasPrefix(base, "/") || mounted[base] {
			continue
		}
		mounted[base] = true
		r.Handle(base+"/*", local.Handler())
		log.Info().Str("path", base).Msg("serving local storage")
	}
}
