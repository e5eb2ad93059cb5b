// Command galleryctl runs the one-off maintenance jobs: legacy and Flickr imports,
// the storage migration and town-name checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/config"
	"github.com/SmallTownDocumentary/gallery-backend/internal/db"
	"github.com/SmallTownDocumentary/gallery-backend/internal/legacyimport"
	"github.com/SmallTownDocumentary/gallery-backend/internal/logging"
	"github.com/SmallTownDocumentary/gallery-backend/internal/placeholders"
	"github.com/SmallTownDocumentary/gallery-backend/internal/storage"
	"github.com/SmallTownDocumentary/gallery-backend/internal/towns"
)

var (
	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "galleryctl",
	Short:         "Maintenance jobs for the gallery backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		log = logging.New(cfg.IsDevelopment())
		return nil
	},
}

func main() {
	rootCmd.AddCommand(importCmd, migrateStorageCmd, townsCmd)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openImporter connects, migrates and builds an importer over the configured store.
// The returned func closes the database.
func openImporter(job string) (*legacyimport.Importer, func(), error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}
	gdb, err := db.Connect(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { _ = db.Close(gdb) }
	if err := db.Migrate(gdb, cfg.Database.Schema); err != nil {
		closeDB()
		return nil, nil, err
	}
	store, err := storage.New(cfg.Storage)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("object storage: %w", err)
	}
	return newImporter(gdb, store, job), closeDB, nil
}

func newImporter(gdb *gorm.DB, store storage.Store, job string) *legacyimport.Importer {
	return legacyimport.New(gdb, legacyimport.Options{
		Store:           store,
		Catalog:         towns.Default(),
		Placeholders:    placeholders.New(cfg.Legacy.PlaceholderEmail, cfg.Legacy.PlaceholderName),
		PublishOnImport: cfg.Legacy.PublishOnImport,
	}, logging.Component(log, job))
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
