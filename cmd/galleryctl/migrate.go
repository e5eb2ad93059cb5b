package main

import (
	"github.com/spf13/cobra"

	"github.com/SmallTownDocumentary/gallery-backend/internal/legacyimport"
)

var (
	migrateStateFile string
	migrateBatch     int
	migrateParallel  int
)

var migrateStorageCmd = &cobra.Command{
	Use:   "migrate-storage",
	Short: "Copy photos hosted elsewhere into the configured object store",
	RunE: func(cmd *cobra.Command, args []string) error {
		state := migrateStateFile
		if !cmd.Flags().Changed("state-file") {
			state = cfg.Legacy.MigrateStateFile
		}
		imp, closeDB, err := openImporter("migrate-storage")
		if err != nil {
			return err
		}
		defer closeDB()
		stats, err := imp.MigrateStorage(cmd.Context(), legacyimport.MigrateOptions{
			StateFile: state,
			BatchSize: migrateBatch,
			Parallel:  migrateParallel,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, stats)
	},
}

func init() {
	migrateStorageCmd.Flags().StringVar(&migrateStateFile, "state-file", "", "resume checkpoint (defaults to MIGRATE_STATE_FILE; empty disables)")
	migrateStorageCmd.Flags().IntVar(&migrateBatch, "batch", legacyimport.DefaultBatchSize, "photos per batch")
	migrateStorageCmd.Flags().IntVar(&migrateParallel, "parallel", legacyimport.DefaultParallel, "concurrent copies per batch")
}
