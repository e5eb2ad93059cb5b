package main

import (
	"github.com/spf13/cobra"

	"github.com/SmallTownDocumentary/gallery-backend/internal/flickr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/logging"
)

var importRoot string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import photos from the legacy site or Flickr",
}

var importLegacyCmd = &cobra.Command{
	Use:   "legacy",
	Short: "Import <root>/<town>/<year>/ folders as placeholder-owned projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		root := importRoot
		if root == "" {
			root = cfg.Legacy.TownsRoot
		}
		imp, closeDB, err := openImporter("import-legacy")
		if err != nil {
			return err
		}
		defer closeDB()
		counters, err := imp.ImportLegacy(cmd.Context(), root)
		if err != nil {
			return err
		}
		return printJSON(cmd, counters)
	},
}

var importFlickrCmd = &cobra.Command{
	Use:   "flickr",
	Short: "Import public Flickr albums through the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := flickr.NewClient(flickr.Options{
			APIKey:            cfg.Flickr.APIKey,
			UserID:            cfg.Flickr.UserID,
			RequestsPerSecond: cfg.Flickr.RateLimit,
		}, logging.Component(log, "flickr"))
		if err != nil {
			return err
		}
		imp, closeDB, err := openImporter("import-flickr")
		if err != nil {
			return err
		}
		defer closeDB()
		sum, err := imp.ImportFlickr(cmd.Context(), client)
		if err != nil {
			return err
		}
		return printJSON(cmd, sum)
	},
}

var importFlickrLocalCmd = &cobra.Command{
	Use:   "flickr-local",
	Short: "Import downloaded Flickr albums (album.json plus <id>.jpg per folder)",
	RunE: func(cmd *cobra.Command, args []string) error {
		root := importRoot
		if root == "" {
			root = cfg.Legacy.FlickrLocalRoot
		}
		imp, closeDB, err := openImporter("import-flickr-local")
		if err != nil {
			return err
		}
		defer closeDB()
		sum, err := imp.ImportFlickrLocal(cmd.Context(), root)
		if err != nil {
			return err
		}
		return printJSON(cmd, sum)
	},
}

func init() {
	importCmd.PersistentFlags().StringVar(&importRoot, "root", "", "source directory (defaults from LOCAL_TOWNS_ROOT / FLICKR_LOCAL_ROOT)")
	importCmd.AddCommand(importLegacyCmd, importFlickrCmd, importFlickrLocalCmd)
}
