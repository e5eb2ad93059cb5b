package legacyimport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// AlbumFile is the album.json written next to each downloaded Flickr album.
type AlbumFile struct {
	PhotosetID      string `json:"photoset_id"`
	Title           string `json:"title"`
	TownRaw         string `json:"town_raw,omitempty"`
	PhotographerRaw string `json:"photographer_raw,omitempty"`
	YearGuess       *int   `json:"year_guess"`
	Photos          []struct {
		ID         flexID `json:"id"`
		Filename   string `json:"filename,omitempty"`
		Title      string `json:"title,omitempty"`
		DateTaken  string `json:"datetaken,omitempty"`
		DateUpload string `json:"dateupload,omitempty"`
		Tags       string `json:"tags,omitempty"`
	} `json:"photos"`
}

const albumManifest = "album.json"

// flexID accepts ids written either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// ImportFlickrLocal imports albums already downloaded to root/<folder>/ as album.json plus
// <photo id>.jpg files. Albums without a year guess are skipped.
func (imp *Importer) ImportFlickrLocal(ctx context.Context, root string) (AlbumSummary, error) {
	var sum AlbumSummary
	if imp.store == nil {
		return sum, errors.New("object storage is not configured")
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return sum, fmt.Errorf("scan %s: %w", root, err)
	}
	var folders []string
	for _, e := range entries {
		if e.IsDir() {
			folders = append(folders, e.Name())
		}
	}
	sort.Strings(folders)
	sum.Albums = len(folders)
	imp.log.Info().Int("albums", len(folders)).Str("root", root).Msg("local flickr import starting")

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := imp.importLocalAlbum(ctx, filepath.Join(root, folder))
		if err != nil {
			return sum, err
		}
		sum.add(res)
	}
	return sum, nil
}

func (imp *Importer) importLocalAlbum(ctx context.Context, dir string) (albumResult, error) {
	log := imp.log.With().Str("folder", filepath.Base(dir)).Logger()

	raw, err := os.ReadFile(filepath.Join(dir, albumManifest))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return albumResult{skippedSet: true}, nil
		}
		return albumResult{}, err
	}
	var album AlbumFile
	if err := json.Unmarshal(raw, &album); err != nil {
		log.Warn().Err(err).Msg("skip: unreadable album.json")
		return albumResult{skippedSet: true}, nil
	}
	log = log.With().Str("set", album.PhotosetID).Str("title", album.Title).Logger()

	parsed, town, ok := imp.resolveAlbum(log, album.Title)
	if !ok {
		count(jobFlickr, "skipped_set")
		return albumResult{skipped: len(album.Photos), skippedSet: true}, nil
	}
	if album.YearGuess == nil || *album.YearGuess == 0 {
		log.Info().Msg("skip: year missing")
		count(jobFlickr, "skipped_set")
		return albumResult{skipped: len(album.Photos), skippedSet: true}, nil
	}

	photos := make([]albumPhoto, 0, len(album.Photos))
	for _, p := range album.Photos {
		id := string(p.ID)
		ap := albumPhoto{
			id:         id,
			title:      p.Title,
			dateTaken:  p.DateTaken,
			dateUpload: p.DateUpload,
			tags:       p.Tags,
			extra:      map[string]interface{}{"sourceType": "local-full-albums"},
		}
		if id != "" {
			path := filepath.Join(dir, id+".jpg")
			if _, err := os.Stat(path); err == nil {
				ap.fetch = func(context.Context) ([]byte, error) { return os.ReadFile(path) }
			}
		}
		photos = append(photos, ap)
	}

	target := albumTarget{
		setID:        album.PhotosetID,
		town:         town,
		year:         *album.YearGuess,
		photographer: parsed.Photographer,
	}
	return imp.importAlbum(ctx, log, target, photos)
}
