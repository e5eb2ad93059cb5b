package storage

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/SmallTownDocumentary/gallery-backend/internal/towns"
)

var (
	unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
	repeatedUnder  = regexp.MustCompile(`_+`)
)

const (
	DefaultUploadName  = "upload.jpg"
	DefaultProfileName = "profile.jpg"
)

// SanitizeFilename keeps letters, digits, dot, dash and underscore.
func SanitizeFilename(name, fallback string) string {
	s := unsafeFilename.ReplaceAllString(strings.TrimSpace(name), "_")
	s = repeatedUnder.ReplaceAllString(s, "_")
	if s == "" || s == "_" {
		return fallback
	}
	return s
}

func ProjectKey(projectID, filename string) string {
	return fmt.Sprintf("projects/%s/%s-%s", projectID, uuid.NewString(), SanitizeFilename(filename, DefaultUploadName))
}

func ProfileKey(userID, filename string) string {
	return fmt.Sprintf("profiles/%s/%s-%s", userID, uuid.NewString(), SanitizeFilename(filename, DefaultProfileName))
}

// LegacyKey is deterministic so re-running an import reuses objects.
func LegacyKey(town string, year int, filename string) string {
	return fmt.Sprintf("legacy/%s/%d/%s", towns.SafeSegment(town), year, filename)
}

func FlickrKey(projectID, flickrID string) string {
	return fmt.Sprintf("projects/%s/flickr-%s.jpg", projectID, flickrID)
}

// ContentTypeFor guesses an image content type from a key's extension.
func ContentTypeFor(key string) string {
	lower := strings.ToLower(key)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	}
	return "application/octet-stream"
}
