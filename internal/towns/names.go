package towns

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonSlug     = regexp.MustCompile(`[^a-z0-9]+`)
	spaces      = regexp.MustCompile(`\s+`)
	suffixIL    = regexp.MustCompile(`(?i)\s*,\s*IL$`)
	suffixIN    = regexp.MustCompile(`(?i)\s*,\s*IN$`)
	bareIL      = regexp.MustCompile(`(?i)\s+IL$`)
	parenthetic = regexp.MustCompile(`\s*\(.*\)$`)
	trailingDot = regexp.MustCompile(`\s*\.$`)
	initial     = regexp.MustCompile(`(?i)^[a-z]\.$`)

	class2010  = regexp.MustCompile(`(?i)^small town 2010 class photo$`)
	exhibition = regexp.MustCompile(`(?i)^small town documentary exhibition$`)
)

const (
	class08Title        = "Small Town Documentary Class '08"
	UnknownPhotographer = "Unknown"
	classTown           = "Carbondale"
)

// fold strips diacritics: "Café" -> "Cafe".
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify is the URL form of a town or photographer name:
// lower-case, "&" spelled "and", non-alphanumeric runs become "-".
func Slugify(value string) string {
	s := strings.ToLower(fold(value))
	s = strings.ReplaceAll(s, "&", "and")
	s = nonSlug.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SafeSegment is a storage-key path segment; never empty.
func SafeSegment(value string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(fold(value)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "unknown"
	}
	return s
}

func noPunct(s string) string {
	return nonSlug.ReplaceAllString(strings.ToLower(fold(s)), "")
}

// NormalizeRaw cleans an album-title town spelling: state suffixes, parentheticals and
// trailing periods are dropped. ", IN" is kept and spaced.
func NormalizeRaw(raw string) string {
	town := spaces.ReplaceAllString(strings.TrimSpace(raw), " ")
	town = suffixIL.ReplaceAllString(town, "")
	town = suffixIN.ReplaceAllString(town, ", IN")
	town = bareIL.ReplaceAllString(town, "")
	town = parenthetic.ReplaceAllString(town, "")
	town = trailingDot.ReplaceAllString(town, "")
	return town
}

// TitleCase capitalises each word, leaving "du" lower-case and initials like "a." upper-case.
func TitleCase(raw string) string {
	caser := cases.Title(language.English)
	parts := strings.Fields(raw)
	for i, p := range parts {
		switch {
		case strings.EqualFold(p, "du"):
			parts[i] = "du"
		case initial.MatchString(p):
			parts[i] = strings.ToUpper(p)
		default:
			parts[i] = caser.String(p)
		}
	}
	return strings.Join(parts, " ")
}

type AlbumTitle struct {
	Town         string
	Photographer string
}

// ParseAlbumTitle splits "Town/Photographer" album titles. The class and exhibition
// albums belong to Carbondale.
func (c *Catalog) ParseAlbumTitle(title string) AlbumTitle {
	trimmed := strings.TrimSpace(title)

	switch {
	case trimmed == class08Title:
		return AlbumTitle{Town: classTown, Photographer: class08Title}
	case class2010.MatchString(trimmed):
		return AlbumTitle{Town: classTown, Photographer: "Small Town 2010 Class"}
	case exhibition.MatchString(trimmed):
		return AlbumTitle{Town: classTown, Photographer: "Small Town Documentary Exhibition"}
	}

	parts := strings.Split(trimmed, "/")
	townRaw := parts[0]
	if townRaw == "" {
		townRaw = trimmed
	}
	photographer := strings.TrimSpace(strings.Join(parts[1:], "/"))
	if photographer == "" {
		photographer = UnknownPhotographer
	}

	town := NormalizeRaw(townRaw)
	if alias, ok := c.Aliases[strings.ToLower(town)]; ok {
		town = alias
	}
	if !strings.Contains(town, "/") {
		town = TitleCase(town)
	}
	return AlbumTitle{Town: town, Photographer: photographer}
}
