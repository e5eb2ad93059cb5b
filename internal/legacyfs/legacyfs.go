// Package legacyfs reads the original site's <town>/<year>/*.jpg directory tree.
package legacyfs

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	PhotographerFile = "photographer.txt"
	DescriptionFile  = "description.txt"
	DefaultWidth     = 1200
	DefaultHeight    = 800
)

var yearDir = regexp.MustCompile(`^\d{4}$`)

var bom = []byte{0xEF, 0xBB, 0xBF}

type TownYear struct {
	Town string
	Year int
	Dir  string
}

// DiscoverTownYears lists every <town>/<4-digit year> directory, sorted by town then year.
func DiscoverTownYears(root string) ([]TownYear, error) {
	townEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var out []TownYear
	for _, te := range townEntries {
		if !te.IsDir() {
			continue
		}
		townDir := filepath.Join(root, te.Name())
		yearEntries, err := os.ReadDir(townDir)
		if err != nil {
			continue
		}
		for _, ye := range yearEntries {
			if !ye.IsDir() || !yearDir.MatchString(ye.Name()) {
				continue
			}
			year, _ := strconv.Atoi(ye.Name())
			out = append(out, TownYear{Town: te.Name(), Year: year, Dir: filepath.Join(townDir, ye.Name())})
		}
	}

	c := collate.New(language.English)
	sort.SliceStable(out, func(i, j int) bool {
		if cmp := c.CompareString(out[i].Town, out[j].Town); cmp != 0 {
			return cmp < 0
		}
		return out[i].Year < out[j].Year
	})
	return out, nil
}

// ReadSidecar returns a trimmed, BOM-stripped text file, or "" if it is missing.
func ReadSidecar(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(bytes.TrimPrefix(data, bom)))
}

func Photographer(dir string) string {
	if p := ReadSidecar(filepath.Join(dir, PhotographerFile)); p != "" {
		return p
	}
	return "Unknown"
}

// Description is nil when the sidecar is absent or empty.
func Description(dir string) *string {
	if d := ReadSidecar(filepath.Join(dir, DescriptionFile)); d != "" {
		return &d
	}
	return nil
}

func IsPhotoFile(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, "~") {
		return false
	}
	return strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg")
}

// PhotoFiles lists the JPEGs in dir in natural, case-insensitive order ("2.jpg" before "10.jpg").
func PhotoFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsPhotoFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	NaturalSort(files)
	return files, nil
}

func NaturalSort(names []string) {
	c := collate.New(language.English, collate.Numeric, collate.IgnoreCase)
	sort.SliceStable(names, func(i, j int) bool {
		return c.CompareString(names[i], names[j]) < 0
	})
}

// YearDir is the directory for a town/year under root; the town directory name is matched
// case-insensitively.
func YearDir(root, town string, year int) (string, bool) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() && strings.EqualFold(e.Name(), town) {
			dir := filepath.Join(root, e.Name(), strconv.Itoa(year))
			if st, err := os.Stat(dir); err == nil && st.IsDir() {
				return dir, true
			}
		}
	}
	return "", false
}
