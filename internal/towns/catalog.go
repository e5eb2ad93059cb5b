package towns

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
)

//go:embed towns.yaml
var catalogYAML []byte

type Featured struct {
	Year         int    `yaml:"year" json:"year"`
	Photographer string `yaml:"photographer" json:"photographer"`
}

// Canonical is one entry of the authoritative town list.
type Canonical struct {
	Name     string     `yaml:"name" json:"name"`
	Lat      float64    `yaml:"lat" json:"lat"`
	Lng      float64    `yaml:"lng" json:"lng"`
	Featured []Featured `yaml:"featured" json:"years,omitempty"`
}

type LatLng struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lng float64 `yaml:"lng" json:"lng"`
}

type Bounds struct {
	North float64 `yaml:"north" json:"north"`
	South float64 `yaml:"south" json:"south"`
	West  float64 `yaml:"west" json:"west"`
	East  float64 `yaml:"east" json:"east"`
}

type MapView struct {
	Center LatLng  `yaml:"center" json:"center"`
	Zoom   float64 `yaml:"zoom" json:"zoom"`
	Bounds Bounds  `yaml:"bounds" json:"bounds"`
}

type Catalog struct {
	Towns   []Canonical       `yaml:"towns"`
	Aliases map[string]string `yaml:"aliases"`
	Map     MapView           `yaml:"map"`

	byLower   map[string]*Canonical
	byNoPunct map[string]*Canonical
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded catalog. It panics if the embedded file is malformed.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(catalogYAML)
		if err != nil {
			panic(fmt.Sprintf("towns: embedded catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse town catalog: %w", err)
	}
	c.byLower = make(map[string]*Canonical, len(c.Towns))
	c.byNoPunct = make(map[string]*Canonical, len(c.Towns))
	for i := range c.Towns {
		t := &c.Towns[i]
		if t.Name == "" {
			return nil, fmt.Errorf("town catalog entry %d has no name", i)
		}
		lower := strings.ToLower(t.Name)
		if _, dup := c.byLower[lower]; dup {
			return nil, fmt.Errorf("town catalog lists %q twice", t.Name)
		}
		c.byLower[lower] = t
		if _, ok := c.byNoPunct[noPunct(t.Name)]; !ok {
			c.byNoPunct[noPunct(t.Name)] = t
		}
	}
	aliases := make(map[string]string, len(c.Aliases))
	for k, v := range c.Aliases {
		aliases[strings.ToLower(strings.TrimSpace(k))] = v
	}
	c.Aliases = aliases
	return &c, nil
}

func (c *Catalog) All() []Canonical { return c.Towns }

// Lookup finds a town by exact, case-insensitive name.
func (c *Catalog) Lookup(name string) (Canonical, bool) {
	t, ok := c.byLower[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Canonical{}, false
	}
	return *t, true
}

// Resolve maps a raw spelling onto a canonical town name: exact match first, then
// punctuation- and diacritic-insensitive, then the alias table. Unknown names are not invented.
func (c *Catalog) Resolve(candidate string) (string, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(candidate))
	if cleaned == "" {
		return "", false
	}
	if t, ok := c.byLower[cleaned]; ok {
		return t.Name, true
	}
	if t, ok := c.byNoPunct[noPunct(cleaned)]; ok {
		return t.Name, true
	}
	if alias, ok := c.Aliases[cleaned]; ok {
		if t, ok := c.byLower[strings.ToLower(alias)]; ok {
			return t.Name, true
		}
	}
	return "", false
}

// BySlug returns the canonical town whose slug matches.
func (c *Catalog) BySlug(slug string) (Canonical, bool) {
	for _, t := range c.Towns {
		if Slugify(t.Name) == slug {
			return t, true
		}
	}
	return Canonical{}, false
}
