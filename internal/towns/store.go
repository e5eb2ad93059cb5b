package towns

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
)

// ErrUnknownTown is returned when a name is not in the canonical list.
var ErrUnknownTown = errors.New("town is not in the canonical list")

const defaultState = "Illinois"

// Ensure returns the Town row for a canonical name, creating it from the catalog
// coordinates when missing.
func (c *Catalog) Ensure(tx *gorm.DB, name string) (*models.Town, error) {
	canon, ok := c.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTown, name)
	}

	var town models.Town
	err := tx.Where("name = ?", canon.Name).First(&town).Error
	if err == nil {
		return &town, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	town = models.Town{
		Name:      canon.Name,
		Latitude:  canon.Lat,
		Longitude: canon.Lng,
		State:     defaultState,
	}
	if err := tx.Create(&town).Error; err != nil {
		return nil, fmt.Errorf("create town %s: %w", canon.Name, err)
	}
	return &town, nil
}

// FindByName looks up an existing Town row case-insensitively.
func FindByName(tx *gorm.DB, name string) (*models.Town, error) {
	var town models.Town
	err := tx.Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).First(&town).Error
	if err != nil {
		return nil, err
	}
	return &town, nil
}

// Seed upserts every canonical town, refreshing coordinates.
func (c *Catalog) Seed(tx *gorm.DB) (int, error) {
	rows := make([]models.Town, 0, len(c.Towns))
	for _, t := range c.Towns {
		rows = append(rows, models.Town{Name: t.Name, Latitude: t.Lat, Longitude: t.Lng, State: defaultState})
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"latitude", "longitude"}),
	}).CreateInBatches(&rows, 50).Error
	if err != nil {
		return 0, fmt.Errorf("seed towns: %w", err)
	}
	return len(rows), nil
}
