package projects

import (
	"database/sql"

	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/storage"
)

// OrderedPhotos returns a project's photos in display order: sort_order, then upload time.
func OrderedPhotos(tx *gorm.DB, projectID string) ([]models.Photo, error) {
	var photos []models.Photo
	err := tx.Where("project_id = ?", projectID).
		Order("sort_order ASC").Order("created_at ASC").Order("id ASC").
		Find(&photos).Error
	return photos, err
}

// Renumber writes orders 0..n-1 following ids.
func Renumber(tx *gorm.DB, ids []string) error {
	for i, id := range ids {
		if err := tx.Model(&models.Photo{}).Where("id = ?", id).Update("sort_order", i).Error; err != nil {
			return err
		}
	}
	return nil
}

// Recount stores the live photo count on the project and returns it.
func Recount(tx *gorm.DB, projectID string) (int, error) {
	var n int64
	if err := tx.Model(&models.Photo{}).Where("project_id = ?", projectID).Count(&n).Error; err != nil {
		return 0, err
	}
	err := tx.Model(&models.Project{}).Where("id = ?", projectID).Update("photo_count", int(n)).Error
	return int(n), err
}

// NextOrder is one past the highest order in the project, or 0 when it is empty.
func NextOrder(tx *gorm.DB, projectID string) (int, error) {
	var max sql.NullInt64
	err := tx.Model(&models.Photo{}).Where("project_id = ?", projectID).Select("MAX(sort_order)").Row().Scan(&max)
	if err != nil || !max.Valid {
		return 0, err
	}
	return int(max.Int64) + 1, nil
}

func photoIDs(photos []models.Photo) []string {
	ids := make([]string, len(photos))
	for i, p := range photos {
		ids[i] = p.ID
	}
	return ids
}

// StorageKeys lists the object keys backing photos. Photos served from the legacy
// filesystem have none.
func StorageKeys(store storage.Store, photos []models.Photo) []string {
	if store == nil {
		return nil
	}
	var keys []string
	for _, p := range photos {
		if storage.IsLegacyPath(p.BlobURL) {
			continue
		}
		if p.Pathname != "" {
			keys = append(keys, p.Pathname)
			continue
		}
		keys = append(keys, storage.KeyFromURL(store, p.BlobURL))
	}
	return keys
}
