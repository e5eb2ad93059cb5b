package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Town struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"uniqueIndex:idx_towns_name;not null" json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	State     string    `gorm:"not null;default:Illinois" json:"state"`
	CreatedAt time.Time `json:"createdAt"`
}

func (t *Town) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Project is one photographer's set for a town and year.
type Project struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	TownID       string    `gorm:"size:36;not null;uniqueIndex:idx_projects_town_year_user,priority:1" json:"townId"`
	Year         int       `gorm:"not null;uniqueIndex:idx_projects_town_year_user,priority:2;index:idx_projects_year" json:"year"`
	UserID       string    `gorm:"size:36;not null;uniqueIndex:idx_projects_town_year_user,priority:3;index:idx_projects_user" json:"userId"`
	Photographer string    `gorm:"not null" json:"photographer"`
	Title        *string   `json:"title"`
	Description  *string   `json:"description"`
	Notes        *string   `json:"notes"`
	Published    bool      `gorm:"not null;default:false" json:"published"`
	PhotoCount   int       `gorm:"not null;default:0" json:"photoCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Town   Town    `gorm:"foreignKey:TownID" json:"town"`
	User   *User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Photos []Photo `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"photos,omitempty"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type Photo struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	ProjectID string         `gorm:"size:36;not null;index:idx_photos_project_order,priority:1" json:"projectId"`
	UserID    string         `gorm:"size:36;not null;index:idx_photos_user" json:"userId"`
	Filename  string         `gorm:"not null" json:"filename"`
	BlobURL   string         `gorm:"not null" json:"blobUrl"`
	Pathname  string         `gorm:"not null;default:''" json:"pathname"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Size      int64          `json:"size"`
	Order     int            `gorm:"column:sort_order;not null;default:0;index:idx_photos_project_order,priority:2" json:"order"`
	Title     *string        `json:"title"`
	Caption   *string        `json:"caption"`
	DateTaken *time.Time     `json:"dateTaken"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (p *Photo) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// LegacyPhotoPrefix marks photos served from the legacy filesystem rather than object storage.
const LegacyPhotoPrefix = "/photos/"
