package admin

import (
	"time"

	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
)

type UserFilter string

const (
	FilterPending UserFilter = "pending"
	FilterAll     UserFilter = "all"
)

type UserSummary struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	Role         models.Role `json:"role"`
	CreatedAt    time.Time   `json:"createdAt"`
	ProjectCount int         `json:"projectCount"`
}

type Stats struct {
	Users     int64 `json:"users"`
	Pending   int64 `json:"pending"`
	Projects  int64 `json:"projects"`
	Published int64 `json:"published"`
}

type ResetToken struct {
	Token    string `json:"token"`
	ResetURL string `json:"resetUrl"`
}

// GalleryRef names a legacy filesystem gallery.
type GalleryRef struct {
	TownName string `json:"townName"`
	Year     int    `json:"year"`
}

type LegacyGallery struct {
	TownName     string  `json:"townName"`
	Year         int     `json:"year"`
	Photographer string  `json:"photographer"`
	PhotoCount   int     `json:"photoCount"`
	Connected    bool    `json:"connected"`
	ProjectID    *string `json:"projectId"`
	OwnerName    *string `json:"ownerName"`
}

type ConnectRequest struct {
	TownName string `json:"townName"`
	Year     int    `json:"year"`
	UserID   string `json:"userId"`
}

type BulkConnectRequest struct {
	UserID    string       `json:"userId"`
	Galleries []GalleryRef `json:"galleries"`
}

type BulkDisconnectRequest struct {
	Galleries []GalleryRef `json:"galleries"`
}

// BulkResult counts what a bulk action did.
type BulkResult struct {
	Connected    int `json:"connected,omitempty"`
	Disconnected int `json:"disconnected,omitempty"`
	Skipped      int `json:"skipped"`
}

type PlaceholderProject struct {
	ID           string `json:"id"`
	TownName     string `json:"townName"`
	Year         int    `json:"year"`
	Photographer string `json:"photographer"`
	PhotoCount   int    `json:"photoCount"`
	Published    bool   `json:"published"`
	OwnerEmail   string `json:"ownerEmail"`
}

type CreatePlaceholderRequest struct {
	TownID       string `json:"townId"`
	Year         int    `json:"year"`
	Photographer string `json:"photographer"`
}

type ClaimRequest struct {
	UserID  string `json:"userId"`
	Publish bool   `json:"publish"`
}
