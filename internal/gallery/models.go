package gallery

type GalleryPhoto struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Src      string  `json:"src"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Title    *string `json:"title"`
	Caption  *string `json:"caption"`
}

type GalleryData struct {
	ProjectID        string         `json:"projectId"`
	TownName         string         `json:"townName"`
	TownSlug         string         `json:"townSlug"`
	Year             int            `json:"year"`
	Photographer     string         `json:"photographer"`
	PhotographerSlug string         `json:"photographerSlug"`
	Description      *string        `json:"description"`
	Photos           []GalleryPhoto `json:"photos"`
}

type GalleryPreview struct {
	TownName     string       `json:"townName"`
	TownSlug     string       `json:"townSlug"`
	Year         int          `json:"year"`
	Photographer string       `json:"photographer"`
	Photo        GalleryPhoto `json:"photo"`
}

type TownGalleryOption struct {
	ID           string `json:"id"`
	TownName     string `json:"townName"`
	TownSlug     string `json:"townSlug"`
	Year         int    `json:"year"`
	Photographer string `json:"photographer"`
	PhotoCount   int    `json:"photoCount"`
}

type GalleryParam struct {
	Town string `json:"town"`
	Year string `json:"year"`
}

type TownDetail struct {
	Name      string              `json:"name"`
	Slug      string              `json:"slug"`
	Latitude  float64             `json:"latitude"`
	Longitude float64             `json:"longitude"`
	Galleries []TownGalleryOption `json:"galleries"`
}

type MapYear struct {
	Year         int    `json:"year"`
	Photographer string `json:"photographer"`
}

type MapTown struct {
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	HasPhotos bool      `json:"hasPhotos"`
	Years     []MapYear `json:"years,omitempty"`
}

type PhotographerProject struct {
	ID         string `json:"id"`
	TownName   string `json:"townName"`
	TownSlug   string `json:"townSlug"`
	Year       int    `json:"year"`
	PhotoCount int    `json:"photoCount"`
	CoverSrc   string `json:"coverSrc,omitempty"`
}

// PhotographerPage describes either an account holder or a photographer known only by name.
type PhotographerPage struct {
	Name            string                `json:"name"`
	Slug            string                `json:"slug"`
	HasAccount      bool                  `json:"hasAccount"`
	Bio             *string               `json:"bio"`
	Website         *string               `json:"website"`
	Location        *string               `json:"location"`
	ProfilePhotoURL *string               `json:"profilePhotoUrl"`
	Projects        []PhotographerProject `json:"projects"`
}
