package upload

import "github.com/SmallTownDocumentary/gallery-backend/internal/models"

type SignRequest struct {
	ProjectID   string `json:"projectId"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type SignResponse struct {
	Filename  string            `json:"filename"`
	Pathname  string            `json:"pathname"`
	BlobURL   string            `json:"blobUrl"`
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Ticket    string            `json:"ticket"`
}

// RelayInput is one file posted through the server.
type RelayInput struct {
	ProjectID   string
	Filename    string
	ContentType string
	Data        []byte
	Width       int
	Height      int
}

type RelayResponse struct {
	Filename string `json:"filename"`
	BlobURL  string `json:"blobUrl"`
	Pathname string `json:"pathname"`
	Size     int64  `json:"size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Ticket   string `json:"ticket"`
}

type FinalizePhoto struct {
	Filename string `json:"filename"`
	BlobURL  string `json:"blobUrl"`
	Pathname string `json:"pathname"`
	Size     int64  `json:"size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Ticket   string `json:"ticket"`
}

type FinalizeRequest struct {
	ProjectID string          `json:"projectId"`
	Photos    []FinalizePhoto `json:"photos"`
}

type FinalizeResult struct {
	Photos []models.Photo `json:"photos"`
	Count  int            `json:"count"`
}

type ProfilePhotoResponse struct {
	Filename        string `json:"filename"`
	ProfilePhotoURL string `json:"profilePhotoUrl"`
	Pathname        string `json:"pathname"`
	Size            int64  `json:"size"`
}
