package upload

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/utils"
)

// multipartOverhead covers form fields and part headers around the file itself.
const multipartOverhead = 1 << 20

type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func actor(r *http.Request) models.Actor {
	return utils.ActorFromContext(r.Context())
}

type formFile struct {
	name        string
	contentType string
	data        []byte
}

// readForm parses a multipart body capped at limit bytes of file content. A missing file
// part yields a zero formFile and no error.
func readForm(w http.ResponseWriter, r *http.Request, limit int64, tooLarge string) (formFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return formFile{}, apperr.TooLarge(tooLarge)
		}
		return formFile{}, apperr.Invalid("Invalid upload.")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return formFile{}, nil
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return formFile{}, apperr.Invalid("Invalid upload.")
	}
	return formFile{name: header.Filename, contentType: header.Header.Get("Content-Type"), data: data}, nil
}

func (h *Handlers) SignHandler(w http.ResponseWriter, r *http.Request) {
	var req SignRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Sign(r.Context(), actor(r), req)
	record("sign", err)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, res)
}

func (h *Handlers) relayHandler(kind string, relay func(*http.Request, RelayInput) (*RelayResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := readForm(w, r, MaxUploadBytes, "File too large (max 20MB)")
		if err != nil {
			record(kind, err)
			apperr.WriteError(w, r, err)
			return
		}
		width, _ := strconv.Atoi(r.FormValue("width"))
		height, _ := strconv.Atoi(r.FormValue("height"))
		res, err := relay(r, RelayInput{
			ProjectID:   r.FormValue("projectId"),
			Filename:    f.name,
			ContentType: f.contentType,
			Data:        f.data,
			Width:       width,
			Height:      height,
		})
		record(kind, err)
		if err != nil {
			apperr.WriteError(w, r, err)
			return
		}
		apperr.WriteJSON(w, http.StatusOK, res)
	}
}

func (h *Handlers) RelayHandler() http.HandlerFunc {
	return h.relayHandler("relay", func(r *http.Request, in RelayInput) (*RelayResponse, error) {
		return h.svc.Relay(r.Context(), actor(r), in)
	})
}

func (h *Handlers) BlobHandler() http.HandlerFunc {
	return h.relayHandler("blob", func(r *http.Request, in RelayInput) (*RelayResponse, error) {
		return h.svc.RelayBlob(r.Context(), actor(r), in)
	})
}

func (h *Handlers) FinalizeHandler(w http.ResponseWriter, r *http.Request) {
	var req FinalizeRequest
	if !apperr.DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Finalize(r.Context(), actor(r), req)
	record("finalize", err)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteResult(w, map[string]interface{}{"photos": res.Photos, "count": res.Count})
}

func (h *Handlers) ProfilePhotoHandler(w http.ResponseWriter, r *http.Request) {
	f, err := readForm(w, r, MaxProfileBytes, "File too large (max 10MB)")
	if err == nil {
		var res *ProfilePhotoResponse
		res, err = h.svc.ProfilePhoto(r.Context(), actor(r), f.name, f.contentType, f.data)
		if err == nil {
			record("profile", nil)
			apperr.WriteJSON(w, http.StatusOK, res)
			return
		}
	}
	record("profile", err)
	apperr.WriteError(w, r, err)
}
