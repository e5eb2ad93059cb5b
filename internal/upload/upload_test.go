package upload_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/config"
	"github.com/SmallTownDocumentary/gallery-backend/internal/middleware"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/storage"
	"github.com/SmallTownDocumentary/gallery-backend/internal/testutil"
	"github.com/SmallTownDocumentary/gallery-backend/internal/upload"
)

type countingCache struct{ n int }

func (c *countingCache) Invalidate() { c.n++ }

type fixture struct {
	db      *gorm.DB
	svc     *upload.Service
	mem     *storage.Memory
	blob    *storage.Memory
	tickets *upload.Tickets
	cache   *countingCache
	anna    *models.User
	carl    *models.User
	ben     *models.User
	admin   *models.User
	project *models.Project
}

func setup(t *testing.T, budget int) fixture {
	t.Helper()
	gdb := testutil.NewDB(t)
	tickets, err := upload.NewTickets("test-secret", time.Hour)
	require.NoError(t, err)
	f := fixture{
		db:      gdb,
		mem:     storage.NewMemory(""),
		blob:    storage.NewMemory("/blob-uploads"),
		tickets: tickets,
		cache:   &countingCache{},
		anna:    testutil.CreateUser(t, gdb, "anna@example.com", "Anna", models.RolePhotographer),
		carl:    testutil.CreateUser(t, gdb, "carl@example.com", "Carl", models.RolePhotographer),
		ben:     testutil.CreateUser(t, gdb, "ben@example.com", "Ben", models.RolePending),
		admin:   testutil.CreateUser(t, gdb, "admin@example.com", "Admin", models.RoleAdmin),
	}
	town := testutil.CreateTown(t, gdb, "Ozark")
	f.project = testutil.CreateProject(t, gdb, town, f.anna, 2020, false, 2)
	f.svc = upload.NewService(gdb, upload.Options{
		Store:          f.mem,
		Blob:           f.blob,
		Tickets:        tickets,
		Cache:          f.cache,
		FallbackBudget: budget,
	}, zerolog.Nop())
	return f
}

func pngBytes(t *testing.T, w, h int, noise bool) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rng := rand.New(rand.NewSource(7))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255}
			if noise {
				c = color.NRGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSignValidation(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()
	ok := upload.SignRequest{ProjectID: f.project.ID, Filename: "My Photo (1).jpg", ContentType: "image/jpeg", Size: 1024}

	_, err := f.svc.Sign(ctx, f.ben.Actor(), ok)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	bad := ok
	bad.ContentType = "image/gif"
	_, err = f.svc.Sign(ctx, f.anna.Actor(), bad)
	assert.Equal(t, "Unsupported file type", apperr.Message(err))

	bad = ok
	bad.Size = upload.MaxUploadBytes + 1
	_, err = f.svc.Sign(ctx, f.anna.Actor(), bad)
	assert.Equal(t, "File too large (max 20MB)", apperr.Message(err))

	bad = ok
	bad.Size = 0
	_, err = f.svc.Sign(ctx, f.anna.Actor(), bad)
	assert.Equal(t, "Missing project or file metadata", apperr.Message(err))

	_, err = f.svc.Sign(ctx, f.carl.Actor(), ok)
	assert.Equal(t, "Project not found", apperr.Message(err))

	res, err := f.svc.Sign(ctx, f.anna.Actor(), ok)
	require.NoError(t, err)
	assert.Equal(t, "My_Photo_1_.jpg", res.Filename)
	assert.True(t, strings.HasPrefix(res.Pathname, "projects/"+f.project.ID+"/"))
	assert.True(t, strings.HasSuffix(res.Pathname, "-My_Photo_1_.jpg"))
	assert.Equal(t, "https://cdn.test/"+res.Pathname, res.BlobURL)
	assert.Contains(t, res.UploadURL, "X-Amz-Expires")
	assert.Equal(t, "PUT", res.Method)
	assert.Equal(t, storage.CacheControlImmutable, res.Headers["Cache-Control"])

	claims, err := f.tickets.Verify(res.Ticket)
	require.NoError(t, err)
	assert.Equal(t, res.Pathname, claims.Pathname)

	// Admins may sign for any project.
	_, err = f.svc.Sign(ctx, f.admin.Actor(), ok)
	assert.NoError(t, err)
}

func TestMissingStorageConfiguration(t *testing.T) {
	gdb := testutil.NewDB(t)
	anna := testutil.CreateUser(t, gdb, "anna@example.com", "Anna", models.RolePhotographer)
	tickets, err := upload.NewTickets("s", time.Hour)
	require.NoError(t, err)
	storeErr := storage.Validate(config.StorageConfig{Backend: "r2", R2Endpoint: "https://x.r2.cloudflarestorage.com", R2AccessKeyID: "id", R2SecretAccessKey: "secret"})
	svc := upload.NewService(gdb, upload.Options{StoreErr: storeErr, Tickets: tickets}, zerolog.Nop())

	_, err = svc.Sign(context.Background(), anna.Actor(), upload.SignRequest{ProjectID: "p", ContentType: "image/jpeg", Size: 1})
	assert.Equal(t, http.StatusInternalServerError, apperr.Status(err))
	assert.Equal(t, "Missing R2 configuration: R2_BUCKET", apperr.Message(err))
}

func TestRelayProbesDimensions(t *testing.T) {
	f := setup(t, 0)
	data := pngBytes(t, 40, 30, false)

	res, err := f.svc.Relay(context.Background(), f.anna.Actor(), upload.RelayInput{
		ProjectID: f.project.ID, Filename: "scan.png", ContentType: "image/png", Data: data,
	})
	require.NoError(t, err)
	assert.Equal(t, 40, res.Width)
	assert.Equal(t, 30, res.Height)
	assert.EqualValues(t, len(data), res.Size)

	stored, opts, err := f.mem.Get(res.Pathname)
	require.NoError(t, err)
	assert.Equal(t, data, stored)
	assert.Equal(t, "image/png", opts.ContentType)
	assert.Equal(t, storage.CacheControlImmutable, opts.CacheControl)

	// Supplied dimensions are kept.
	res, err = f.svc.Relay(context.Background(), f.anna.Actor(), upload.RelayInput{
		ProjectID: f.project.ID, Filename: "scan.png", ContentType: "image/png", Data: data, Width: 400, Height: 300,
	})
	require.NoError(t, err)
	assert.Equal(t, 400, res.Width)
}

func TestRelayRecompressesOverBudget(t *testing.T) {
	const budget = 200_000
	f := setup(t, budget)
	data := pngBytes(t, 320, 320, true)
	require.Greater(t, len(data), budget)

	res, err := f.svc.Relay(context.Background(), f.anna.Actor(), upload.RelayInput{
		ProjectID: f.project.ID, Filename: "noise.png", ContentType: "image/png", Data: data,
	})
	require.NoError(t, err)
	assert.Equal(t, "noise.jpg", res.Filename)
	assert.LessOrEqual(t, res.Size, int64(budget))
	assert.Positive(t, res.Width)

	_, opts, err := f.mem.Get(res.Pathname)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", opts.ContentType)
}

func TestRelayBlobUsesSecondaryStore(t *testing.T) {
	f := setup(t, 0)
	res, err := f.svc.RelayBlob(context.Background(), f.anna.Actor(), upload.RelayInput{
		ProjectID: f.project.ID, Filename: "a.png", ContentType: "image/png", Data: pngBytes(t, 4, 4, false),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.BlobURL, "/blob-uploads/projects/"))
	assert.Len(t, f.blob.Keys(), 1)
	assert.Empty(t, f.mem.Keys())
}

func relayed(t *testing.T, f fixture, actor models.Actor, name string) upload.FinalizePhoto {
	t.Helper()
	res, err := f.svc.Relay(context.Background(), actor, upload.RelayInput{
		ProjectID: f.project.ID, Filename: name, ContentType: "image/png", Data: pngBytes(t, 8, 6, false),
	})
	require.NoError(t, err)
	return upload.FinalizePhoto{
		Filename: res.Filename, BlobURL: res.BlobURL, Pathname: res.Pathname,
		Size: res.Size, Width: res.Width, Height: res.Height, Ticket: res.Ticket,
	}
}

func TestFinalizeAppendsInOrder(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()
	a, b := relayed(t, f, f.anna.Actor(), "a.png"), relayed(t, f, f.anna.Actor(), "b.png")

	res, err := f.svc.Finalize(ctx, f.anna.Actor(), upload.FinalizeRequest{ProjectID: f.project.ID, Photos: []upload.FinalizePhoto{a, b}})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Count)
	require.Len(t, res.Photos, 2)
	assert.Equal(t, 2, res.Photos[0].Order)
	assert.Equal(t, 3, res.Photos[1].Order)
	assert.Equal(t, 8, res.Photos[0].Width)
	assert.Equal(t, 1, f.cache.n)

	var p models.Project
	require.NoError(t, f.db.First(&p, "id = ?", f.project.ID).Error)
	assert.Equal(t, 4, p.PhotoCount)

	_, err = f.svc.Finalize(ctx, f.anna.Actor(), upload.FinalizeRequest{ProjectID: f.project.ID, Photos: []upload.FinalizePhoto{a}})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestFinalizeRejectsUnverifiedUploads(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()
	good := relayed(t, f, f.anna.Actor(), "a.png")

	tampered := good
	tampered.Pathname = "projects/" + f.project.ID + "/someone-elses.jpg"
	forged := good
	forged.Ticket = "forged"
	forged.Pathname = "projects/" + f.project.ID + "/other.jpg"

	for name, photos := range map[string][]upload.FinalizePhoto{
		"tampered pathname": {tampered},
		"forged ticket":     {forged},
		"duplicate entry":   {good, good},
	} {
		_, err := f.svc.Finalize(ctx, f.anna.Actor(), upload.FinalizeRequest{ProjectID: f.project.ID, Photos: photos})
		assert.Equal(t, "Upload could not be verified.", apperr.Message(err), name)
	}

	// A ticket issued to the owner does not work for an admin finalizing it.
	_, err := f.svc.Finalize(ctx, f.admin.Actor(), upload.FinalizeRequest{ProjectID: f.project.ID, Photos: []upload.FinalizePhoto{good}})
	assert.Equal(t, "Upload could not be verified.", apperr.Message(err))

	_, err = f.svc.Finalize(ctx, f.anna.Actor(), upload.FinalizeRequest{ProjectID: f.project.ID})
	assert.Equal(t, "Missing project or files", apperr.Message(err))

	var n int64
	f.db.Model(&models.Photo{}).Where("project_id = ?", f.project.ID).Count(&n)
	assert.EqualValues(t, 2, n)
}

func TestAdminUploadsBelongToProjectOwner(t *testing.T) {
	f := setup(t, 0)
	photo := relayed(t, f, f.admin.Actor(), "a.png")
	res, err := f.svc.Finalize(context.Background(), f.admin.Actor(), upload.FinalizeRequest{ProjectID: f.project.ID, Photos: []upload.FinalizePhoto{photo}})
	require.NoError(t, err)
	assert.Equal(t, f.anna.ID, res.Photos[0].UserID)
}

func TestProfilePhoto(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()

	_, err := f.svc.ProfilePhoto(ctx, models.Actor{}, "me.png", "image/png", []byte("x"))
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = f.svc.ProfilePhoto(ctx, f.ben.Actor(), "me.png", "image/png", make([]byte, upload.MaxProfileBytes+1))
	assert.Equal(t, "File too large (max 10MB)", apperr.Message(err))

	_, err = f.svc.ProfilePhoto(ctx, f.ben.Actor(), "me.png", "", nil)
	assert.Equal(t, "Missing file", apperr.Message(err))

	// Pending accounts may still set a profile photo.
	res, err := f.svc.ProfilePhoto(ctx, f.ben.Actor(), "", "image/png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "profile.jpg", res.Filename)
	assert.True(t, strings.HasPrefix(res.Pathname, "profiles/"+f.ben.ID+"/"))
	assert.Equal(t, "https://cdn.test/"+res.Pathname, res.ProfilePhotoURL)
}

func multipartRequest(t *testing.T, path string, fields map[string]string, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "s"})
	return req
}

func TestHTTPRelayThenFinalize(t *testing.T) {
	f := setup(t, 0)
	h := upload.SetupRoutes(upload.NewHandlers(f.svc), testutil.AsUser(f.anna))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "/r2", map[string]string{"projectId": f.project.ID}, "field.png", "image/png", pngBytes(t, 12, 9, false)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	relay := testutil.DecodeBody(t, rec)
	assert.EqualValues(t, 12, relay["width"])
	assert.EqualValues(t, 9, relay["height"])

	body := fmt.Sprintf(`{"projectId":%q,"photos":[{"filename":%q,"blobUrl":%q,"pathname":%q,"size":%v,"width":12,"height":9,"ticket":%q}]}`,
		f.project.ID, relay["filename"], relay["blobUrl"], relay["pathname"], relay["size"], relay["ticket"])
	rec = testutil.Do(t, h, http.MethodPost, "/", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := testutil.DecodeBody(t, rec)
	assert.Nil(t, out["error"])
	assert.EqualValues(t, 3, out["count"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "/r2", map[string]string{"projectId": f.project.ID}, "anim.gif", "image/gif", []byte("GIF89a")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unsupported file type", testutil.DecodeBody(t, rec)["error"])
}

func TestHTTPRequiresSession(t *testing.T) {
	f := setup(t, 0)
	h := upload.SetupRoutes(upload.NewHandlers(f.svc), testutil.AsUser(f.anna))
	req := httptest.NewRequest(http.MethodPost, "/r2/sign", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
