package gallery_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/gallery"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/testutil"
	"github.com/SmallTownDocumentary/gallery-backend/internal/towns"
)

type fixture struct {
	db    *gorm.DB
	svc   *gallery.Service
	ozark *models.Town
	anna  *models.User
}

func setup(t *testing.T) fixture {
	t.Helper()
	gdb := testutil.NewDB(t)
	return fixture{
		db:    gdb,
		svc:   gallery.NewService(gdb, towns.Default(), time.Minute, zerolog.Nop()),
		ozark: testutil.CreateTown(t, gdb, "Ozark"),
		anna:  testutil.CreateUser(t, gdb, "anna@example.com", "Anna Connolly", models.RolePhotographer),
	}
}

func TestGalleryOrdersPhotos(t *testing.T) {
	f := setup(t)
	p := testutil.CreateProject(t, f.db, f.ozark, f.anna, 2020, true, 3)

	// Stored out of order; sort_order decides.
	require.NoError(t, f.db.Model(&models.Photo{}).Where("id = ?", p.Photos[0].ID).Update("sort_order", 5).Error)

	g, ok := f.svc.Gallery(context.Background(), "ozark", 2020)
	require.True(t, ok)
	assert.Equal(t, "Ozark", g.TownName)
	assert.Equal(t, "Anna Connolly", g.Photographer)
	require.Len(t, g.Photos, 3)
	assert.Equal(t, []string{"p1.jpg", "p2.jpg", "p0.jpg"}, []string{g.Photos[0].Filename, g.Photos[1].Filename, g.Photos[2].Filename})
}

func TestGalleryOzarkScenario(t *testing.T) {
	f := setup(t)
	testutil.CreateProject(t, f.db, f.ozark, f.anna, 2020, true, 3)

	g, ok := f.svc.Gallery(context.Background(), "ozark", 2020)
	require.True(t, ok)
	assert.Equal(t, "Anna Connolly", g.Photographer)
	assert.Equal(t, "anna-connolly", g.PhotographerSlug)
	assert.Equal(t, "p0.jpg", g.Photos[0].Filename)
	assert.Equal(t, "p2.jpg", g.Photos[2].Filename)
}

func TestGalleryNotFoundCases(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateProject(t, f.db, f.ozark, f.anna, 2018, false, 2)
	testutil.CreateProject(t, f.db, f.ozark, f.anna, 2019, true, 0)

	_, ok := f.svc.Gallery(ctx, "ozark", 2018)
	assert.False(t, ok, "unpublished")
	_, ok = f.svc.Gallery(ctx, "ozark", 2019)
	assert.False(t, ok, "no photos")
	_, ok = f.svc.Gallery(ctx, "tamms", 2020)
	assert.False(t, ok, "unknown town")
}

func TestGalleryEarliestProjectWins(t *testing.T) {
	f := setup(t)
	other := testutil.CreateUser(t, f.db, "ben@example.com", "Ben", models.RolePhotographer)

	later := testutil.CreateProject(t, f.db, f.ozark, other, 2020, true, 1)
	earlier := testutil.CreateProject(t, f.db, f.ozark, f.anna, 2020, true, 1)
	require.NoError(t, f.db.Model(&models.Project{}).Where("id = ?", earlier.ID).
		UpdateColumn("created_at", time.Now().Add(-24*time.Hour)).Error)

	g, ok := f.svc.Gallery(context.Background(), "ozark", 2020)
	require.True(t, ok)
	assert.Equal(t, earlier.ID, g.ProjectID)
	assert.NotEqual(t, later.ID, g.ProjectID)
}

func TestGallerySkipsEarlierEmptyProject(t *testing.T) {
	f := setup(t)
	other := testutil.CreateUser(t, f.db, "ben@example.com", "Ben", models.RolePhotographer)

	empty := testutil.CreateProject(t, f.db, f.ozark, other, 2020, true, 0)
	require.NoError(t, f.db.Model(&models.Project{}).Where("id = ?", empty.ID).
		UpdateColumn("created_at", time.Now().Add(-24*time.Hour)).Error)
	withPhotos := testutil.CreateProject(t, f.db, f.ozark, f.anna, 2020, true, 2)

	g, ok := f.svc.Gallery(context.Background(), "ozark", 2020)
	require.True(t, ok)
	assert.Equal(t, withPhotos.ID, g.ProjectID)
	assert.Equal(t, "Anna Connolly", g.Photographer)
	assert.Len(t, g.Photos, 2)
}

func TestCacheIsInvalidated(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := testutil.CreateProject(t, f.db, f.ozark, f.anna, 2020, false, 1)

	_, ok := f.svc.Gallery(ctx, "ozark", 2020)
	require.False(t, ok)

	require.NoError(t, f.db.Model(p).Update("published", true).Error)
	_, ok = f.svc.Gallery(ctx, "ozark", 2020)
	assert.False(t, ok, "served from cache until invalidated")

	f.svc.Invalidate()
	_, ok = f.svc.Gallery(ctx, "ozark", 2020)
	assert.True(t, ok)
}

func TestTownGalleriesAndParams(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tamms := testutil.CreateTown(t, f.db, "Tamms")
	testutil.CreateProject(t, f.db, f.ozark, f.anna, 2016, true, 2)
	testutil.CreateProject(t, f.db, f.ozark, f.anna, 2020, true, 3)
	testutil.CreateProject(t, f.db, tamms, f.anna, 2018, true, 1)
	testutil.CreateProject(t, f.db, tamms, f.anna, 2019, false, 1)

	opts := f.svc.TownGalleries(ctx, "ozark")
	require.Len(t, opts, 2)
	assert.Equal(t, 2020, opts[0].Year)
	assert.Equal(t, 3, opts[0].PhotoCount)
	assert.Equal(t, 2016, opts[1].Year)

	assert.Equal(t, []string{"ozark", "tamms"}, f.svc.TownParams(ctx))
	assert.Len(t, f.svc.GalleryParams(ctx), 3)

	previews := f.svc.TownPreviews(ctx, "tamms", 20)
	require.Len(t, previews, 1)
	assert.Equal(t, "Tamms", previews[0].TownName)
	assert.Len(t, f.svc.RandomPreviews(ctx, 4), 4)
}

func TestMapTownsMarksPublishedTowns(t *testing.T) {
	f := setup(t)
	testutil.CreateProject(t, f.db, f.ozark, f.anna, 2020, true, 1)

	var ozark, tamms *gallery.MapTown
	list := f.svc.MapTowns(context.Background())
	for i := range list {
		switch list[i].Name {
		case "Ozark":
			ozark = &list[i]
		case "Tamms":
			tamms = &list[i]
		}
	}
	require.NotNil(t, ozark)
	require.NotNil(t, tamms)
	assert.True(t, ozark.HasPhotos)
	assert.Equal(t, []gallery.MapYear{{Year: 2020, Photographer: "Anna Connolly"}}, ozark.Years)
	assert.False(t, tamms.HasPhotos)
}

func TestPhotographerAccountAndCreditFallback(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bio := "Documentary photographer."
	require.NoError(t, f.db.Model(f.anna).Update("bio", bio).Error)
	testutil.CreateProject(t, f.db, f.ozark, f.anna, 2020, true, 2)

	page, ok := f.svc.Photographer(ctx, "anna-connolly")
	require.True(t, ok)
	assert.True(t, page.HasAccount)
	require.NotNil(t, page.Bio)
	assert.Equal(t, bio, *page.Bio)
	require.Len(t, page.Projects, 1)
	assert.Equal(t, 2, page.Projects[0].PhotoCount)

	// Imported work credited by name and owned by a placeholder.
	holder := testutil.CreateUser(t, f.db, "legacy+leah-sutton@smalltown.gallery", "Leah Sutton", models.RolePending)
	belknap := testutil.CreateTown(t, f.db, "Belknap")
	p := testutil.CreateProject(t, f.db, belknap, holder, 2020, true, 1)
	require.NoError(t, f.db.Model(p).Update("photographer", "Leah Sutton").Error)
	f.svc.Invalidate()

	page, ok = f.svc.Photographer(ctx, "leah-sutton")
	require.True(t, ok)
	assert.False(t, page.HasAccount)
	assert.Equal(t, "Leah Sutton", page.Name)
	require.Len(t, page.Projects, 1)
	assert.Equal(t, "belknap", page.Projects[0].TownSlug)

	_, ok = f.svc.Photographer(ctx, "nobody")
	assert.False(t, ok)
}

func TestRoutes(t *testing.T) {
	f := setup(t)
	testutil.CreateProject(t, f.db, f.ozark, f.anna, 2020, true, 3)
	h := gallery.SetupRoutes(gallery.NewHandlers(f.svc))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/towns/ozark/2020", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var g gallery.GalleryData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	assert.Len(t, g.Photos, 3)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/towns/ozark/1999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/towns/ozark", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var town gallery.TownDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &town))
	assert.Equal(t, "Ozark", town.Name)
	assert.Len(t, town.Galleries, 1)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/towns/atlantis", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
