package legacyimport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/flickr"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/storage"
	"github.com/SmallTownDocumentary/gallery-backend/internal/testutil"
)

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newImporter(t *testing.T) (*Importer, *gorm.DB, *storage.Memory) {
	t.Helper()
	gdb := testutil.NewDB(t)
	mem := storage.NewMemory("")
	imp := New(gdb, Options{Store: mem, Retry: Retry{Attempts: 2}}, zerolog.Nop())
	return imp, gdb, mem
}

func countRows(t *testing.T, gdb *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(model).Count(&n).Error)
	return n
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry{Attempts: 3}.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Retry{Attempts: 2}.Do(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("attempt %d", calls)
	})
	assert.EqualError(t, err, "attempt 2")

	err = Retry{Attempts: 1, Timeout: 10 * time.Millisecond}.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestImportLegacy(t *testing.T) {
	imp, gdb, mem := newImporter(t)
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "Ozark", "2016", "10.jpg"), jpegBytes(t, 8, 6))
	writeFile(t, filepath.Join(root, "Ozark", "2016", "2.JPG"), []byte("not really a jpeg"))
	writeFile(t, filepath.Join(root, "Ozark", "2016", "notes.txt"), []byte("x"))
	writeFile(t, filepath.Join(root, "Ozark", "2016", "photographer.txt"), []byte("\ufeffAnna Connolly\n"))
	writeFile(t, filepath.Join(root, "Ozark", "2016", "description.txt"), []byte("Main street."))
	writeFile(t, filepath.Join(root, "Ozark", "misc", "1.jpg"), []byte("x"))
	writeFile(t, filepath.Join(root, "Atlantis", "2015", "1.jpg"), []byte("x"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Tamms", "2018"), 0o755))
	writeFile(t, filepath.Join(root, "Cobden", "2017", "1.jpg"), []byte("x"))

	owner := testutil.CreateUser(t, gdb, "jo@example.com", "Jo", models.RolePhotographer)
	testutil.CreateProject(t, gdb, testutil.CreateTown(t, gdb, "Cobden"), owner, 2017, true, 1)

	// An object left behind by an earlier, interrupted run is reused.
	_, err := mem.Put(context.Background(), "legacy/ozark/2016/2.JPG", strings.NewReader("old"), 3, storage.PutOptions{})
	require.NoError(t, err)

	c, err := imp.ImportLegacy(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, LegacyCounters{
		Scanned:                4,
		Imported:               1,
		SkippedExistingProject: 1,
		SkippedNoPhotos:        1,
		SkippedMissingTownMeta: 1,
		PhotoUploaded:          1,
		PhotoReused:            1,
	}, c)

	var ozark models.Town
	require.NoError(t, gdb.First(&ozark, "name = ?", "Ozark").Error)
	var project models.Project
	require.NoError(t, gdb.Preload("Town").Preload("User").
		Where("town_id = ? AND year = ?", ozark.ID, 2016).First(&project).Error)
	assert.Equal(t, "Anna Connolly", project.Photographer)
	require.NotNil(t, project.Description)
	assert.Equal(t, "Main street.", *project.Description)
	assert.False(t, project.Published)
	assert.Equal(t, 2, project.PhotoCount)
	assert.Equal(t, "unclaimed@smalltown.gallery", project.User.Email)
	assert.Equal(t, models.RolePending, project.User.Role)
	assert.Equal(t, "Illinois", project.Town.State)

	var photos []models.Photo
	require.NoError(t, gdb.Where("project_id = ?", project.ID).Order("sort_order").Find(&photos).Error)
	require.Len(t, photos, 2)
	assert.Equal(t, "2.JPG", photos[0].Filename)
	assert.Equal(t, 1200, photos[0].Width)
	assert.Equal(t, "https://cdn.test/legacy/ozark/2016/2.JPG", photos[0].BlobURL)
	assert.Equal(t, "10.jpg", photos[1].Filename)
	assert.Equal(t, 1, photos[1].Order)
	assert.Equal(t, 8, photos[1].Width)
	assert.Equal(t, 6, photos[1].Height)
	assert.Equal(t, "legacy/ozark/2016/10.jpg", photos[1].Pathname)

	_, opts, err := mem.Get("legacy/ozark/2016/10.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", opts.ContentType)
	assert.Equal(t, storage.CacheControlImmutable, opts.CacheControl)

	projectsBefore := countRows(t, gdb, &models.Project{})
	photosBefore := countRows(t, gdb, &models.Photo{})

	again, err := imp.ImportLegacy(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Imported)
	assert.Equal(t, 2, again.SkippedExistingProject)
	assert.Equal(t, projectsBefore, countRows(t, gdb, &models.Project{}))
	assert.Equal(t, photosBefore, countRows(t, gdb, &models.Photo{}))
}

func TestImportLegacyPhotoFailures(t *testing.T) {
	imp, gdb, mem := newImporter(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Ozark", "2016", "1.jpg"), []byte("x"))
	writeFile(t, filepath.Join(root, "Ozark", "2016", "2.jpg"), []byte("y"))
	writeFile(t, filepath.Join(root, "Tamms", "2018", "1.jpg"), []byte("z"))

	var attempts atomic.Int32
	mem.FailPut = func(key string) error {
		if strings.HasPrefix(key, "legacy/tamms/") || key == "legacy/ozark/2016/2.jpg" {
			attempts.Add(1)
			return errors.New("bucket unavailable")
		}
		return nil
	}

	c, err := imp.ImportLegacy(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Imported)
	assert.Equal(t, 1, c.SkippedNoPhotos)
	assert.Equal(t, 1, c.PhotoUploaded)
	assert.Equal(t, 2, c.PhotoFailed)
	assert.Equal(t, int32(4), attempts.Load())

	var p models.Project
	require.NoError(t, gdb.First(&p).Error)
	assert.Equal(t, 1, p.PhotoCount)
	assert.Equal(t, int64(1), countRows(t, gdb, &models.Project{}))
}

func TestImportLegacyRequiresStorage(t *testing.T) {
	imp := New(testutil.NewDB(t), Options{}, zerolog.Nop())
	_, err := imp.ImportLegacy(context.Background(), t.TempDir())
	assert.Error(t, err)
}

type flickrFixture struct {
	srv        *httptest.Server
	brokenHits atomic.Int32
	image      []byte
}

func newFlickrFixture(t *testing.T) *flickrFixture {
	t.Helper()
	f := &flickrFixture{image: jpegBytes(t, 4, 4)}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/img/broken.jpg":
			f.brokenHits.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		case strings.HasPrefix(r.URL.Path, "/img/"):
			_, _ = w.Write(f.image)
		case r.URL.Query().Get("method") == "flickr.photosets.getList":
			fmt.Fprint(w, `{"stat":"ok","photosets":{"page":1,"pages":1,"photoset":[
				{"id":"72157","title":{"_content":"Ozark/Anna Connolly"},"photos":"4","date_create":"1262304000"},
				{"id":"66","title":{"_content":"Atlantis/Someone"},"photos":4,"date_create":"1262304000"},
				{"id":"08","title":{"_content":"Small Town Documentary Class '08"},"photos":1,"date_create":"1214870400"}]}}`)
		case r.URL.Query().Get("photoset_id") == "72157":
			fmt.Fprintf(w, `{"stat":"ok","photoset":{"page":1,"pages":1,"photo":[
				{"id":"1001","title":"Main Street","datetaken":"2010-06-01 12:30:00","dateupload":"1275400000","tags":"store","url_l":"%[1]s/img/1001.jpg","width_l":"1024","height_l":683},
				{"id":"1002","title":"","url_z":"%[1]s/img/1002.jpg"},
				{"id":"1003","url_l":"%[1]s/img/broken.jpg"},
				{"id":"1004"}]}}`, f.srv.URL)
		case r.URL.Query().Get("photoset_id") == "08":
			fmt.Fprintf(w, `{"stat":"ok","photoset":{"page":1,"pages":1,"photo":[{"id":"2001","url_o":"%s/img/2001.jpg"}]}}`, f.srv.URL)
		default:
			t.Errorf("unexpected request %s", r.URL)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *flickrFixture) client(t *testing.T) *flickr.Client {
	t.Helper()
	c, err := flickr.NewClient(flickr.Options{APIKey: "k", UserID: "u", BaseURL: f.srv.URL + "/rest/"}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestImportFlickr(t *testing.T) {
	imp, gdb, mem := newImporter(t)
	f := newFlickrFixture(t)

	sum, err := imp.ImportFlickr(context.Background(), f.client(t))
	require.NoError(t, err)
	assert.Equal(t, AlbumSummary{Albums: 3, SkippedSets: 1, Imported: 3, Skipped: 4, Failed: 2}, sum)
	assert.Equal(t, int32(2), f.brokenHits.Load())

	var project models.Project
	require.NoError(t, gdb.Preload("User").Where("photographer = ?", "Anna Connolly").First(&project).Error)
	assert.Equal(t, 2010, project.Year)
	assert.False(t, project.Published)
	assert.Equal(t, 2, project.PhotoCount)
	assert.Equal(t, "legacy+anna-connolly@smalltown.gallery", project.User.Email)
	assert.Equal(t, "Anna Connolly", project.User.Name)

	var photos []models.Photo
	require.NoError(t, gdb.Where("project_id = ?", project.ID).Order("sort_order").Find(&photos).Error)
	require.Len(t, photos, 2)

	first := photos[0]
	assert.Equal(t, "1001.jpg", first.Filename)
	assert.Equal(t, project.UserID, first.UserID)
	assert.Equal(t, storage.FlickrKey(project.ID, "1001"), first.Pathname)
	assert.Equal(t, 1024, first.Width)
	assert.Equal(t, 683, first.Height)
	require.NotNil(t, first.Title)
	assert.Equal(t, "Main Street", *first.Title)
	require.NotNil(t, first.DateTaken)
	assert.Equal(t, 2010, first.DateTaken.Year())

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(first.Metadata, &meta))
	assert.Equal(t, "flickr", meta["source"])
	assert.Equal(t, "72157", meta["flickrSetId"])
	assert.Equal(t, "1001", meta["flickrId"])
	assert.Equal(t, "l", meta["flickrSize"])
	assert.Equal(t, "store", meta["tags"])

	second := photos[1]
	assert.Equal(t, 1, second.Order)
	assert.Nil(t, second.Title)
	assert.Equal(t, 1200, second.Width)
	assert.Equal(t, 800, second.Height)

	var class models.Project
	require.NoError(t, gdb.Preload("Town").Where("photographer = ?", "Small Town Documentary Class '08").First(&class).Error)
	assert.Equal(t, "Carbondale", class.Town.Name)
	assert.Equal(t, 2008, class.Year)

	puts := mem.Puts()
	again, err := imp.ImportFlickr(context.Background(), f.client(t))
	require.NoError(t, err)
	assert.Equal(t, AlbumSummary{Albums: 3, SkippedSets: 1, Imported: 0, Skipped: 7, Failed: 2}, again)
	assert.Equal(t, puts, mem.Puts())
	assert.Equal(t, int64(3), countRows(t, gdb, &models.Photo{}))
}

func TestImportFlickrLocal(t *testing.T) {
	imp, gdb, _ := newImporter(t)
	root := t.TempDir()
	img := jpegBytes(t, 5, 3)

	writeFile(t, filepath.Join(root, "a-ozark", "album.json"), []byte(`{
		"photoset_id": "72157", "title": "Ozark/Anna Connolly", "year_guess": 2011,
		"photos": [{"id": "101", "title": "Barn", "datetaken": "2011-05-02 10:00:00"}, {"id": 102}, {"id": "103"}]}`))
	writeFile(t, filepath.Join(root, "a-ozark", "101.jpg"), img)
	writeFile(t, filepath.Join(root, "a-ozark", "103.jpg"), img)
	writeFile(t, filepath.Join(root, "b-cobden", "album.json"), []byte(`{
		"photoset_id": "9", "title": "Cobden/Ben", "year_guess": null, "photos": [{"id": "1"}, {"id": "2"}]}`))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "c-empty"), 0o755))

	anna := testutil.CreateUser(t, gdb, "anna@example.com", "Anna Connolly", models.RolePhotographer)
	existing := testutil.CreateProject(t, gdb, testutil.CreateTown(t, gdb, "Ozark"), anna, 2011, true, 0)
	require.NoError(t, gdb.Create(&models.Photo{
		ProjectID: existing.ID,
		UserID:    anna.ID,
		Filename:  "renamed.jpg",
		BlobURL:   "https://cdn.test/renamed.jpg",
		Metadata:  datatypes.JSON(`{"flickrId":"103"}`),
	}).Error)

	sum, err := imp.ImportFlickrLocal(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, AlbumSummary{Albums: 3, SkippedSets: 2, Imported: 1, Skipped: 3, Failed: 1}, sum)

	var photo models.Photo
	require.NoError(t, gdb.Where("filename = ?", "101.jpg").First(&photo).Error)
	assert.Equal(t, existing.ID, photo.ProjectID)
	assert.Equal(t, anna.ID, photo.UserID)
	assert.Equal(t, 1, photo.Order)
	assert.Equal(t, 5, photo.Width)
	assert.Equal(t, 3, photo.Height)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(photo.Metadata, &meta))
	assert.Equal(t, "local-full-albums", meta["sourceType"])
	assert.Equal(t, "Barn", meta["flickrTitle"])
	assert.Nil(t, meta["tags"])

	var p models.Project
	require.NoError(t, gdb.First(&p, "id = ?", existing.ID).Error)
	assert.Equal(t, 2, p.PhotoCount)

	again, err := imp.ImportFlickrLocal(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Imported)
	assert.Equal(t, int64(2), countRows(t, gdb, &models.Photo{}))
}

type migrateFixture struct {
	imp   *Importer
	db    *gorm.DB
	mem   *storage.Memory
	srv   *httptest.Server
	state string
}

func newMigrateFixture(t *testing.T) *migrateFixture {
	t.Helper()
	imp, gdb, mem := newImporter(t)
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/src/") {
			fmt.Fprint(w, "bytes:"+r.URL.Path)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	owner := testutil.CreateUser(t, gdb, "jo@example.com", "Jo", models.RolePhotographer)
	project := testutil.CreateProject(t, gdb, testutil.CreateTown(t, gdb, "Ozark"), owner, 2016, true, 0)
	rows := []models.Photo{
		{ID: "m1", Filename: "m1.jpg", BlobURL: srv.URL + "/src/m1.jpg", Pathname: "projects/x/m1.jpg"},
		{ID: "m2", Filename: "m2.png", BlobURL: srv.URL + "/src/m2.png", Pathname: "projects/x/m2.png"},
		{ID: "m3", Filename: "m3.jpg", BlobURL: "https://cdn.test/projects/x/m3.jpg", Pathname: "projects/x/m3.jpg"},
		{ID: "m4", Filename: "1.jpg", BlobURL: "/photos/Ozark/2016/1.jpg", Pathname: "/srv/towns/Ozark/2016/1.jpg"},
		{ID: "m5", Filename: "m5.jpg", BlobURL: srv.URL + "/missing.jpg", Pathname: "projects/x/m5.jpg"},
		{ID: "m6", Filename: "m6.jpg", BlobURL: srv.URL + "/src/m6.jpg", Pathname: ""},
	}
	for i := range rows {
		rows[i].ProjectID = project.ID
		rows[i].UserID = owner.ID
		require.NoError(t, gdb.Create(&rows[i]).Error)
	}
	_, err := mem.Put(context.Background(), "projects/x/m2.png", strings.NewReader("already"), 7, storage.PutOptions{})
	require.NoError(t, err)

	return &migrateFixture{imp: imp, db: gdb, mem: mem, srv: srv, state: filepath.Join(t.TempDir(), "state.json")}
}

func (f *migrateFixture) run(t *testing.T) MigrateStats {
	t.Helper()
	stats, err := f.imp.MigrateStorage(context.Background(), MigrateOptions{
		StateFile:  f.state,
		BatchSize:  2,
		Parallel:   2,
		HTTPClient: f.srv.Client(),
	})
	require.NoError(t, err)
	return stats
}

func (f *migrateFixture) photo(t *testing.T, id string) models.Photo {
	t.Helper()
	var p models.Photo
	require.NoError(t, f.db.First(&p, "id = ?", id).Error)
	return p
}

func TestMigrateStorage(t *testing.T) {
	f := newMigrateFixture(t)

	stats := f.run(t)
	assert.Equal(t, MigrateStats{Scanned: 3, Migrated: 1, UpdatedOnly: 1, Failed: 1}, stats)

	data, opts, err := f.mem.Get("projects/x/m1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "bytes:/src/m1.jpg", string(data))
	assert.Equal(t, "image/jpeg", opts.ContentType)
	assert.Equal(t, "https://cdn.test/projects/x/m1.jpg", f.photo(t, "m1").BlobURL)

	data, _, err = f.mem.Get("projects/x/m2.png")
	require.NoError(t, err)
	assert.Equal(t, "already", string(data))
	assert.Equal(t, "https://cdn.test/projects/x/m2.png", f.photo(t, "m2").BlobURL)

	assert.Equal(t, "/photos/Ozark/2016/1.jpg", f.photo(t, "m4").BlobURL)
	assert.Equal(t, f.srv.URL+"/missing.jpg", f.photo(t, "m5").BlobURL)
	assert.True(t, strings.HasPrefix(f.photo(t, "m6").BlobURL, f.srv.URL))

	_, err = os.Stat(f.state)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// Only the failed photo is still a candidate.
	again := f.run(t)
	assert.Equal(t, MigrateStats{Scanned: 1, Failed: 1}, again)
}

func TestMigrateStorageResumesFromState(t *testing.T) {
	f := newMigrateFixture(t)
	require.NoError(t, os.WriteFile(f.state, []byte(`{"cursor":"m1"}`), 0o644))

	stats := f.run(t)
	assert.Equal(t, MigrateStats{Scanned: 2, UpdatedOnly: 1, Failed: 1}, stats)
	assert.True(t, strings.HasPrefix(f.photo(t, "m1").BlobURL, f.srv.URL))
}
