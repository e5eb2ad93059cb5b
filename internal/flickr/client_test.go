package flickr

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{APIKey: "key", UserID: "30563993@N07", BaseURL: srv.URL + "/rest/"}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestPhotoSetsPaginates(t *testing.T) {
	var calls int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		q := r.URL.Query()
		assert.Equal(t, "flickr.photosets.getList", q.Get("method"))
		assert.Equal(t, "key", q.Get("api_key"))
		assert.Equal(t, "30563993@N07", q.Get("user_id"))
		assert.Equal(t, "1", q.Get("nojsoncallback"))
		switch q.Get("page") {
		case "1":
			fmt.Fprint(w, `{"stat":"ok","photosets":{"page":1,"pages":2,"photoset":[{"id":"1","title":{"_content":"Ozark/Anna Connolly"},"photos":"3","date_create":"1262304000"}]}}`)
		default:
			fmt.Fprint(w, `{"stat":"ok","photosets":{"page":2,"pages":2,"photoset":[{"id":"2","title":{"_content":"Thebes"},"photos":5,"date_create":"0"}]}}`)
		}
	})

	sets, err := c.PhotoSets(context.Background())
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "Ozark/Anna Connolly", sets[0].TitleText())
	assert.Equal(t, 3, sets[0].PhotoCount())
	assert.Equal(t, 5, sets[1].PhotoCount())
}

func TestAPIErrorSurfaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stat":"fail","code":100,"message":"Invalid API Key"}`)
	})
	_, err := c.SetPhotos(context.Background(), "1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid API Key", apiErr.Message)
}

func TestHTTPStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.PhotoSets(context.Background())
	assert.ErrorContains(t, err, "status 502")
}

func TestSetPhotosAndDownload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/img/9.jpg" {
			fmt.Fprint(w, "jpeg-bytes")
			return
		}
		assert.Equal(t, "42", r.URL.Query().Get("photoset_id"))
		assert.Contains(t, r.URL.Query().Get("extras"), "url_o")
		fmt.Fprintf(w, `{"stat":"ok","photoset":{"page":1,"pages":1,"photo":[{"id":"9","title":"Main St","datetaken":"2010-06-01 12:30:00","url_l":"http://%s/img/9.jpg","width_l":"1024","height_l":683}]}}`, r.Host)
	})

	photos, err := c.SetPhotos(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, photos, 1)

	size, ok := BestSize(photos[0])
	require.True(t, ok)
	assert.Equal(t, "l", size.Key)
	assert.Equal(t, 1024, size.Width)
	assert.Equal(t, 683, size.Height)

	data, err := c.Download(context.Background(), size.URL)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestBestSizePrefersOriginalAndDefaults(t *testing.T) {
	s, ok := BestSize(Photo{URLO: "o", URLZ: "z"})
	require.True(t, ok)
	assert.Equal(t, Size{Key: "o", URL: "o", Width: 1200, Height: 800}, s)

	_, ok = BestSize(Photo{})
	assert.False(t, ok)
}

func TestDates(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 2010, YearFromUnix("1262304000", now))
	assert.Equal(t, 2024, YearFromUnix("", now))
	assert.Equal(t, 2024, YearFromUnix("0", now))

	d := ParseDateTaken("2010-06-01 12:30:00")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2010, 6, 1, 12, 30, 0, 0, time.UTC), *d)
	assert.Nil(t, ParseDateTaken("June"))
}

func TestMissingKey(t *testing.T) {
	_, err := NewClient(Options{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
