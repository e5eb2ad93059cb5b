// Package flickr is a small client for the Flickr REST API covering the calls the album
// importer needs.
package flickr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// BaseURL is the Flickr REST endpoint.
	BaseURL = "https://www.flickr.com/services/rest/"

	// PageMax is the largest page Flickr serves for set listings.
	PageMax = 500

	photoExtras = "date_taken,date_upload,url_o,url_k,url_h,url_l,url_c,url_z,o_dims,tags"
)

var ErrMissingAPIKey = errors.New("FLICKR_API_KEY is not set")

// APIError is a well-formed response with stat != "ok".
type APIError struct {
	Method  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flickr %s: %s", e.Method, e.Message)
}

// Client talks to one user's public albums. Every request, downloads included, waits on
// a shared limiter.
type Client struct {
	apiKey     string
	userID     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

type Options struct {
	APIKey string
	UserID string
	// RequestsPerSecond <= 0 disables pacing.
	RequestsPerSecond float64
	BaseURL           string
	HTTPClient        *http.Client
}

func NewClient(opts Options, log zerolog.Logger) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		apiKey:     opts.APIKey,
		userID:     opts.UserID,
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		log:        log,
	}
	if c.baseURL == "" {
		c.baseURL = BaseURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c, nil
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out interface{}) error {
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("method", method)
	q.Set("api_key", c.apiKey)
	q.Set("user_id", c.userID)
	q.Set("format", "json")
	q.Set("nojsoncallback", "1")

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("flickr %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("flickr %s: status %d", method, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read flickr %s: %w", method, err)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode flickr %s: %w", method, err)
	}
	if env.Stat != "" && env.Stat != "ok" {
		msg := env.Message
		if msg == "" {
			msg = "unknown"
		}
		return &APIError{Method: method, Message: msg}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode flickr %s: %w", method, err)
	}
	c.log.Debug().Str("method", method).Str("page", q.Get("page")).Dur("took", time.Since(start)).Msg("flickr call")
	return nil
}

// PhotoSets lists every album of the configured user.
func (c *Client) PhotoSets(ctx context.Context) ([]PhotoSet, error) {
	var all []PhotoSet
	for page := 1; ; page++ {
		var res setListResponse
		params := url.Values{"per_page": {strconv.Itoa(PageMax)}, "page": {strconv.Itoa(page)}}
		if err := c.call(ctx, "flickr.photosets.getList", params, &res); err != nil {
			return nil, err
		}
		all = append(all, res.PhotoSets.PhotoSet...)
		if page >= int(res.PhotoSets.Pages) || len(res.PhotoSets.PhotoSet) == 0 {
			return all, nil
		}
	}
}

// SetPhotos lists the photos of one album with size URLs and dates.
func (c *Client) SetPhotos(ctx context.Context, setID string) ([]Photo, error) {
	var all []Photo
	for page := 1; ; page++ {
		var res setPhotosResponse
		params := url.Values{
			"photoset_id": {setID},
			"extras":      {photoExtras},
			"per_page":    {strconv.Itoa(PageMax)},
			"page":        {strconv.Itoa(page)},
		}
		if err := c.call(ctx, "flickr.photosets.getPhotos", params, &res); err != nil {
			return nil, err
		}
		all = append(all, res.PhotoSet.Photo...)
		if page >= int(res.PhotoSet.Pages) || len(res.PhotoSet.Photo) == 0 {
			return all, nil
		}
	}
}

// Download fetches a photo's bytes.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Size is the chosen rendition of a photo.
type Size struct {
	Key    string
	URL    string
	Width  int
	Height int
}

const (
	fallbackWidth  = 1200
	fallbackHeight = 800
)

// BestSize picks the largest available rendition: o, k, h, l, c, then z. Missing
// dimensions fall back to 1200x800.
func BestSize(p Photo) (Size, bool) {
	candidates := []struct {
		key  string
		url  string
		w, h flexInt
	}{
		{"o", p.URLO, p.WidthO, p.HeightO},
		{"k", p.URLK, p.WidthK, p.HeightK},
		{"h", p.URLH, p.WidthH, p.HeightH},
		{"l", p.URLL, p.WidthL, p.HeightL},
		{"c", p.URLC, p.WidthC, p.HeightC},
		{"z", p.URLZ, p.WidthZ, p.HeightZ},
	}
	for _, c := range candidates {
		if c.url == "" {
			continue
		}
		s := Size{Key: c.key, URL: c.url, Width: int(c.w), Height: int(c.h)}
		if s.Width <= 0 {
			s.Width = fallbackWidth
		}
		if s.Height <= 0 {
			s.Height = fallbackHeight
		}
		return s, true
	}
	return Size{}, false
}

// ParseDateTaken reads Flickr's "2006-01-02 15:04:05" as UTC.
func ParseDateTaken(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return nil
	}
	return &t
}

// YearFromUnix is the UTC year of a unix-seconds string; now's year when it is unusable.
func YearFromUnix(s string, now time.Time) int {
	secs, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || secs <= 0 {
		return now.UTC().Year()
	}
	return time.Unix(secs, 0).UTC().Year()
}
