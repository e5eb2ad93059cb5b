package gallery

import (
	"context"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/towns"
)

const DefaultPreviewCount = 20

// Service answers the public, read-only gallery queries. Data-source failures are logged
// and turn into empty results.
type Service struct {
	db      *gorm.DB
	catalog *towns.Catalog
	cache   *cache.Cache
	log     zerolog.Logger
}

func NewService(db *gorm.DB, catalog *towns.Catalog, ttl time.Duration, log zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		db:      db,
		catalog: catalog,
		cache:   cache.New(ttl, 2*ttl),
		log:     log,
	}
}

// Invalidate drops every cached read. Mutating services call it after commit.
func (s *Service) Invalidate() {
	s.cache.Flush()
}

func cached[T any](s *Service, key string, load func() (T, error)) (T, error) {
	if v, ok := s.cache.Get(key); ok {
		return v.(T), nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	s.cache.Set(key, v, cache.DefaultExpiration)
	return v, nil
}

func orderedPhotos(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC").Order("created_at ASC")
}

func (s *Service) published(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Project{}).Where("published = ?", true).Preload("Town")
}

func toPhoto(p models.Photo) GalleryPhoto {
	return GalleryPhoto{
		ID:       p.ID,
		Filename: p.Filename,
		Src:      p.BlobURL,
		Width:    p.Width,
		Height:   p.Height,
		Title:    p.Title,
		Caption:  p.Caption,
	}
}

// Gallery resolves a town slug and year to the published gallery. When several
// photographers covered the same town and year the earliest project wins.
func (s *Service) Gallery(ctx context.Context, townSlug string, year int) (*GalleryData, bool) {
	data, err := cached(s, "gallery:"+townSlug+":"+strconv.Itoa(year), func() (*GalleryData, error) {
		var projects []models.Project
		err := s.published(ctx).
			Where("year = ?", year).
			Preload("Photos", orderedPhotos).
			Order("created_at ASC").
			Find(&projects).Error
		if err != nil {
			return nil, err
		}
		for _, p := range projects {
			if towns.Slugify(p.Town.Name) != townSlug {
				continue
			}
			if len(p.Photos) == 0 {
				continue
			}
			g := &GalleryData{
				ProjectID:        p.ID,
				TownName:         p.Town.Name,
				TownSlug:         townSlug,
				Year:             year,
				Photographer:     p.Photographer,
				PhotographerSlug: towns.Slugify(p.Photographer),
				Description:      p.Description,
				Photos:           make([]GalleryPhoto, 0, len(p.Photos)),
			}
			for _, ph := range p.Photos {
				g.Photos = append(g.Photos, toPhoto(ph))
			}
			return g, nil
		}
		return nil, nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("town", townSlug).Int("year", year).Msg("gallery lookup failed")
		return nil, false
	}
	return data, data != nil
}

func (s *Service) photoCounts(ctx context.Context, ids []string) (map[string]int, error) {
	counts := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	var rows []struct {
		ProjectID string
		N         int
	}
	err := s.db.WithContext(ctx).Model(&models.Photo{}).
		Select("project_id, COUNT(*) AS n").
		Where("project_id IN ?", ids).
		Group("project_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.ProjectID] = r.N
	}
	return counts, nil
}

// TownGalleries lists the town's published projects, newest year first.
func (s *Service) TownGalleries(ctx context.Context, townSlug string) []TownGalleryOption {
	out, err := cached(s, "town:"+townSlug, func() ([]TownGalleryOption, error) {
		var projects []models.Project
		if err := s.published(ctx).Order("year DESC").Order("created_at DESC").Find(&projects).Error; err != nil {
			return nil, err
		}
		var matched []models.Project
		ids := make([]string, 0)
		for _, p := range projects {
			if towns.Slugify(p.Town.Name) == townSlug {
				matched = append(matched, p)
				ids = append(ids, p.ID)
			}
		}
		counts, err := s.photoCounts(ctx, ids)
		if err != nil {
			return nil, err
		}
		opts := make([]TownGalleryOption, 0, len(matched))
		for _, p := range matched {
			opts = append(opts, TownGalleryOption{
				ID:           p.ID,
				TownName:     p.Town.Name,
				TownSlug:     townSlug,
				Year:         p.Year,
				Photographer: p.Photographer,
				PhotoCount:   counts[p.ID],
			})
		}
		return opts, nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("town", townSlug).Msg("town galleries lookup failed")
		return []TownGalleryOption{}
	}
	return out
}

// Town combines the canonical entry (if any) with the published galleries.
func (s *Service) Town(ctx context.Context, townSlug string) (*TownDetail, bool) {
	galleries := s.TownGalleries(ctx, townSlug)
	detail := &TownDetail{Slug: townSlug, Galleries: galleries}
	if canon, ok := s.catalog.BySlug(townSlug); ok {
		detail.Name, detail.Latitude, detail.Longitude = canon.Name, canon.Lat, canon.Lng
	} else if len(galleries) > 0 {
		detail.Name = galleries[0].TownName
	} else {
		return nil, false
	}
	return detail, true
}

func (s *Service) previewPool(ctx context.Context) ([]GalleryPreview, error) {
	return cached(s, "previews", func() ([]GalleryPreview, error) {
		var projects []models.Project
		if err := s.published(ctx).Preload("Photos", orderedPhotos).Find(&projects).Error; err != nil {
			return nil, err
		}
		var pool []GalleryPreview
		for _, p := range projects {
			for _, ph := range p.Photos {
				pool = append(pool, GalleryPreview{
					TownName:     p.Town.Name,
					TownSlug:     towns.Slugify(p.Town.Name),
					Year:         p.Year,
					Photographer: p.Photographer,
					Photo:        toPhoto(ph),
				})
			}
		}
		return pool, nil
	})
}

func sample(pool []GalleryPreview, count int, keep func(GalleryPreview) bool) []GalleryPreview {
	if count <= 0 {
		count = DefaultPreviewCount
	}
	picked := make([]GalleryPreview, 0, len(pool))
	for _, p := range pool {
		if keep == nil || keep(p) {
			picked = append(picked, p)
		}
	}
	rand.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	if len(picked) > count {
		picked = picked[:count]
	}
	return picked
}

// RandomPreviews draws photos from every published project.
func (s *Service) RandomPreviews(ctx context.Context, count int) []GalleryPreview {
	pool, err := s.previewPool(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("preview lookup failed")
		return []GalleryPreview{}
	}
	return sample(pool, count, nil)
}

func (s *Service) TownPreviews(ctx context.Context, townSlug string, count int) []GalleryPreview {
	pool, err := s.previewPool(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("town", townSlug).Msg("town preview lookup failed")
		return []GalleryPreview{}
	}
	return sample(pool, count, func(p GalleryPreview) bool { return p.TownSlug == townSlug })
}

// GalleryParams lists each distinct (town slug, year) with a published project.
func (s *Service) GalleryParams(ctx context.Context) []GalleryParam {
	out, err := cached(s, "params", func() ([]GalleryParam, error) {
		var projects []models.Project
		if err := s.published(ctx).Order("year ASC").Find(&projects).Error; err != nil {
			return nil, err
		}
		seen := map[string]bool{}
		params := make([]GalleryParam, 0, len(projects))
		for _, p := range projects {
			param := GalleryParam{Town: towns.Slugify(p.Town.Name), Year: strconv.Itoa(p.Year)}
			if key := param.Town + "-" + param.Year; !seen[key] {
				seen[key] = true
				params = append(params, param)
			}
		}
		return params, nil
	})
	if err != nil {
		s.log.Error().Err(err).Msg("gallery params lookup failed")
		return []GalleryParam{}
	}
	return out
}

// TownParams lists sorted distinct town slugs with a published project.
func (s *Service) TownParams(ctx context.Context) []string {
	params := s.GalleryParams(ctx)
	seen := map[string]bool{}
	slugs := make([]string, 0, len(params))
	for _, p := range params {
		if !seen[p.Town] {
			seen[p.Town] = true
			slugs = append(slugs, p.Town)
		}
	}
	sort.Strings(slugs)
	return slugs
}

// MapTowns is the canonical list with hasPhotos derived from published projects.
func (s *Service) MapTowns(ctx context.Context) []MapTown {
	out, err := cached(s, "map", func() ([]MapTown, error) {
		var projects []models.Project
		if err := s.published(ctx).Order("year DESC").Order("created_at ASC").Find(&projects).Error; err != nil {
			return nil, err
		}
		byTown := map[string][]MapYear{}
		for _, p := range projects {
			slug := towns.Slugify(p.Town.Name)
			byTown[slug] = append(byTown[slug], MapYear{Year: p.Year, Photographer: p.Photographer})
		}
		list := make([]MapTown, 0, len(s.catalog.All()))
		for _, t := range s.catalog.All() {
			slug := towns.Slugify(t.Name)
			years := byTown[slug]
			list = append(list, MapTown{
				Name:      t.Name,
				Slug:      slug,
				Lat:       t.Lat,
				Lng:       t.Lng,
				HasPhotos: len(years) > 0,
				Years:     years,
			})
		}
		return list, nil
	})
	if err != nil {
		s.log.Error().Err(err).Msg("map towns lookup failed")
		return []MapTown{}
	}
	return out
}

// Photographer resolves an account holder first, then falls back to projects credited by name.
func (s *Service) Photographer(ctx context.Context, slug string) (*PhotographerPage, bool) {
	page, err := cached(s, "photographer:"+slug, func() (*PhotographerPage, error) {
		var users []models.User
		err := s.db.WithContext(ctx).
			Where("role <> ?", models.RolePending).
			Where("id IN (?)", s.db.Model(&models.Project{}).Select("user_id").Where("published = ?", true)).
			Find(&users).Error
		if err != nil {
			return nil, err
		}

		var projects []models.Project
		for _, u := range users {
			if towns.Slugify(u.Name) != slug {
				continue
			}
			if err := s.published(ctx).Where("user_id = ?", u.ID).Preload("Photos", orderedPhotos).Find(&projects).Error; err != nil {
				return nil, err
			}
			page := &PhotographerPage{
				Name:            u.Name,
				Slug:            slug,
				HasAccount:      true,
				Bio:             u.Bio,
				Website:         u.Website,
				Location:        u.Location,
				ProfilePhotoURL: u.ProfilePhotoURL,
			}
			page.Projects = photographerProjects(projects)
			return page, nil
		}

		if err := s.published(ctx).Preload("Photos", orderedPhotos).Find(&projects).Error; err != nil {
			return nil, err
		}
		var credited []models.Project
		for _, p := range projects {
			if towns.Slugify(p.Photographer) == slug {
				credited = append(credited, p)
			}
		}
		if len(credited) == 0 {
			return nil, nil
		}
		return &PhotographerPage{
			Name:     credited[0].Photographer,
			Slug:     slug,
			Projects: photographerProjects(credited),
		}, nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("photographer", slug).Msg("photographer lookup failed")
		return nil, false
	}
	return page, page != nil
}

// photographerProjects orders by year desc then town name.
func photographerProjects(projects []models.Project) []PhotographerProject {
	sort.SliceStable(projects, func(i, j int) bool {
		if projects[i].Year != projects[j].Year {
			return projects[i].Year > projects[j].Year
		}
		return strings.ToLower(projects[i].Town.Name) < strings.ToLower(projects[j].Town.Name)
	})
	out := make([]PhotographerProject, 0, len(projects))
	for _, p := range projects {
		pp := PhotographerProject{
			ID:         p.ID,
			TownName:   p.Town.Name,
			TownSlug:   towns.Slugify(p.Town.Name),
			Year:       p.Year,
			PhotoCount: len(p.Photos),
		}
		if len(p.Photos) > 0 {
			pp.CoverSrc = p.Photos[0].BlobURL
		}
		out = append(out, pp)
	}
	return out
}
