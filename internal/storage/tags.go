package storage

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"photohub/internal/models"
)

// PopularTags seeds the catalog the first time it is read.
var PopularTags = []string{
	"#love", "#instagood", "#fashion", "#instagram", "#photooftheday",
	"#art", "#photography", "#beautiful", "#nature", "#picoftheday",
	"#travel", "#happy", "#cute", "#instadaily", "#style",
	"#tbt", "#repost", "#followme", "#summer", "#reels",
	"#like4like", "#beauty", "#fitness", "#food", "#instalike",
}

const (
	seedPopularityMin    = 100
	seedPopularitySpan   = 500
	defaultTagPopularity = 1
)

type TagRepository struct {
	tags   *Collection[models.Tag]
	photos *PhotoRepository

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewTagRepository(tags *Collection[models.Tag], photos *PhotoRepository) *TagRepository {
	return &TagRepository{
		tags:   tags,
		photos: photos,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRand replaces the popularity source used by the bootstrap.
func (r *TagRepository) WithRand(rnd *rand.Rand) *TagRepository {
	r.rndMu.Lock()
	r.rnd = rnd
	r.rndMu.Unlock()
	return r
}

// Bootstrap seeds the catalog from PopularTags if no catalog file exists.
func (r *TagRepository) Bootstrap(ctx context.Context) error {
	_, err := r.tags.Seed(ctx, func() []models.Tag {
		r.rndMu.Lock()
		defer r.rndMu.Unlock()

		seeded := make([]models.Tag, len(PopularTags))
		for i, name := range PopularTags {
			seeded[i] = models.Tag{
				ID:         i,
				Name:       name,
				Popularity: seedPopularityMin + r.rnd.Intn(seedPopularitySpan),
			}
		}
		return seeded
	})
	return err
}

func (r *TagRepository) ListCatalog(ctx context.Context) ([]models.Tag, error) {
	if err := r.Bootstrap(ctx); err != nil {
		return nil, err
	}
	return r.tags.Load(ctx)
}

// RawNames lists catalog tag names only.
func (r *TagRepository) RawNames(ctx context.Context) ([]string, error) {
	tags, err := r.ListCatalog(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names, nil
}

func (r *TagRepository) GetCatalogTag(ctx context.Context, id int) (models.Tag, error) {
	const op = "storage.TagRepository.GetCatalogTag"

	tags, err := r.ListCatalog(ctx)
	if err != nil {
		return models.Tag{}, err
	}
	for _, t := range tags {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Tag{}, fmt.Errorf("%s: %w: tag %d", op, models.ErrNotFound, id)
}

// AddCatalogTag registers a new tag. popularity defaults to 1 when nil.
func (r *TagRepository) AddCatalogTag(ctx context.Context, name string, popularity *int) (models.Tag, error) {
	const op = "storage.TagRepository.AddCatalogTag"

	switch {
	case name == "":
		return models.Tag{}, fmt.Errorf("%s: %w: name is required", op, models.ErrValidation)
	case !strings.HasPrefix(name, "#"):
		return models.Tag{}, fmt.Errorf("%s: %w: tag name must start with #", op, models.ErrValidation)
	case popularity != nil && *popularity < 0:
		return models.Tag{}, fmt.Errorf("%s: %w: popularity must not be negative", op, models.ErrValidation)
	}

	if err := r.Bootstrap(ctx); err != nil {
		return models.Tag{}, err
	}

	var created models.Tag
	err := r.tags.Update(ctx, func(tags []models.Tag) ([]models.Tag, error) {
		next := 0
		for _, t := range tags {
			if strings.EqualFold(t.Name, name) {
				return nil, fmt.Errorf("%s: %w: tag %s already exists", op, models.ErrConflict, name)
			}
			if t.ID+1 > next {
				next = t.ID + 1
			}
		}
		created = models.Tag{ID: next, Name: name, Popularity: defaultTagPopularity}
		if popularity != nil && *popularity > 0 {
			created.Popularity = *popularity
		}
		return append(tags, created), nil
	})
	if err != nil {
		return models.Tag{}, err
	}
	return created, nil
}

// AddTagToPhoto attaches one tag, failing if the photo already carries it.
func (r *TagRepository) AddTagToPhoto(ctx context.Context, photoID int64, tagName string) (models.Photo, error) {
	const op = "storage.TagRepository.AddTagToPhoto"

	name := NormalizeTagName(tagName)
	if name == "#" {
		return models.Photo{}, fmt.Errorf("%s: %w: tag name is required", op, models.ErrValidation)
	}
	return r.photos.Modify(ctx, photoID, func(p *models.Photo) error {
		if p.HasTag(name) {
			return fmt.Errorf("%s: %w: tag %s already exists on photo %d", op, models.ErrConflict, name, photoID)
		}
		p.Tags = append(p.Tags, models.PhotoTag{Name: name})
		return nil
	})
}

// AddTagsToPhoto attaches every name the photo does not carry yet; names
// already present are skipped.
func (r *TagRepository) AddTagsToPhoto(ctx context.Context, photoID int64, tagNames []string) (models.Photo, error) {
	return r.photos.Modify(ctx, photoID, func(p *models.Photo) error {
		for _, raw := range tagNames {
			name := NormalizeTagName(raw)
			if name == "#" || p.HasTag(name) {
				continue
			}
			p.Tags = append(p.Tags, models.PhotoTag{Name: name})
		}
		return nil
	})
}

func (r *TagRepository) GetPhotoTags(ctx context.Context, photoID int64) (models.PhotoTags, error) {
	p, err := r.photos.GetByID(ctx, photoID)
	if err != nil {
		return models.PhotoTags{}, err
	}
	tags := p.Tags
	if tags == nil {
		tags = []models.PhotoTag{}
	}
	return models.PhotoTags{ID: p.ID, Tags: tags}, nil
}

// NormalizeTagName trims the name and prefixes it with # when missing.
func NormalizeTagName(name string) string {
	name = strings.TrimSpace(name)
	if !strings.HasPrefix(name, "#") {
		name = "#" + name
	}
	return name
}
