package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"photohub/internal/models"
)

type CreatePhoto struct {
	// ID is assigned by the repository when zero.
	ID           int64
	Album        string
	OriginalName string
	URL          string
}

type PhotoRepository struct {
	photos *Collection[models.Photo]
	now    func() time.Time
}

func NewPhotoRepository(photos *Collection[models.Photo]) *PhotoRepository {
	return &PhotoRepository{photos: photos, now: time.Now}
}

func (r *PhotoRepository) Create(ctx context.Context, in CreatePhoto) (models.Photo, error) {
	const op = "storage.PhotoRepository.Create"

	switch {
	case strings.TrimSpace(in.Album) == "":
		return models.Photo{}, fmt.Errorf("%s: %w: album is required", op, models.ErrValidation)
	case strings.TrimSpace(in.OriginalName) == "":
		return models.Photo{}, fmt.Errorf("%s: %w: originalName is required", op, models.ErrValidation)
	case strings.TrimSpace(in.URL) == "":
		return models.Photo{}, fmt.Errorf("%s: %w: url is required", op, models.ErrValidation)
	}

	var created models.Photo
	err := r.photos.Update(ctx, func(photos []models.Photo) ([]models.Photo, error) {
		now := r.now()
		id := in.ID
		if id == 0 {
			id = nextPhotoID(photos, now)
		} else if indexOfPhoto(photos, id) >= 0 {
			return nil, fmt.Errorf("%s: %w: photo %d already exists", op, models.ErrConflict, id)
		}
		created = models.NewPhoto(id, in.Album, in.OriginalName, in.URL, now)
		return append(photos, created), nil
	})
	if err != nil {
		return models.Photo{}, err
	}
	return created, nil
}

// GetAll returns photos in insertion order.
func (r *PhotoRepository) GetAll(ctx context.Context) ([]models.Photo, error) {
	return r.photos.Load(ctx)
}

func (r *PhotoRepository) GetByID(ctx context.Context, id int64) (models.Photo, error) {
	const op = "storage.PhotoRepository.GetByID"

	var found models.Photo
	err := r.photos.View(ctx, func(photos []models.Photo) error {
		i := indexOfPhoto(photos, id)
		if i < 0 {
			return fmt.Errorf("%s: %w: photo %d", op, models.ErrNotFound, id)
		}
		found = photos[i]
		return nil
	})
	return found, err
}

// Delete removes the record and returns its asset url. Removing the asset
// itself is the caller's job.
func (r *PhotoRepository) Delete(ctx context.Context, id int64) (string, error) {
	const op = "storage.PhotoRepository.Delete"

	var url string
	err := r.photos.Update(ctx, func(photos []models.Photo) ([]models.Photo, error) {
		i := indexOfPhoto(photos, id)
		if i < 0 {
			return nil, fmt.Errorf("%s: %w: photo %d", op, models.ErrNotFound, id)
		}
		url = photos[i].URL
		return append(photos[:i], photos[i+1:]...), nil
	})
	return url, err
}

// AppendHistory records an applied operation and makes it the lastChange.
func (r *PhotoRepository) AppendHistory(ctx context.Context, id int64, status, derivedURL string) (models.Photo, error) {
	const op = "storage.PhotoRepository.AppendHistory"

	if strings.TrimSpace(status) == "" {
		return models.Photo{}, fmt.Errorf("%s: %w: status is required", op, models.ErrValidation)
	}
	return r.Modify(ctx, id, func(p *models.Photo) error {
		p.LastChange = status
		p.History = append(p.History, models.HistoryEntry{
			Status:    status,
			Timestamp: r.now().UnixMilli(),
			URL:       derivedURL,
		})
		return nil
	})
}

// SetTags replaces the photo's tag associations.
func (r *PhotoRepository) SetTags(ctx context.Context, id int64, tags []models.PhotoTag) (models.Photo, error) {
	return r.Modify(ctx, id, func(p *models.Photo) error {
		p.Tags = append([]models.PhotoTag{}, tags...)
		return nil
	})
}

// Modify applies fn to one photo inside a single serialized update.
func (r *PhotoRepository) Modify(ctx context.Context, id int64, fn func(*models.Photo) error) (models.Photo, error) {
	const op = "storage.PhotoRepository.Modify"

	var updated models.Photo
	err := r.photos.Update(ctx, func(photos []models.Photo) ([]models.Photo, error) {
		i := indexOfPhoto(photos, id)
		if i < 0 {
			return nil, fmt.Errorf("%s: %w: photo %d", op, models.ErrNotFound, id)
		}
		if photos[i].Tags == nil {
			photos[i].Tags = []models.PhotoTag{}
		}
		if err := fn(&photos[i]); err != nil {
			return nil, err
		}
		updated = photos[i]
		return photos, nil
	})
	return updated, err
}

func indexOfPhoto(photos []models.Photo, id int64) int {
	for i := range photos {
		if photos[i].ID == id {
			return i
		}
	}
	return -1
}

// nextPhotoID keeps millisecond-timestamp ids but never repeats one.
func nextPhotoID(photos []models.Photo, now time.Time) int64 {
	id := now.UnixMilli()
	for _, p := range photos {
		if p.ID >= id {
			id = p.ID + 1
		}
	}
	return id
}
