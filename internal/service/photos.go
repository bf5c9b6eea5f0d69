package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"photohub/internal/events"
	"photohub/internal/logging"
	"photohub/internal/models"
	"photohub/internal/storage"
)

type PhotoService struct {
	photos *storage.PhotoRepository
	assets Assets
	events events.Publisher
	now    func() time.Time
}

func NewPhotoService(photos *storage.PhotoRepository, assets Assets, pub events.Publisher) *PhotoService {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &PhotoService{photos: photos, assets: assets, events: pub, now: time.Now}
}

// Upload stores the asset first and only then the record, so a record never
// points at a missing file. The asset is removed again if the record fails.
func (s *PhotoService) Upload(ctx context.Context, album, originalName string, r io.Reader) (models.Photo, error) {
	const op = "service.PhotoService.Upload"

	if strings.TrimSpace(originalName) == "" {
		return models.Photo{}, fmt.Errorf("%s: %w: file name is required", op, models.ErrValidation)
	}

	url, err := s.assets.Create(album, originalName, r, s.now())
	if err != nil {
		return models.Photo{}, fmt.Errorf("%s: %w", op, err)
	}

	photo, err := s.photos.Create(ctx, storage.CreatePhoto{
		Album:        album,
		OriginalName: originalName,
		URL:          url,
	})
	if err != nil {
		if rmErr := s.assets.Remove(url); rmErr != nil {
			logging.Ctx(ctx).Error().Err(rmErr).Str("url", url).Msg("remove orphaned upload")
		}
		return models.Photo{}, fmt.Errorf("%s: %w", op, err)
	}

	e := events.New(events.PhotoCreated, photo.ID)
	e.URL = photo.URL
	publish(ctx, s.events, e)

	return photo, nil
}

func (s *PhotoService) List(ctx context.Context) ([]models.Photo, error) {
	return s.photos.GetAll(ctx)
}

func (s *PhotoService) Get(ctx context.Context, id int64) (models.Photo, error) {
	return s.photos.GetByID(ctx, id)
}

// Delete removes the record, then the original and derived assets. Asset
// failures are logged and do not fail the call.
func (s *PhotoService) Delete(ctx context.Context, id int64) (models.Photo, error) {
	const op = "service.PhotoService.Delete"

	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		return models.Photo{}, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.photos.Delete(ctx, id); err != nil {
		return models.Photo{}, fmt.Errorf("%s: %w", op, err)
	}

	log := logging.Ctx(ctx)
	for _, url := range assetURLs(photo) {
		if err := s.assets.Remove(url); err != nil {
			log.Warn().Err(err).Int64("photo_id", id).Str("url", url).Msg("remove asset")
		}
	}

	e := events.New(events.PhotoDeleted, id)
	e.URL = photo.URL
	publish(ctx, s.events, e)

	return photo, nil
}

// UpdateStatus appends a history entry without producing a derived asset.
func (s *PhotoService) UpdateStatus(ctx context.Context, id int64, status string) (models.Photo, error) {
	const op = "service.PhotoService.UpdateStatus"

	photo, err := s.photos.AppendHistory(ctx, id, strings.TrimSpace(status), "")
	if err != nil {
		return models.Photo{}, fmt.Errorf("%s: %w", op, err)
	}
	return photo, nil
}

func assetURLs(p models.Photo) []string {
	seen := map[string]bool{p.URL: true}
	urls := []string{p.URL}
	for _, h := range p.History {
		if h.URL != "" && !seen[h.URL] {
			seen[h.URL] = true
			urls = append(urls, h.URL)
		}
	}
	return urls
}

// publish logs failures instead of returning them.
func publish(ctx context.Context, pub events.Publisher, e events.Event) {
	if err := pub.Publish(ctx, e); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("event", string(e.Type)).Int64("photo_id", e.PhotoID).Msg("publish event")
	}
}
