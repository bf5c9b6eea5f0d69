package service

import (
	"context"
	"fmt"

	"photohub/internal/events"
	"photohub/internal/metrics"
	"photohub/internal/models"
	"photohub/internal/processor"
	"photohub/internal/storage"
)

type ImageProcessor interface {
	Metadata(src string) (models.ImageMetadata, error)
	Transform(src, dst string, op processor.Operation) error
}

type FilterService struct {
	photos    *storage.PhotoRepository
	processor ImageProcessor
	assets    Assets
	events    events.Publisher
	jobs      events.Publisher
}

func NewFilterService(photos *storage.PhotoRepository, proc ImageProcessor, assets Assets, pub events.Publisher) *FilterService {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &FilterService{photos: photos, processor: proc, assets: assets, events: pub}
}

// WithJobs enables ApplyAsync through p.
func (s *FilterService) WithJobs(p events.Publisher) *FilterService {
	s.jobs = p
	return s
}

// OperationFor turns the request parameters into a processor operation.
func OperationFor(req models.FilterRequest) processor.Operation {
	return processor.Operation{
		Name:   req.LastChange,
		Angle:  req.Angle,
		Width:  req.Width,
		Height: req.Height,
		Left:   req.Left,
		Top:    req.Top,
		R:      req.R,
		G:      req.G,
		B:      req.B,
		Format: req.Format,
	}
}

// Apply renders the requested filter next to the photo's original asset and
// records it in the photo's history.
func (s *FilterService) Apply(ctx context.Context, req models.FilterRequest) (photo models.Photo, err error) {
	const op = "service.FilterService.Apply"

	operation := OperationFor(req)
	if !processor.Supported(operation.Name) {
		return models.Photo{}, fmt.Errorf("%s: %w: %q", op, models.ErrUnsupportedOperation, operation.Name)
	}
	defer func() { metrics.RecordFilter(operation.Name, err) }()

	current, err := s.photos.GetByID(ctx, req.ID)
	if err != nil {
		return models.Photo{}, fmt.Errorf("%s: %w", op, err)
	}

	src, err := s.assets.Path(current.URL)
	if err != nil {
		return models.Photo{}, fmt.Errorf("%s: %w", op, err)
	}
	derivedURL := processor.DerivedPath(current.URL, operation)
	dst, err := s.assets.Path(derivedURL)
	if err != nil {
		return models.Photo{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.processor.Transform(src, dst, operation); err != nil {
		return models.Photo{}, fmt.Errorf("%s: %w", op, err)
	}

	photo, err = s.photos.AppendHistory(ctx, req.ID, operation.Name, derivedURL)
	if err != nil {
		return models.Photo{}, fmt.Errorf("%s: %w", op, err)
	}

	e := events.New(events.PhotoFiltered, photo.ID)
	e.Status = operation.Name
	e.URL = derivedURL
	publish(ctx, s.events, e)

	return photo, nil
}

// ApplyAsync checks the request and queues it as a filter job.
func (s *FilterService) ApplyAsync(ctx context.Context, req models.FilterRequest) (events.Event, error) {
	const op = "service.FilterService.ApplyAsync"

	if s.jobs == nil {
		return events.Event{}, fmt.Errorf("%s: %w: asynchronous filters are disabled", op, models.ErrUnavailable)
	}
	if !processor.Supported(req.LastChange) {
		return events.Event{}, fmt.Errorf("%s: %w: %q", op, models.ErrUnsupportedOperation, req.LastChange)
	}
	if _, err := s.photos.GetByID(ctx, req.ID); err != nil {
		return events.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	job := events.NewFilterJob(req)
	if err := s.jobs.Publish(ctx, job); err != nil {
		return events.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	return job, nil
}

// HandleJob is the events.Handler for queued filter jobs.
func (s *FilterService) HandleJob(ctx context.Context, e events.Event) error {
	if e.Filter == nil {
		return fmt.Errorf("service.FilterService.HandleJob: %w: job without filter", models.ErrValidation)
	}
	_, err := s.Apply(ctx, *e.Filter)
	return err
}

func (s *FilterService) Metadata(ctx context.Context, id int64) (models.ImageMetadata, error) {
	const op = "service.FilterService.Metadata"

	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		return models.ImageMetadata{}, fmt.Errorf("%s: %w", op, err)
	}
	src, err := s.assets.Path(photo.URL)
	if err != nil {
		return models.ImageMetadata{}, fmt.Errorf("%s: %w", op, err)
	}
	md, err := s.processor.Metadata(src)
	if err != nil {
		return models.ImageMetadata{}, fmt.Errorf("%s: %w", op, err)
	}
	return md, nil
}

// GetImage returns the original asset, or with filterName the asset of the
// first history entry carrying that status.
func (s *FilterService) GetImage(ctx context.Context, id int64, filterName string) (models.ImageData, error) {
	const op = "service.FilterService.GetImage"

	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		return models.ImageData{}, fmt.Errorf("%s: %w", op, err)
	}

	url := photo.URL
	if filterName != "" {
		entry, ok := photo.FindHistory(filterName)
		if !ok || entry.URL == "" {
			return models.ImageData{}, fmt.Errorf("%s: %w: no %q image for photo %d", op, models.ErrNotFound, filterName, id)
		}
		url = entry.URL
	}

	img, err := s.assets.Read(url)
	if err != nil {
		return models.ImageData{}, fmt.Errorf("%s: %w", op, err)
	}
	return img, nil
}
