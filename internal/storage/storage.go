// internal/storage/storage.go
package storage

import (
	"context"
	"fmt"

	"photohub/internal/models"
)

const (
	photosCollection = "photos"
	tagsCollection   = "tags"
	usersCollection  = "users"
)

// Storage bundles the repositories backed by one data directory.
type Storage struct {
	dir string

	Photos *PhotoRepository
	Tags   *TagRepository
	Users  *UserRepository
}

func NewStorage(ctx context.Context, dataDir string) (*Storage, error) {
	const op = "storage.NewStorage"

	if err := initDataDir(dataDir); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	photos, err := NewCollection[models.Photo](dataDir, photosCollection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tags, err := NewCollection[models.Tag](dataDir, tagsCollection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	users, err := NewCollection[models.User](dataDir, usersCollection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	photoRepo := NewPhotoRepository(photos)
	s := &Storage{
		dir:    dataDir,
		Photos: photoRepo,
		Tags:   NewTagRepository(tags, photoRepo),
		Users:  NewUserRepository(users),
	}

	if err := s.Tags.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func (s *Storage) Dir() string { return s.dir }
