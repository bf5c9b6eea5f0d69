package storage

import (
	"context"
	"fmt"
	"strings"

	"photohub/internal/models"
)

type UserRepository struct {
	users *Collection[models.User]
}

func NewUserRepository(users *Collection[models.User]) *UserRepository {
	return &UserRepository{users: users}
}

// Create stores u; emails are unique regardless of case.
func (r *UserRepository) Create(ctx context.Context, u models.User) (models.User, error) {
	const op = "storage.UserRepository.Create"

	err := r.users.Update(ctx, func(users []models.User) ([]models.User, error) {
		for _, existing := range users {
			if strings.EqualFold(existing.Email, u.Email) {
				return nil, fmt.Errorf("%s: %w: email already exists", op, models.ErrConflict)
			}
			if existing.ID == u.ID {
				return nil, fmt.Errorf("%s: %w: user %s already exists", op, models.ErrConflict, u.ID)
			}
		}
		return append(users, u), nil
	})
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	return r.users.Load(ctx)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	const op = "storage.UserRepository.GetByID"
	return r.find(ctx, func(u models.User) bool { return u.ID == id },
		fmt.Errorf("%s: %w: user %s", op, models.ErrNotFound, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.UserRepository.GetByEmail"
	return r.find(ctx, func(u models.User) bool { return strings.EqualFold(u.Email, email) },
		fmt.Errorf("%s: %w: user with email %s", op, models.ErrNotFound, email))
}

func (r *UserRepository) find(ctx context.Context, match func(models.User) bool, notFound error) (models.User, error) {
	var found models.User
	err := r.users.View(ctx, func(users []models.User) error {
		for _, u := range users {
			if match(u) {
				found = u
				return nil
			}
		}
		return notFound
	})
	return found, err
}

// Update applies fn to the user inside one serialized update.
func (r *UserRepository) Update(ctx context.Context, id string, fn func(*models.User) error) (models.User, error) {
	const op = "storage.UserRepository.Update"

	var updated models.User
	err := r.users.Update(ctx, func(users []models.User) ([]models.User, error) {
		for i := range users {
			if users[i].ID != id {
				continue
			}
			if err := fn(&users[i]); err != nil {
				return nil, err
			}
			updated = users[i]
			return users, nil
		}
		return nil, fmt.Errorf("%s: %w: user %s", op, models.ErrNotFound, id)
	})
	return updated, err
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const op = "storage.UserRepository.Delete"

	return r.users.Update(ctx, func(users []models.User) ([]models.User, error) {
		for i := range users {
			if users[i].ID == id {
				return append(users[:i], users[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("%s: %w: user %s", op, models.ErrNotFound, id)
	})
}
