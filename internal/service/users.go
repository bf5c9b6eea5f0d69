package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"photohub/internal/auth"
	"photohub/internal/logging"
	"photohub/internal/models"
	"photohub/internal/processor"
	"photohub/internal/storage"
)

var validate = validator.New()

type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Lastname string `json:"lastname" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserInput lists the user fields a client may change. Nil fields are
// left alone.
type UpdateUserInput struct {
	Name           *string `json:"name" validate:"omitempty,min=1"`
	Lastname       *string `json:"lastname" validate:"omitempty,min=1"`
	ProfilePicture *string `json:"profilePicture"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,max=72"`
}

type LoginResult struct {
	User  models.PublicUser `json:"user"`
	Token string            `json:"token"`
}

type ProfileRenderer interface {
	Render(src, dir string) ([]string, error)
}

type UserService struct {
	users      *storage.UserRepository
	auth       *auth.Authenticator
	renderer   ProfileRenderer
	profileDir string
	publicURL  string
	now        func() time.Time
}

func NewUserService(users *storage.UserRepository, a *auth.Authenticator, renderer ProfileRenderer, profileDir, publicURL string) *UserService {
	return &UserService{
		users:      users,
		auth:       a,
		renderer:   renderer,
		profileDir: profileDir,
		publicURL:  strings.TrimSuffix(publicURL, "/"),
		now:        time.Now,
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (models.PublicUser, error) {
	const op = "service.UserService.Register"

	in.Email = strings.TrimSpace(in.Email)
	if err := validateInput(in); err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.auth.HashPassword(in.Password)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	u, err := s.users.Create(ctx, models.User{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Lastname:  in.Lastname,
		Email:     in.Email,
		Password:  hash,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}
	return u.Public(), nil
}

// Login answers ErrUnauthorized for both unknown emails and wrong passwords.
func (s *UserService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	const op = "service.UserService.Login"

	if err := validateInput(in); err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if errors.Is(err, models.ErrNotFound) {
		return LoginResult{}, fmt.Errorf("%s: %w: invalid credentials", op, models.ErrUnauthorized)
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if !s.auth.VerifyPassword(u.Password, in.Password) {
		return LoginResult{}, fmt.Errorf("%s: %w: invalid credentials", op, models.ErrUnauthorized)
	}

	token, err := s.auth.IssueToken(u.ID, u.Email)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return LoginResult{User: u.Public(), Token: token}, nil
}

// Authenticate resolves a bearer token to its still existing user.
func (s *UserService) Authenticate(ctx context.Context, token string) (models.User, error) {
	const op = "service.UserService.Authenticate"

	claims, err := s.auth.VerifyToken(ctx, token)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return models.User{}, fmt.Errorf("%s: %w: user no longer exists", op, models.ErrUnauthorized)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *UserService) Logout(ctx context.Context, token string) error {
	if err := s.auth.Revoke(ctx, token); err != nil {
		return fmt.Errorf("service.UserService.Logout: %w", err)
	}
	return nil
}

func (s *UserService) List(ctx context.Context) ([]models.PublicUser, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.UserService.List: %w", err)
	}
	out := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

func (s *UserService) Get(ctx context.Context, id string) (models.PublicUser, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("service.UserService.Get: %w", err)
	}
	return u.Public(), nil
}

func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (models.PublicUser, error) {
	const op = "service.UserService.Update"

	if err := validateInput(in); err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}
	u, err := s.users.Update(ctx, id, func(u *models.User) error {
		if in.Name != nil {
			u.Name = *in.Name
		}
		if in.Lastname != nil {
			u.Lastname = *in.Lastname
		}
		if in.ProfilePicture != nil {
			u.ProfilePicture = in.ProfilePicture
		}
		return nil
	})
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}
	return u.Public(), nil
}

func (s *UserService) ChangePassword(ctx context.Context, id string, in ChangePasswordInput) error {
	const op = "service.UserService.ChangePassword"

	if err := validateInput(in); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	hash, err := s.auth.HashPassword(in.NewPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = s.users.Update(ctx, id, func(u *models.User) error {
		if !s.auth.VerifyPassword(u.Password, in.CurrentPassword) {
			return fmt.Errorf("%w: current password is incorrect", models.ErrUnauthorized)
		}
		u.Password = hash
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete removes the account and, best effort, its profile images.
func (s *UserService) Delete(ctx context.Context, id string) error {
	const op = "service.UserService.Delete"

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if dir, err := s.userProfileDir(u.Email); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("user_id", id).Msg("remove profile images")
		}
	}
	return nil
}

// UploadProfilePhoto renders every profile variant of the uploaded image and
// stores their links on the user.
func (s *UserService) UploadProfilePhoto(ctx context.Context, id, originalName string, r io.Reader) (models.PublicUser, error) {
	const op = "service.UserService.UploadProfilePhoto"

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}
	dir, err := s.userProfileDir(u.Email)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	src, err := s.stageUpload(originalName, r)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}
	defer os.Remove(src)

	names, err := s.renderer.Render(src, dir)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	images := make([]models.ProfileImage, 0, len(names))
	for _, name := range names {
		images = append(images, models.ProfileImage{Name: name, HTTP: s.profileURL(u.Email, name)})
	}

	u, err = s.users.Update(ctx, id, func(u *models.User) error {
		u.ProfileArray = images
		if len(images) > 0 {
			picture := images[0].HTTP
			u.ProfilePicture = &picture
		}
		return nil
	})
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}
	return u.Public(), nil
}

// ProfileImage serves one rendered variant for the user with email.
func (s *UserService) ProfileImage(ctx context.Context, email, file string) (models.ImageData, error) {
	const op = "service.UserService.ProfileImage"

	if !slices.Contains(processor.ProfileVariants, file) {
		return models.ImageData{}, fmt.Errorf("%s: %w: unknown profile image %q", op, models.ErrNotFound, file)
	}
	dir, err := s.userProfileDir(email)
	if err != nil {
		return models.ImageData{}, fmt.Errorf("%s: %w", op, err)
	}
	path := filepath.Join(dir, file)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return models.ImageData{}, fmt.Errorf("%s: %w: %s", op, models.ErrNotFound, file)
	}
	if err != nil {
		return models.ImageData{}, fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
	}
	return models.ImageData{Data: data, ContentType: ContentType(path)}, nil
}

func (s *UserService) stageUpload(originalName string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.profileDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	f, err := os.CreateTemp(s.profileDir, ".upload-*"+strings.ToLower(filepath.Ext(originalName)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	return f.Name(), nil
}

func (s *UserService) userProfileDir(email string) (string, error) {
	if email == "" || email == "." || email == ".." || strings.ContainsAny(email, `/\`) {
		return "", fmt.Errorf("%w: invalid email %q", models.ErrValidation, email)
	}
	return filepath.Join(s.profileDir, email), nil
}

func (s *UserService) profileURL(email, name string) string {
	return s.publicURL + "/api/getimage/profile/" + url.PathEscape(email) + "/" + name
}

func validateInput(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: invalid fields: %s", models.ErrValidation, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return nil
}
