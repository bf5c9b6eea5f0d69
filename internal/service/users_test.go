package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"photohub/internal/auth"
	"photohub/internal/models"
	"photohub/internal/processor"
	"photohub/internal/storage"
)

func newTestUserService(t *testing.T) (*UserService, *auth.MemoryRevocationStore) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewStorage(context.Background(), filepath.Join(root, "data"))
	if err != nil {
		t.Fatal(err)
	}
	revoked := auth.NewMemoryRevocationStore()
	a, err := auth.NewAuthenticator(models.AuthConfig{
		SecretKey:  "test-secret",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	}, revoked)
	if err != nil {
		t.Fatal(err)
	}
	renderer, err := processor.NewProfileRenderer()
	if err != nil {
		t.Fatal(err)
	}
	return NewUserService(store.Users, a, renderer, filepath.Join(root, "profile"), "http://localhost:3000/"), revoked
}

func registerAda(t *testing.T, s *UserService) models.PublicUser {
	t.Helper()
	u, err := s.Register(context.Background(), RegisterInput{
		Name: "Ada", Lastname: "Lovelace", Email: "ada@example.com", Password: "s3cret",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return u
}

func TestUserServiceRegister(t *testing.T) {
	s, _ := newTestUserService(t)
	ctx := context.Background()

	u := registerAda(t, s)
	if u.ID == "" || u.Verified || u.ProfilePicture != nil || u.CreatedAt.IsZero() {
		t.Errorf("registered user = %+v", u)
	}

	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"missing name", RegisterInput{Lastname: "L", Email: "b@example.com", Password: "x"}, models.ErrValidation},
		{"bad email", RegisterInput{Name: "B", Lastname: "L", Email: "nope", Password: "x"}, models.ErrValidation},
		{"missing password", RegisterInput{Name: "B", Lastname: "L", Email: "b@example.com"}, models.ErrValidation},
		{"duplicate email", RegisterInput{Name: "A", Lastname: "L", Email: "ADA@example.com", Password: "x"}, models.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Register(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Register() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUserServiceLoginLogout(t *testing.T) {
	s, revoked := newTestUserService(t)
	ctx := context.Background()
	registered := registerAda(t, s)

	if _, err := s.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrong"}); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("Login(wrong password) error = %v, want ErrUnauthorized", err)
	}
	if _, err := s.Login(ctx, LoginInput{Email: "bob@example.com", Password: "s3cret"}); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("Login(unknown) error = %v, want ErrUnauthorized", err)
	}
	if _, err := s.Login(ctx, LoginInput{Email: "ada@example.com"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Login(no password) error = %v, want ErrValidation", err)
	}

	res, err := s.Login(ctx, LoginInput{Email: "ada@example.com", Password: "s3cret"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Token == "" || res.User.ID != registered.ID {
		t.Errorf("Login() = %+v", res)
	}

	u, err := s.Authenticate(ctx, res.Token)
	if err != nil || u.ID != registered.ID {
		t.Fatalf("Authenticate() = %+v, %v", u, err)
	}

	if err := s.Logout(ctx, res.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := s.Authenticate(ctx, res.Token); !errors.Is(err, models.ErrInvalidToken) {
		t.Errorf("Authenticate() after logout error = %v, want ErrInvalidToken", err)
	}
	if revoked.Len() != 1 {
		t.Errorf("revocations = %d, want 1", revoked.Len())
	}
}

func TestUserServiceUpdateAndPassword(t *testing.T) {
	s, _ := newTestUserService(t)
	ctx := context.Background()
	u := registerAda(t, s)

	name := "Augusta"
	updated, err := s.Update(ctx, u.ID, UpdateUserInput{Name: &name})
	if err != nil || updated.Name != "Augusta" || updated.Lastname != "Lovelace" || updated.Email != u.Email {
		t.Errorf("Update() = %+v, %v", updated, err)
	}
	empty := ""
	if _, err := s.Update(ctx, u.ID, UpdateUserInput{Lastname: &empty}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Update(empty lastname) error = %v, want ErrValidation", err)
	}
	if _, err := s.Update(ctx, "missing", UpdateUserInput{Name: &name}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}

	err = s.ChangePassword(ctx, u.ID, ChangePasswordInput{CurrentPassword: "wrong", NewPassword: "n3w"})
	if !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("ChangePassword(wrong current) error = %v, want ErrUnauthorized", err)
	}
	if err := s.ChangePassword(ctx, u.ID, ChangePasswordInput{CurrentPassword: "s3cret", NewPassword: "n3w"}); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if _, err := s.Login(ctx, LoginInput{Email: u.Email, Password: "n3w"}); err != nil {
		t.Errorf("Login(new password) error = %v", err)
	}
	if _, err := s.Login(ctx, LoginInput{Email: u.Email, Password: "s3cret"}); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("Login(old password) error = %v, want ErrUnauthorized", err)
	}
}

func TestUserServiceListAndDelete(t *testing.T) {
	s, _ := newTestUserService(t)
	ctx := context.Background()
	u := registerAda(t, s)

	list, err := s.List(ctx)
	if err != nil || len(list) != 1 || list[0].ID != u.ID {
		t.Fatalf("List() = %+v, %v", list, err)
	}

	res, _ := s.Login(ctx, LoginInput{Email: u.Email, Password: "s3cret"})
	if err := s.Delete(ctx, u.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, u.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if _, err := s.Authenticate(ctx, res.Token); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("Authenticate() for deleted user error = %v, want ErrUnauthorized", err)
	}
}

func TestUserServiceProfilePhoto(t *testing.T) {
	s, _ := newTestUserService(t)
	ctx := context.Background()
	u := registerAda(t, s)

	updated, err := s.UploadProfilePhoto(ctx, u.ID, "me.png", bytes.NewReader(pngBytes(t, 50, 30)))
	if err != nil {
		t.Fatalf("UploadProfilePhoto() error = %v", err)
	}
	if len(updated.ProfileArray) != len(processor.ProfileVariants) {
		t.Fatalf("profileArray = %+v", updated.ProfileArray)
	}
	first := updated.ProfileArray[0]
	wantURL := "http://localhost:3000/api/getimage/profile/ada@example.com/profile.png"
	if first.Name != processor.ProfileOriginal || first.HTTP != wantURL {
		t.Errorf("first profile image = %+v, want %s", first, wantURL)
	}
	if updated.ProfilePicture == nil || *updated.ProfilePicture != wantURL {
		t.Errorf("profilePicture = %v", updated.ProfilePicture)
	}

	img, err := s.ProfileImage(ctx, u.Email, processor.ProfileRounded)
	if err != nil || img.ContentType != "image/png" || len(img.Data) == 0 {
		t.Errorf("ProfileImage() = %q, %v", img.ContentType, err)
	}
	for _, file := range []string{"secret.txt", "../users.json"} {
		if _, err := s.ProfileImage(ctx, u.Email, file); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("ProfileImage(%q) error = %v, want ErrNotFound", file, err)
		}
	}
	if _, err := s.ProfileImage(ctx, "nobody@example.com", processor.ProfileOriginal); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("ProfileImage(unknown user) error = %v, want ErrNotFound", err)
	}

	_, err = s.UploadProfilePhoto(ctx, u.ID, "notes.txt", strings.NewReader("not an image"))
	if !errors.Is(err, models.ErrProcessing) {
		t.Errorf("UploadProfilePhoto(text) error = %v, want ErrProcessing", err)
	}
}
