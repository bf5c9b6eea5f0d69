// Package service implements the photo, filter and user use cases on top of
// the storage repositories and the image processor.
package service

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"photohub/internal/models"
)

// URLPrefix starts every stored asset url.
const URLPrefix = "uploads"

// Assets maps slash-separated photo urls onto files below one directory.
type Assets struct {
	dir string
}

func NewAssets(dir string) Assets {
	return Assets{dir: dir}
}

func (a Assets) Dir() string { return a.dir }

// Path resolves url inside the asset directory. Leading "uploads/" is
// dropped and ".." segments cannot climb out of the directory.
func (a Assets) Path(url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("service.Assets.Path: %w: empty url", models.ErrNotFound)
	}
	rel := strings.TrimPrefix(path.Clean("/"+url), "/")
	rel = strings.TrimPrefix(rel, URLPrefix+"/")
	return filepath.Join(a.dir, filepath.FromSlash(rel)), nil
}

// Create stores r as a new upload in album and returns its url. File names
// follow upload_<unix millis><ext>; a taken name moves to the next millisecond.
func (a Assets) Create(album, originalName string, r io.Reader, now time.Time) (string, error) {
	const op = "service.Assets.Create"

	if err := validAlbum(album); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	albumDir := filepath.Join(a.dir, album)
	if err := os.MkdirAll(albumDir, 0o755); err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	ts := now.UnixMilli()
	for attempt := 0; attempt < 100; attempt++ {
		name := fmt.Sprintf("upload_%d%s", ts+int64(attempt), ext)
		file := filepath.Join(albumDir, name)
		f, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
		}
		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			os.Remove(file)
			return "", fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(file)
			return "", fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
		}
		return path.Join(URLPrefix, album, name), nil
	}
	return "", fmt.Errorf("%s: %w: no free file name in %s", op, models.ErrConflict, album)
}

// Remove deletes the asset at url. A missing file is not an error.
func (a Assets) Remove(url string) error {
	file, err := a.Path(url)
	if err != nil {
		return err
	}
	if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("service.Assets.Remove: %w: %v", models.ErrStorage, err)
	}
	return nil
}

func (a Assets) Read(url string) (models.ImageData, error) {
	const op = "service.Assets.Read"

	file, err := a.Path(url)
	if err != nil {
		return models.ImageData{}, fmt.Errorf("%s: %w", op, err)
	}
	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return models.ImageData{}, fmt.Errorf("%s: %w: asset %s", op, models.ErrNotFound, url)
	}
	if err != nil {
		return models.ImageData{}, fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
	}
	return models.ImageData{Data: data, ContentType: ContentType(file)}, nil
}

// ContentType is image/<ext>, with jpg reported as image/jpeg.
func ContentType(file string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file), "."))
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "tif":
		return "image/tiff"
	case "":
		return "application/octet-stream"
	}
	if t := mime.TypeByExtension("." + ext); strings.HasPrefix(t, "image/") {
		return t
	}
	return "image/" + ext
}

func validAlbum(album string) error {
	switch {
	case strings.TrimSpace(album) == "":
		return fmt.Errorf("%w: album is required", models.ErrValidation)
	case album == "." || album == ".." || strings.ContainsAny(album, `/\`):
		return fmt.Errorf("%w: invalid album name %q", models.ErrValidation, album)
	}
	return nil
}
