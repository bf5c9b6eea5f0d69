package service

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"photohub/internal/events"
	"photohub/internal/models"
	"photohub/internal/processor"
	"photohub/internal/storage"
)

type testEnv struct {
	dataDir string
	store   *storage.Storage
	assets  Assets
	pub     *events.MemoryPublisher
	photos  *PhotoService
	filters *FilterService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	store, err := storage.NewStorage(context.Background(), dataDir)
	if err != nil {
		t.Fatalf("NewStorage() error = %v", err)
	}
	assets := NewAssets(filepath.Join(root, "uploads"))
	pub := &events.MemoryPublisher{}
	return &testEnv{
		dataDir: dataDir,
		store:   store,
		assets:  assets,
		pub:     pub,
		photos:  NewPhotoService(store.Photos, assets, pub),
		filters: NewFilterService(store.Photos, processor.New(), assets, pub),
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// writeAsset places data at the file an url resolves to.
func (e *testEnv) writeAsset(t *testing.T, url string, data []byte) {
	t.Helper()
	file, _ := e.assets.Path(url)
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestPhotoLifecycleScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.writeAsset(t, "uploads/a/x.png", pngBytes(t, 30, 20))

	created, err := env.store.Photos.Create(ctx, storage.CreatePhoto{Album: "a", OriginalName: "x.png", URL: "uploads/a/x.png"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := env.photos.Get(ctx, created.ID)
	if err != nil || got.ID != created.ID || len(got.History) != 1 || got.History[0].Status != models.StatusOriginal {
		t.Fatalf("Get() = %+v, %v", got, err)
	}

	angle := 90.0
	rotated, err := env.filters.Apply(ctx, models.FilterRequest{ID: created.ID, LastChange: "rotate", Angle: &angle})
	if err != nil {
		t.Fatalf("Apply(rotate) error = %v", err)
	}
	if rotated.LastChange != "rotate" || len(rotated.History) != 2 {
		t.Fatalf("Apply(rotate) = %+v", rotated)
	}
	entry := rotated.History[1]
	if entry.Status != "rotate" || !strings.Contains(entry.URL, "-rotate") {
		t.Errorf("history entry = %+v", entry)
	}
	derived, _ := env.assets.Path(entry.URL)
	md, err := processor.New().Metadata(derived)
	if err != nil || md.Width != 20 || md.Height != 30 {
		t.Errorf("derived metadata = %+v, %v; want 20x30", md, err)
	}

	img, err := env.filters.GetImage(ctx, created.ID, "rotate")
	if err != nil || img.ContentType != "image/png" || len(img.Data) == 0 {
		t.Errorf("GetImage(rotate) = %s %d bytes, %v", img.ContentType, len(img.Data), err)
	}

	if _, err := env.photos.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := env.photos.Get(ctx, created.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	original, _ := env.assets.Path("uploads/a/x.png")
	if exists(original) || exists(derived) {
		t.Error("assets left behind after delete")
	}

	var types []events.Type
	for _, e := range env.pub.Events() {
		types = append(types, e.Type)
	}
	if len(types) != 2 || types[0] != events.PhotoFiltered || types[1] != events.PhotoDeleted {
		t.Errorf("published = %v", types)
	}
}

func TestFilterApplyErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.writeAsset(t, "uploads/a/x.png", pngBytes(t, 10, 10))
	p, _ := env.store.Photos.Create(ctx, storage.CreatePhoto{Album: "a", OriginalName: "x.png", URL: "uploads/a/x.png"})
	photosFile := filepath.Join(env.dataDir, "photos.json")
	before, _ := os.ReadFile(photosFile)

	tests := []struct {
		name string
		req  models.FilterRequest
		want error
	}{
		{"unknown operation", models.FilterRequest{ID: p.ID, LastChange: "sepia"}, models.ErrUnsupportedOperation},
		{"empty operation", models.FilterRequest{ID: p.ID}, models.ErrUnsupportedOperation},
		{"missing photo", models.FilterRequest{ID: 1, LastChange: "flip"}, models.ErrNotFound},
		{"crop outside image", models.FilterRequest{ID: p.ID, LastChange: "crop", Width: 50, Height: 50}, models.ErrProcessing},
		{"bad format", models.FilterRequest{ID: p.ID, LastChange: "reformat", Format: "xyz"}, models.ErrProcessing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.filters.Apply(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Apply() error = %v, want %v", err, tt.want)
			}
		})
	}

	after, _ := os.ReadFile(photosFile)
	if !bytes.Equal(before, after) {
		t.Error("failed filters modified photos.json")
	}
}

func TestFilterApplyReformat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.writeAsset(t, "uploads/a/x.png", pngBytes(t, 10, 10))
	p, _ := env.store.Photos.Create(ctx, storage.CreatePhoto{Album: "a", OriginalName: "x.png", URL: "uploads/a/x.png"})

	got, err := env.filters.Apply(ctx, models.FilterRequest{ID: p.ID, LastChange: "reformat", Format: "jpg"})
	if err != nil {
		t.Fatalf("Apply(reformat) error = %v", err)
	}
	if url := got.History[1].URL; url != "uploads/a/x-reformat.jpg" {
		t.Errorf("derived url = %q", url)
	}
	img, err := env.filters.GetImage(ctx, p.ID, "reformat")
	if err != nil || img.ContentType != "image/jpeg" {
		t.Errorf("GetImage(reformat) = %q, %v", img.ContentType, err)
	}
}

func TestGetImageFirstMatchWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.writeAsset(t, "uploads/a/x.png", []byte("original"))
	env.writeAsset(t, "uploads/a/first.png", []byte("first"))
	env.writeAsset(t, "uploads/a/second.png", []byte("second"))
	p, _ := env.store.Photos.Create(ctx, storage.CreatePhoto{Album: "a", OriginalName: "x.png", URL: "uploads/a/x.png"})
	_, _ = env.store.Photos.AppendHistory(ctx, p.ID, "custom", "uploads/a/first.png")
	_, _ = env.store.Photos.AppendHistory(ctx, p.ID, "custom", "uploads/a/second.png")
	_, _ = env.photos.UpdateStatus(ctx, p.ID, "reviewed")

	tests := []struct {
		filter  string
		want    string
		wantErr error
	}{
		{filter: "", want: "original"},
		{filter: "custom", want: "first"},
		{filter: "reviewed", wantErr: models.ErrNotFound},
		{filter: "rotate", wantErr: models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run("filter="+tt.filter, func(t *testing.T) {
			img, err := env.filters.GetImage(ctx, p.ID, tt.filter)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("GetImage() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || string(img.Data) != tt.want {
				t.Errorf("GetImage() = %q, %v; want %q", img.Data, err, tt.want)
			}
		})
	}

	if _, err := env.filters.GetImage(ctx, 42, ""); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetImage(missing photo) error = %v, want ErrNotFound", err)
	}
}

func TestFilterMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.writeAsset(t, "uploads/a/x.png", pngBytes(t, 12, 7))
	p, _ := env.store.Photos.Create(ctx, storage.CreatePhoto{Album: "a", OriginalName: "x.png", URL: "uploads/a/x.png"})

	md, err := env.filters.Metadata(ctx, p.ID)
	if err != nil || md.Width != 12 || md.Height != 7 || md.Format != "png" {
		t.Errorf("Metadata() = %+v, %v", md, err)
	}
	if _, err := env.filters.Metadata(ctx, 1); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Metadata(missing) error = %v, want ErrNotFound", err)
	}
}

func TestFilterApplyAsync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.writeAsset(t, "uploads/a/x.png", pngBytes(t, 10, 10))
	p, _ := env.store.Photos.Create(ctx, storage.CreatePhoto{Album: "a", OriginalName: "x.png", URL: "uploads/a/x.png"})
	req := models.FilterRequest{ID: p.ID, LastChange: "grayscale"}

	if _, err := env.filters.ApplyAsync(ctx, req); !errors.Is(err, models.ErrUnavailable) {
		t.Fatalf("ApplyAsync() without jobs error = %v, want ErrUnavailable", err)
	}

	jobs := &events.MemoryPublisher{}
	env.filters.WithJobs(jobs)
	if _, err := env.filters.ApplyAsync(ctx, models.FilterRequest{ID: p.ID, LastChange: "sepia"}); !errors.Is(err, models.ErrUnsupportedOperation) {
		t.Errorf("ApplyAsync(sepia) error = %v, want ErrUnsupportedOperation", err)
	}
	if _, err := env.filters.ApplyAsync(ctx, models.FilterRequest{ID: 1, LastChange: "flip"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("ApplyAsync(missing) error = %v, want ErrNotFound", err)
	}

	job, err := env.filters.ApplyAsync(ctx, req)
	if err != nil {
		t.Fatalf("ApplyAsync() error = %v", err)
	}
	if queued := jobs.Events(); len(queued) != 1 || queued[0].Type != events.FilterRequested {
		t.Fatalf("queued = %+v", queued)
	}

	if err := env.filters.HandleJob(ctx, job); err != nil {
		t.Fatalf("HandleJob() error = %v", err)
	}
	got, _ := env.photos.Get(ctx, p.ID)
	if got.LastChange != "grayscale" {
		t.Errorf("lastChange after job = %q, want grayscale", got.LastChange)
	}
	if err := env.filters.HandleJob(ctx, events.New(events.FilterRequested, p.ID)); !errors.Is(err, models.ErrValidation) {
		t.Errorf("HandleJob(no filter) error = %v, want ErrValidation", err)
	}
}

func TestPhotoServiceUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	data := pngBytes(t, 8, 8)

	p, err := env.photos.Upload(ctx, "holidays", "Beach.PNG", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !strings.HasPrefix(p.URL, "uploads/holidays/upload_") || !strings.HasSuffix(p.URL, ".png") {
		t.Errorf("url = %q", p.URL)
	}
	if p.OriginalName != "Beach.PNG" || p.Album != "holidays" {
		t.Errorf("photo = %+v", p)
	}
	file, _ := env.assets.Path(p.URL)
	stored, err := os.ReadFile(file)
	if err != nil || !bytes.Equal(stored, data) {
		t.Errorf("stored asset mismatch: %v", err)
	}

	second, err := env.photos.Upload(ctx, "holidays", "Beach.PNG", bytes.NewReader(data))
	if err != nil || second.URL == p.URL {
		t.Errorf("second Upload() = %q, %v; want a distinct file", second.URL, err)
	}

	if evs := env.pub.Events(); len(evs) != 2 || evs[0].Type != events.PhotoCreated {
		t.Errorf("published = %+v", evs)
	}

	for _, album := range []string{"", "..", "a/b"} {
		if _, err := env.photos.Upload(ctx, album, "x.png", bytes.NewReader(data)); !errors.Is(err, models.ErrValidation) {
			t.Errorf("Upload(album %q) error = %v, want ErrValidation", album, err)
		}
	}
	if _, err := env.photos.Upload(ctx, "a", "", bytes.NewReader(data)); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Upload(no name) error = %v, want ErrValidation", err)
	}
}

func TestPhotoServiceUploadRemovesAssetWhenRecordFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := os.WriteFile(filepath.Join(env.dataDir, "photos.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := env.photos.Upload(ctx, "a", "x.png", bytes.NewReader(pngBytes(t, 4, 4))); !errors.Is(err, models.ErrStorage) {
		t.Fatalf("Upload() error = %v, want ErrStorage", err)
	}
	left, _ := filepath.Glob(filepath.Join(env.assets.Dir(), "a", "*"))
	if len(left) != 0 {
		t.Errorf("orphaned assets: %v", left)
	}
}

func TestPhotoServiceDeleteWithMissingAsset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p, _ := env.store.Photos.Create(ctx, storage.CreatePhoto{Album: "a", OriginalName: "x.png", URL: "uploads/a/gone.png"})

	if _, err := env.photos.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := env.photos.Delete(ctx, p.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestPhotoServiceUpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p, _ := env.store.Photos.Create(ctx, storage.CreatePhoto{Album: "a", OriginalName: "x.png", URL: "u"})

	got, err := env.photos.UpdateStatus(ctx, p.ID, " approved ")
	if err != nil || got.LastChange != "approved" || len(got.History) != 2 {
		t.Errorf("UpdateStatus() = %+v, %v", got, err)
	}
	if _, err := env.photos.UpdateStatus(ctx, p.ID, "  "); !errors.Is(err, models.ErrValidation) {
		t.Errorf("UpdateStatus(blank) error = %v, want ErrValidation", err)
	}
}

func TestAssetsPath(t *testing.T) {
	a := NewAssets("/srv/uploads")
	tests := []struct {
		url  string
		want string
	}{
		{"uploads/a/x.png", "/srv/uploads/a/x.png"},
		{"a/x.png", "/srv/uploads/a/x.png"},
		{"uploads/../../etc/passwd", "/srv/uploads/etc/passwd"},
		{"/uploads/a/x.png", "/srv/uploads/a/x.png"},
	}
	for _, tt := range tests {
		got, err := a.Path(tt.url)
		if err != nil || got != filepath.FromSlash(tt.want) {
			t.Errorf("Path(%q) = %q, %v; want %q", tt.url, got, err, tt.want)
		}
	}
	if _, err := a.Path(""); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Path(\"\") error = %v, want ErrNotFound", err)
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"a/x.png":  "image/png",
		"a/x.JPG":  "image/jpeg",
		"a/x.jpeg": "image/jpeg",
		"a/x.gif":  "image/gif",
		"a/x.tif":  "image/tiff",
		"a/x":      "application/octet-stream",
	}
	for file, want := range tests {
		if got := ContentType(file); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", file, got, want)
		}
	}
}
