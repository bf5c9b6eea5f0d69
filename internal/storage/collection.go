package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"photohub/internal/metrics"
	"photohub/internal/models"
)

// Collection persists a whole JSON array in one file. Every load→mutate→save
// sequence on the same file runs under one lock, so concurrent writers never
// lose updates or hand out the same id twice.
type Collection[T any] struct {
	name string
	path string
	lock fileLock
}

// fileLock is a one-slot semaphore so waiters can give up on ctx.
type fileLock chan struct{}

var (
	locksMu sync.Mutex
	locks   = make(map[string]fileLock)
)

// lockFor returns the lock shared by every Collection opened on path.
func lockFor(path string) fileLock {
	locksMu.Lock()
	defer locksMu.Unlock()

	l, ok := locks[path]
	if !ok {
		l = make(fileLock, 1)
		locks[path] = l
	}
	return l
}

func (l fileLock) acquire(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l fileLock) release() { <-l }

// NewCollection opens the collection stored at dir/name.json. The file is
// not created until the first save.
func NewCollection[T any](dir, name string) (*Collection[T], error) {
	const op = "storage.NewCollection"

	path, err := filepath.Abs(filepath.Join(dir, name+".json"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
	}
	return &Collection[T]{name: name, path: path, lock: lockFor(path)}, nil
}

func (c *Collection[T]) Name() string { return c.name }
func (c *Collection[T]) Path() string { return c.path }

// Exists reports whether the collection file is present on disk.
func (c *Collection[T]) Exists() bool {
	_, err := os.Stat(c.path)
	return err == nil
}

// Load returns every record in file order.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	var out []T
	err := c.View(ctx, func(records []T) error {
		out = records
		return nil
	})
	return out, err
}

// Save overwrites the collection with records.
func (c *Collection[T]) Save(ctx context.Context, records []T) error {
	return c.Update(ctx, func([]T) ([]T, error) { return records, nil })
}

// View runs fn over a consistent snapshot of the collection.
func (c *Collection[T]) View(ctx context.Context, fn func([]T) error) error {
	if err := c.lock.acquire(ctx); err != nil {
		return err
	}
	defer c.lock.release()

	start := time.Now()
	records, err := c.read()
	metrics.RecordStoreOperation(c.name, "view", err, time.Since(start))
	if err != nil {
		return err
	}
	return fn(records)
}

// Update loads the collection, applies fn and writes the result back. When
// fn fails the file is left untouched and fn's error is returned as is.
func (c *Collection[T]) Update(ctx context.Context, fn func([]T) ([]T, error)) error {
	if err := c.lock.acquire(ctx); err != nil {
		return err
	}
	defer c.lock.release()

	start := time.Now()
	err := c.update(fn)
	metrics.RecordStoreOperation(c.name, "update", err, time.Since(start))
	return err
}

// Seed writes seed() when the collection file does not exist yet. It
// reports whether it wrote anything.
func (c *Collection[T]) Seed(ctx context.Context, seed func() []T) (bool, error) {
	if err := c.lock.acquire(ctx); err != nil {
		return false, err
	}
	defer c.lock.release()

	if c.Exists() {
		return false, nil
	}
	start := time.Now()
	err := c.write(seed())
	metrics.RecordStoreOperation(c.name, "seed", err, time.Since(start))
	return err == nil, err
}

func (c *Collection[T]) update(fn func([]T) ([]T, error)) error {
	records, err := c.read()
	if err != nil {
		return err
	}
	records, err = fn(records)
	if err != nil {
		return err
	}
	return c.write(records)
}

func (c *Collection[T]) read() ([]T, error) {
	const op = "storage.Collection.read"

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
		}
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []T{}, nil
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%s: %w: decode %s: %v", op, models.ErrStorage, c.path, err)
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

// write replaces the file via temp file + rename so a crash never leaves a
// truncated collection behind.
func (c *Collection[T]) write(records []T) error {
	const op = "storage.Collection.write"

	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: %w: encode: %v", op, models.ErrStorage, err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		cleanup()
		return fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
	}
	return nil
}
