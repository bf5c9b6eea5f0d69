// internal/storage/init.go
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"photohub/internal/logging"
	"photohub/internal/models"
)

// initDataDir creates dir and removes temp files left by interrupted saves.
func initDataDir(dir string) error {
	const op = "storage.initDataDir"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
	}

	leftovers, err := filepath.Glob(filepath.Join(dir, ".*.json.tmp-*"))
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, models.ErrStorage, err)
	}
	for _, f := range leftovers {
		if err := os.Remove(f); err != nil {
			logging.Logger().Warn().Err(err).Str("file", f).Msg("remove stale temp file")
			continue
		}
		logging.Logger().Info().Str("file", f).Msg("removed stale temp file")
	}
	return nil
}
