package export

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultMaxAge          = 12 * time.Hour
	DefaultCleanupInterval = time.Hour
)

// Cleanup removes regular files in the export directory last modified before
// now minus maxAge. A missing directory is not an error.
func (e *Exporter) Cleanup(now time.Time, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(e.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			e.logger.Warn("stat export file", "file", entry.Name(), "error", err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(e.dir, entry.Name())); err != nil {
			e.logger.Warn("remove old export", "file", entry.Name(), "error", err)
			continue
		}
		e.logger.Info("old export removed", "file", entry.Name())
		removed++
	}
	return removed, nil
}

// RunCleanup cleans immediately and then every interval until ctx is done.
func (e *Exporter) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := e.Cleanup(time.Now(), maxAge); err != nil {
			e.logger.Error("export cleanup failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
