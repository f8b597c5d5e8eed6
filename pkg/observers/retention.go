package observers

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Session artifacts by extension: timelines, usage summaries, saved history
// images and recorded replies. Anything else in the directory is not ours.
var artifactExt = map[string]bool{
	".jsonl": true,
	".json":  true,
	".jpg":   true,
	".png":   true,
	".wav":   true,
}

// PurgeArtifacts deletes artifacts at the top level of dir last modified more
// than maxAge ago and reports how many went. A missing dir is not an error.
func PurgeArtifacts(dir string, maxAge time.Duration) (int, error) {
	if dir == "" || maxAge <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !artifactExt[filepath.Ext(entry.Name())] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// RunRetention sweeps dir right away and then on every interval tick, returning
// when ctx is done.
func RunRetention(ctx context.Context, dir string, maxAge, interval time.Duration, log *slog.Logger) {
	if dir == "" || maxAge <= 0 {
		return
	}
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		switch n, err := PurgeArtifacts(dir, maxAge); {
		case err != nil:
			log.Warn("artifact_purge_failed", "dir", dir, "removed", n, "error", err.Error())
		case n > 0:
			log.Info("artifacts_purged", "dir", dir, "removed", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
