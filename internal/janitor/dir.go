package janitor

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ceph-check/internal/logs"
)

// ReportDir is the directory report files are written to. Only regular
// files whose name starts with Prefix are considered.
type ReportDir struct {
	Path   string
	Prefix string
	MaxAge time.Duration
	logger *logs.Logger
}

func NewReportDir(path, prefix string, maxAge time.Duration, logger *logs.Logger) *ReportDir {
	return &ReportDir{
		Path:   path,
		Prefix: prefix,
		MaxAge: maxAge,
		logger: logger.WithComponent("janitor"),
	}
}

// RemoveExpired deletes report files last modified more than MaxAge before
// now and returns how many were removed.
func (d *ReportDir) RemoveExpired(now time.Time) int {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		d.logger.Warn("cannot list report dir", "dir", d.Path, "error", err)
		return 0
	}

	cutoff := now.Add(-d.MaxAge)
	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasPrefix(e.Name(), d.Prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(d.Path, e.Name())
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				d.logger.Warn("cannot remove stale report file", "path", path, "error", err)
			}
			continue
		}
		d.logger.Debug("stale report file removed", "path", path, "modified", info.ModTime().Format(time.RFC3339))
		removed++
	}
	return removed
}
