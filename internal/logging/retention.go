package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// runLogGlob matches the per-run daemon log files. The fieldsync.log pointer
// never matches.
const runLogGlob = "fieldsync-*.log"

// PruneRunLogs deletes per-run daemon logs in dir last modified more than
// days ago and returns how many were removed. days <= 0 keeps everything.
func PruneRunLogs(logger *slog.Logger, dir string, days int, now time.Time) int {
	if days <= 0 || dir == "" {
		return 0
	}
	matches, err := filepath.Glob(filepath.Join(dir, runLogGlob))
	if err != nil {
		return 0
	}
	cutoff := now.AddDate(0, 0, -days)

	removed := 0
	for _, path := range matches {
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "old daemon log could not be removed", "log_prune_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check ownership of paths.log_dir"),
				String(FieldImpact, "the file stays on disk until the next daemon start"),
			)
			continue
		}
		removed++
	}
	if removed > 0 && logger != nil {
		logger.Debug("pruned old daemon logs",
			Int("removed", removed),
			Int("retention_days", days),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}
