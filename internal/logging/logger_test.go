package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/logging"
	"fieldsync/internal/services"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestConsoleLoggerRendersComponentAndAttrs(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "syncer").Info("sync pass complete", logging.Int("attempted", 3))
	logger.Debug("hidden")

	content := readLog(t, logPath)
	if !strings.Contains(content, "INFO syncer: sync pass complete attempted=3") {
		t.Fatalf("unexpected console line: %q", content)
	}
	if strings.Contains(content, "hidden") {
		t.Fatalf("debug line should be filtered at info level: %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", content)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("replay failed", logging.String(logging.FieldItemID, "1700000000000-abc"))

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["level"] != "warn" {
		t.Fatalf("expected lower-case level, got %v", entry["level"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
	if entry["item_id"] != "1700000000000-abc" {
		t.Fatalf("expected item_id attr, got %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "queue unavailable", "queue_unavailable",
		logging.String(logging.FieldImpact, "sync pass skipped"))

	content := readLog(t, logPath)
	for _, want := range []string{"event_type=queue_unavailable", `error_hint="run fieldsync logs for details"`, `impact="sync pass skipped"`} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ctx.log")
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithRequestID(services.WithItemID(context.Background(), "item-1"), "req-9")
	logging.NewComponentLogger(logging.WithContext(ctx, logger), "syncer").Info("replaying")

	content := readLog(t, logPath)
	if !strings.Contains(content, "INFO syncer[item-1]: replaying") || !strings.Contains(content, "correlation_id=req-9") {
		t.Fatalf("expected context fields, got %q", content)
	}
}

func TestNewDaemonLoggerWritesJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.RetentionDays = 1

	stale := filepath.Join(cfg.Paths.LogDir, "fieldsync-old.log")
	if err := os.WriteFile(stale, []byte("old\n"), 0o644); err != nil {
		t.Fatalf("write stale log: %v", err)
	}
	old := time.Now().AddDate(0, 0, -3)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	logger, path, err := logging.NewDaemonLogger(&cfg, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewDaemonLogger returned error: %v", err)
	}
	if filepath.Base(path) != "fieldsync-20260102T030405Z.log" {
		t.Fatalf("unexpected log path %q", path)
	}
	logger.Info("daemon started")

	if !strings.Contains(readLog(t, path), `"msg":"daemon started"`) {
		t.Fatalf("expected json entry in daemon log")
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale log to be pruned, stat err=%v", err)
	}
}

func TestPruneRunLogsKeepsPointerAndRecentFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	write := func(name string, mod time.Time) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatalf("chtimes %s: %v", name, err)
		}
		return path
	}
	old := write("fieldsync-20260101T000000Z.log", now.AddDate(0, 0, -10))
	recent := write("fieldsync-20260309T000000Z.log", now.AddDate(0, 0, -1))
	pointer := write("fieldsync.log", now.AddDate(0, 0, -30))

	if removed := logging.PruneRunLogs(logging.NewNop(), dir, 7, now); removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, path := range []string{recent, pointer} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s kept: %v", filepath.Base(path), err)
		}
	}
	if removed := logging.PruneRunLogs(nil, dir, 0, now); removed != 0 {
		t.Fatalf("retention 0 must keep everything, removed %d", removed)
	}
}
