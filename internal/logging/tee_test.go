package logging_test

import (
	"path/filepath"
	"strings"
	"testing"

	"fieldsync/internal/logging"
)

func TestTeeWritesToEveryHandler(t *testing.T) {
	dir := t.TempDir()
	consolePath := filepath.Join(dir, "console.log")
	jsonPath := filepath.Join(dir, "json.log")

	console, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{consolePath}})
	if err != nil {
		t.Fatalf("New console: %v", err)
	}
	jsonLogger, err := logging.New(logging.Options{Format: "json", Level: "warn", OutputPaths: []string{jsonPath}})
	if err != nil {
		t.Fatalf("New json: %v", err)
	}

	tee := logging.Tee(console, jsonLogger.Handler(), nil)
	tee.Info("only console")
	tee.With(logging.String(logging.FieldItemKind, "attendance")).Warn("both")

	consoleOut := readLog(t, consolePath)
	jsonOut := readLog(t, jsonPath)
	if !strings.Contains(consoleOut, "only console") || !strings.Contains(consoleOut, "item_kind=attendance") {
		t.Fatalf("console missing entries: %q", consoleOut)
	}
	if strings.Contains(jsonOut, "only console") {
		t.Fatalf("json handler should filter info: %q", jsonOut)
	}
	if !strings.Contains(jsonOut, `"item_kind":"attendance"`) {
		t.Fatalf("json handler missing warn entry: %q", jsonOut)
	}
}

func TestTeeWithoutHandlersDiscards(t *testing.T) {
	logger := logging.Tee(nil)
	if logger.Enabled(t.Context(), 12) {
		t.Fatal("expected a disabled logger")
	}
	logger.Error("discarded")
}
