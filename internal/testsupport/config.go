package testsupport

import (
	"path/filepath"
	"testing"

	"fieldsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.API.BaseURL = "http://127.0.0.1:1"
	cfg.API.RequestTimeout = 5
	cfg.Sync.Interval = 1
	cfg.Sync.WatchNetwork = false

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithAPIBaseURL points the config at a test server.
func WithAPIBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.API.BaseURL = url
	}
}

// WithMaxAttempts sets the dead letter threshold.
func WithMaxAttempts(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sync.MaxAttempts = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
