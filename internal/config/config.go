package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local state directories.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// API contains backend connection settings.
type API struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Sync contains configuration for the background sync driver.
type Sync struct {
	// Interval is the number of seconds between recurring sync passes.
	Interval int `toml:"interval"`
	// MaxAttempts moves an item to the dead letter list after this many failed
	// replays. Zero retries forever.
	MaxAttempts         int  `toml:"max_attempts"`
	ConnectivityTimeout int  `toml:"connectivity_timeout"`
	WatchNetwork        bool `toml:"watch_network"`
}

// Proximity contains the store check-in radius.
type Proximity struct {
	RadiusMeters float64 `toml:"radius_meters"`
}

// Tasks contains limits applied when completing workflow tasks.
type Tasks struct {
	TextMaxLength int `toml:"text_max_length"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Sync           bool   `toml:"sync"`
	DeadLetters    bool   `toml:"dead_letters"`
	SyncMinItems   int    `toml:"sync_min_items"`
}

// Daemon contains the optional local HTTP status API. An empty APIBind
// disables it; a non-empty APIToken requires bearer authentication.
type Daemon struct {
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Config encapsulates all configuration values for fieldsync.
//
// Configuration sections by subsystem:
//   - Paths: queue database, session file, and daemon runtime files
//   - API: backend base URL and request timeout
//   - Sync: recurring sync interval, retry cap, and reconnect detection
//   - Proximity: store check-in radius
//   - Tasks: task input limits
//   - Logging: log format, level, and retention
//   - Notifications: ntfy push notification settings
//   - Daemon: local status API
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Sync          Sync          `toml:"sync"`
	Proximity     Proximity     `toml:"proximity"`
	Tasks         Tasks         `toml:"tasks"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
	Daemon        Daemon        `toml:"daemon"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPathValue)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("fieldsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueuePath is the SQLite database holding pending backend writes.
func (c *Config) QueuePath() string {
	return filepath.Join(c.Paths.DataDir, queueDatabaseName)
}

// SessionPath is the JSON file holding auth tokens and the active visit.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Paths.DataDir, sessionFileName)
}

// LockPath is the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, lockFileName)
}

// SocketPath is the daemon IPC socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, socketFileName)
}

// PIDPath is written by the daemon so the CLI can force-stop it.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, pidFileName)
}

// RequestTimeout returns the backend request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeout) * time.Second
}

// SyncInterval returns the delay between recurring sync passes.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Sync.Interval) * time.Second
}

// NotifyTimeout returns the ntfy request timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// ConnectivityTimeout bounds the reachability probe run before each sync pass.
func (c *Config) ConnectivityTimeout() time.Duration {
	return time.Duration(c.Sync.ConnectivityTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
