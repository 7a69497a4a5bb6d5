package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateProximity(); err != nil {
		return err
	}
	if c.Tasks.TextMaxLength <= 0 {
		return errors.New("tasks.text_max_length must be positive")
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if c.Daemon.APIBind != "" {
		if _, _, err := net.SplitHostPort(c.Daemon.APIBind); err != nil {
			return fmt.Errorf("daemon.api_bind: %w", err)
		}
	}
	return nil
}

func (c *Config) validateAPI() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https, got %q", c.API.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("api.base_url must include a host, got %q", c.API.BaseURL)
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.MaxAttempts < 0 {
		return errors.New("sync.max_attempts must be >= 0 (0 retries forever)")
	}
	return ensurePositiveMap(map[string]int{
		"api.request_timeout":           c.API.RequestTimeout,
		"sync.interval":                 c.Sync.Interval,
		"sync.connectivity_timeout":     c.Sync.ConnectivityTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateProximity() error {
	if c.Proximity.RadiusMeters <= 0 {
		return errors.New("proximity.radius_meters must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

func (c *Config) validateNotifications() error {
	if c.Notifications.SyncMinItems < 1 {
		return errors.New("notifications.sync_min_items must be >= 1")
	}
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) topic URL, got %q", c.Notifications.NtfyTopic)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
