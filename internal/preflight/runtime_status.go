package preflight

import (
	"context"

	"fieldsync/internal/backend"
	"fieldsync/internal/config"
	"fieldsync/internal/session"
)

// CheckBackendFromConfig probes api.base_url within sync.connectivity_timeout.
func CheckBackendFromConfig(ctx context.Context, cfg *config.Config) Result {
	if cfg == nil {
		return Result{Name: "Backend", Detail: "Unknown"}
	}
	return CheckBackend(ctx, cfg.API.BaseURL, cfg.ConnectivityTimeout())
}

// CheckSessionFromConfig checks the stored session against the configured
// backend.
func CheckSessionFromConfig(ctx context.Context, cfg *config.Config) Result {
	if cfg == nil {
		return Result{Name: "Session", Detail: "Unknown"}
	}
	sessions := session.Open(cfg)
	client := backend.NewFromConfig(cfg, sessions)
	return CheckSession(ctx, sessions, client.Me)
}

// CheckNetworkWatch reports whether reconnect detection is configured.
// Whether the netlink socket opened is only known to a running daemon.
func CheckNetworkWatch(cfg *config.Config, daemonRunning, monitorActive bool) Result {
	const name = "Network watch"
	switch {
	case cfg == nil:
		return Result{Name: name, Detail: "Unknown"}
	case !cfg.Sync.WatchNetwork:
		return Result{Name: name, Passed: true, Detail: "Disabled (interval sync only)"}
	case !daemonRunning:
		return Result{Name: name, Passed: true, Detail: "Inactive (daemon not running)"}
	case monitorActive:
		return Result{Name: name, Passed: true, Detail: "Netlink monitoring active"}
	default:
		return Result{Name: name, Detail: "Netlink unavailable (sync waits for the next interval)"}
	}
}
