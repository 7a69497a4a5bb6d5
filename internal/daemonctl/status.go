package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"fieldsync/internal/api"
	"fieldsync/internal/config"
	"fieldsync/internal/ipc"
	"fieldsync/internal/preflight"
	"fieldsync/internal/queue"
	"fieldsync/internal/session"
)

// BuildStatusSnapshot collects daemon status and falls back to reading the
// queue database when the daemon is unreachable.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*api.StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snapshot := &api.StatusSnapshot{
		Daemon: api.DaemonStatus{
			QueueDBPath:  cfg.QueuePath(),
			LockFilePath: cfg.LockPath(),
			APIBaseURL:   cfg.API.BaseURL,
		},
	}

	client, err := ipc.Dial(cfg.SocketPath())
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			snapshot.Reachable = true
			snapshot.Daemon = *resp
		}
	}

	if !snapshot.Reachable {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		snapshot.Daemon.Queue, snapshot.Daemon.QueueError = offlineQueueStats(queryCtx, cfg)
	}

	snapshot.Checks = BuildSystemChecks(ctx, cfg, snapshot)
	return snapshot, nil
}

func offlineQueueStats(ctx context.Context, cfg *config.Config) (api.QueueStats, string) {
	if _, err := os.Stat(cfg.QueuePath()); errors.Is(err, os.ErrNotExist) {
		return api.FromQueueStats(queue.Stats{}), ""
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return api.QueueStats{}, err.Error()
	}
	defer store.Close()
	stats, err := store.Stats(ctx)
	if err != nil {
		return api.QueueStats{}, err.Error()
	}
	return api.FromQueueStats(stats), ""
}

// BuildSystemChecks resolves status lines that combine runtime state and config checks.
func BuildSystemChecks(ctx context.Context, cfg *config.Config, snapshot *api.StatusSnapshot) []api.StatusLine {
	lines := make([]api.StatusLine, 0, 6)
	status := snapshot.Daemon

	switch {
	case status.Running:
		lines = append(lines, api.StatusLine{Label: "Daemon", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", status.PID)})
	case snapshot.Reachable:
		lines = append(lines, api.StatusLine{Label: "Daemon", Severity: "warn", Detail: "Sync stopped (run `fieldsync start`)"})
	default:
		lines = append(lines, api.StatusLine{Label: "Daemon", Severity: "warn", Detail: "Not running (run `fieldsync start`)"})
	}

	lines = append(lines, resultLine(preflight.CheckBackendFromConfig(ctx, cfg), "warn"))
	lines = append(lines, resultLine(preflight.CheckSession(ctx, session.Open(cfg), nil), "warn"))
	lines = append(lines, queueLine(status))

	if status.Sync.LastReport != nil {
		lines = append(lines, lastSyncLine(status.Sync))
	}

	watch := preflight.CheckNetworkWatch(cfg, status.Running, status.NetworkWatch)
	switch {
	case !watch.Passed:
		lines = append(lines, api.StatusLine{Label: watch.Name, Severity: "warn", Detail: watch.Detail})
	case status.NetworkWatch:
		lines = append(lines, api.StatusLine{Label: watch.Name, Severity: "ok", Detail: watch.Detail})
	default:
		lines = append(lines, api.StatusLine{Label: watch.Name, Severity: "info", Detail: watch.Detail})
	}

	return lines
}

func resultLine(result preflight.Result, failSeverity string) api.StatusLine {
	severity := failSeverity
	switch {
	case result.Passed:
		severity = "ok"
	case strings.EqualFold(strings.TrimSpace(result.Detail), "Unknown"):
		severity = "info"
	}
	return api.StatusLine{Label: result.Name, Severity: severity, Detail: result.Detail}
}

func queueLine(status api.DaemonStatus) api.StatusLine {
	if status.QueueError != "" {
		return api.StatusLine{Label: "Queue", Severity: "error", Detail: status.QueueError}
	}
	stats := status.Queue
	switch {
	case stats.DeadLetter > 0:
		return api.StatusLine{Label: "Queue", Severity: "warn", Detail: fmt.Sprintf("%d pending, %d dead letters (run `fieldsync queue dead`)", stats.Pending, stats.DeadLetter)}
	case stats.Pending > 0:
		detail := fmt.Sprintf("%d pending", stats.Pending)
		if oldest, err := api.ParseTime(stats.Oldest); err == nil && !oldest.IsZero() {
			detail += ", oldest queued " + humanize.Time(oldest)
		}
		return api.StatusLine{Label: "Queue", Severity: "info", Detail: detail}
	default:
		return api.StatusLine{Label: "Queue", Severity: "ok", Detail: "Empty"}
	}
}

func lastSyncLine(status api.SyncStatus) api.StatusLine {
	report := status.LastReport
	detail := fmt.Sprintf("%d/%d delivered", report.Succeeded, report.Attempted)
	if report.Skipped != "" {
		detail = "Skipped: " + report.Skipped
	}
	if started, err := api.ParseTime(report.StartedAt); err == nil && !started.IsZero() {
		detail += " " + humanize.Time(started)
	}
	severity := "ok"
	switch {
	case status.LastError != "":
		severity = "error"
		detail += " (" + status.LastError + ")"
	case report.Failed > 0 || report.DeadLettered > 0:
		severity = "warn"
	case report.Skipped != "":
		severity = "info"
	}
	return api.StatusLine{Label: "Last sync", Severity: severity, Detail: detail}
}
