package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"fieldsync/internal/backend"
	"fieldsync/internal/config"
	"fieldsync/internal/daemon"
	"fieldsync/internal/ipc"
	"fieldsync/internal/logging"
	"fieldsync/internal/logs"
	"fieldsync/internal/netwatch"
	"fieldsync/internal/notifications"
	"fieldsync/internal/queue"
	"fieldsync/internal/session"
	"fieldsync/internal/syncer"
	"fieldsync/internal/visit"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the fieldsync daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, logPath, err := logging.NewDaemonLogger(cfg, time.Now())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String("run_id", uuid.NewString()))
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update fieldsync.log link: %v\n", err)
	}
	logConfigSnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	driver := NewDriver(cfg, store, logger, syncer.WithReportHook(reportNotifier(notifier, logger)))

	d, err := daemon.New(cfg, store, driver, logger, logPath)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running daemon and queue database access"),
			logging.String(logging.FieldImpact, "queued actions will not sync until the daemon is started"),
		)
	}

	<-signalCtx.Done()
	logger.Info("fieldsync daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"),
	)
	return nil
}

// NewDriver wires a sync driver to the REST client and the stored session.
// A replayed check-in fills in the visit id of the active visit. The CLI uses
// it for one-off passes when no daemon is running.
func NewDriver(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...syncer.Option) *syncer.Driver {
	sessions := session.Open(cfg)
	client := backend.NewFromConfig(cfg, sessions)

	replayer := syncer.NewBackendReplayer(client, func(storeID string, v backend.StoreVisit) {
		if err := visit.ResolveQueuedCheckIn(sessions, storeID, v); err != nil {
			logging.WarnWithContext(logger, "failed to record replayed check-in", "checkin_resolve_failed",
				logging.Error(err),
				logging.String("store_id", storeID),
				logging.String("visit_id", v.ID),
				logging.String(logging.FieldErrorHint, "check that the session file under data_dir is writable"),
				logging.String(logging.FieldImpact, "check-out stays blocked until the session is updated"),
			)
		}
	})

	var checker netwatch.Checker
	probe, err := netwatch.NewProbeFromConfig(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "connectivity probe disabled", "connectivity_probe_disabled",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api.base_url"),
			logging.String(logging.FieldImpact, "sync passes run without a reachability check"),
		)
	} else {
		checker = probe
	}

	return syncer.NewFromConfig(cfg, store, replayer, checker, logger, opts...)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logs.CurrentName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("config snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("api_base_url", cfg.API.BaseURL),
		logging.Duration("sync_interval", cfg.SyncInterval()),
		logging.Int("max_attempts", cfg.Sync.MaxAttempts),
		logging.Bool("watch_network", cfg.Sync.WatchNetwork),
		logging.Float64("radius_meters", cfg.Proximity.RadiusMeters),
		logging.String("queue_path", cfg.QueuePath()),
		logging.Bool("status_api_enabled", cfg.Daemon.APIBind != ""),
	)
}
