package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"fieldsync/internal/api"
	"fieldsync/internal/config"
	"fieldsync/internal/logging"
	"fieldsync/internal/netwatch"
	"fieldsync/internal/queue"
	"fieldsync/internal/syncer"
)

// Daemon coordinates the background sync services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	queueSvc *api.QueueService
	driver   *syncer.Driver
	monitor  *netwatch.Monitor
	api      *apiServer
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Sync         syncer.Status
	Queue        queue.Stats
	QueueError   string
	NetworkWatch bool
	QueueDBPath  string
	LockFilePath string
	LogPath      string
	APIBaseURL   string
}

// New constructs a daemon around an opened queue store and a sync driver
// replaying against it. When sync.watch_network is set, interface changes
// reported by udev nudge the driver.
func New(cfg *config.Config, store *queue.Store, driver *syncer.Driver, logger *slog.Logger, logPath string) (*Daemon, error) {
	if cfg == nil || store == nil || driver == nil {
		return nil, errors.New("daemon requires config, store, and sync driver")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		queueSvc: api.NewQueueService(store),
		driver:   driver,
		logPath:  logPath,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	if cfg.Sync.WatchNetwork {
		d.monitor = netwatch.NewMonitor(logger, driver.Nudge)
	}
	apiSrv, err := newAPIServer(cfg, d, logging.NewComponentLogger(logger, "status-api"))
	if err != nil {
		return nil, err
	}
	d.api = apiSrv
	return d, nil
}

// Start acquires the daemon lock and launches the sync driver, the network
// monitor, and the status API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(d.cfg.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("ensure log directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fieldsync daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.driver.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start sync driver: %w", err)
	}
	if err := d.monitor.Start(d.ctx); err != nil {
		d.driver.Stop()
		d.abortStart()
		return fmt.Errorf("start network monitor: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.monitor.Stop()
		d.driver.Stop()
		d.abortStart()
		return err
	}

	d.running.Store(true)
	d.logger.Info("fieldsync daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Bool("network_watch", d.monitor.Running()),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

// Stop stops background sync and releases the daemon lock. A sync pass in
// progress finishes first.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	d.monitor.Stop()
	d.driver.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start reports a running instance"),
			logging.String(logging.FieldImpact, "next daemon start may be refused"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("fieldsync daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// SyncNow runs one sync pass immediately, whether or not the recurring loop
// is active. A pass already in progress yields a skipped report.
func (d *Daemon) SyncNow(ctx context.Context) (syncer.Report, error) {
	return d.driver.Sync(ctx)
}

// ListQueue returns queue items in replay order filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]api.QueueItem, error) {
	return d.queueSvc.List(ctx, statuses...)
}

// DescribeItem returns a single queue item or nil when absent.
func (d *Daemon) DescribeItem(ctx context.Context, id string) (*api.QueueItem, error) {
	return d.queueSvc.Describe(ctx, id)
}

// RemoveItems deletes queue items by id and reports how many existed.
func (d *Daemon) RemoveItems(ctx context.Context, ids []string) (int64, error) {
	var removed int64
	for _, id := range ids {
		ok, err := d.store.Remove(ctx, strings.TrimSpace(id))
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	if removed > 0 {
		d.logger.Info("queue items removed",
			logging.String(logging.FieldEventType, "queue_items_removed"),
			logging.Int64("removed_count", removed),
		)
	}
	return removed, nil
}

// ClearQueue removes all queue items, dead letters included.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// Requeue moves dead letters back to pending. Without ids every dead letter
// is requeued. A running driver is nudged so the items replay promptly.
func (d *Daemon) Requeue(ctx context.Context, ids []string) (int64, error) {
	var updated int64
	if len(ids) == 0 {
		n, err := d.store.RequeueAll(ctx)
		if err != nil {
			return 0, err
		}
		updated = n
	} else {
		for _, id := range ids {
			ok, err := d.store.Requeue(ctx, strings.TrimSpace(id))
			if err != nil {
				return updated, err
			}
			if ok {
				updated++
			}
		}
	}
	if updated > 0 && d.running.Load() {
		d.driver.Nudge()
	}
	return updated, nil
}

// QueueStats returns queue counters.
func (d *Daemon) QueueStats(ctx context.Context) (queue.Stats, error) {
	return d.store.Stats(ctx)
}

// APIAddr returns the status API listen address, or "" when it is disabled
// or not started.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Sync:         d.driver.Status(),
		NetworkWatch: d.monitor.Running(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
		APIBaseURL:   d.cfg.API.BaseURL,
	}
	stats, err := d.store.Stats(ctx)
	if err != nil {
		status.QueueError = err.Error()
	} else {
		status.Queue = stats
	}
	return status
}

// APIStatus converts Status to its wire form.
func (s Status) APIStatus() api.DaemonStatus {
	return api.DaemonStatus{
		Running:      s.Running,
		PID:          s.PID,
		QueueDBPath:  s.QueueDBPath,
		LockFilePath: s.LockFilePath,
		LogPath:      s.LogPath,
		APIBaseURL:   s.APIBaseURL,
		NetworkWatch: s.NetworkWatch,
		Sync:         api.FromSyncStatus(s.Sync),
		Queue:        api.FromQueueStats(s.Queue),
		QueueError:   s.QueueError,
	}
}
