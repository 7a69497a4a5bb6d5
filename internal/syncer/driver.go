package syncer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fieldsync/internal/config"
	"fieldsync/internal/logging"
	"fieldsync/internal/netwatch"
	"fieldsync/internal/queue"
	"fieldsync/internal/services"
)

// Skip reasons reported when a pass does not run.
const (
	SkipBusy    = "busy"
	SkipOffline = "offline"
)

// Store is the queue surface the driver needs.
type Store interface {
	List(ctx context.Context) ([]*queue.Item, error)
	Remove(ctx context.Context, id string) (bool, error)
	RecordFailure(ctx context.Context, id string, cause error) (int, error)
	DeadLetter(ctx context.Context, id string) (bool, error)
}

// Report summarizes one sync pass.
type Report struct {
	RequestID    string        `json:"request_id,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Attempted    int           `json:"attempted"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	DeadLettered int           `json:"dead_lettered"`
	Skipped      string        `json:"skipped,omitempty"`
}

// Status describes the driver for daemon status output.
type Status struct {
	Running    bool    `json:"running"`
	Busy       bool    `json:"busy"`
	Interval   string  `json:"interval"`
	LastReport *Report `json:"last_report,omitempty"`
	LastError  string  `json:"last_error,omitempty"`
}

// Driver runs sync passes.
type Driver struct {
	store       Store
	replayer    Replayer
	checker     netwatch.Checker
	logger      *slog.Logger
	interval    time.Duration
	maxAttempts int
	onReport    ReportHook

	busy  atomic.Bool
	nudge chan struct{}

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastReport *Report
	lastErr    error
}

// Option configures a Driver.
type Option func(*Driver)

// WithInterval sets the recurring trigger period.
func WithInterval(interval time.Duration) Option {
	return func(d *Driver) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

// WithMaxAttempts parks items after n failed replays. Zero retries forever.
func WithMaxAttempts(n int) Option {
	return func(d *Driver) {
		if n >= 0 {
			d.maxAttempts = n
		}
	}
}

// WithConnectivity sets the online check consulted before each pass.
func WithConnectivity(checker netwatch.Checker) Option {
	return func(d *Driver) {
		d.checker = checker
	}
}

// ReportHook observes background passes that attempted at least one item.
type ReportHook func(ctx context.Context, report Report)

// WithReportHook registers hook for background passes.
func WithReportHook(hook ReportHook) Option {
	return func(d *Driver) {
		d.onReport = hook
	}
}

// New constructs a driver. Without WithConnectivity the backend is assumed
// reachable.
func New(store Store, replayer Replayer, logger *slog.Logger, opts ...Option) *Driver {
	d := &Driver{
		store:    store,
		replayer: replayer,
		checker:  netwatch.Always(true),
		logger:   logging.NewComponentLogger(logger, "syncer"),
		interval: 30 * time.Second,
		nudge:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.checker == nil {
		d.checker = netwatch.Always(true)
	}
	return d
}

// NewFromConfig applies the [sync] section.
func NewFromConfig(cfg *config.Config, store Store, replayer Replayer, checker netwatch.Checker, logger *slog.Logger, opts ...Option) *Driver {
	base := []Option{
		WithInterval(cfg.SyncInterval()),
		WithMaxAttempts(cfg.Sync.MaxAttempts),
		WithConnectivity(checker),
	}
	return New(store, replayer, logger, append(base, opts...)...)
}

// Start launches the trigger loop. Calling Start on a running driver is a
// no-op.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.wg.Add(1)
	d.mu.Unlock()

	go d.loop(runCtx)

	d.logger.Info("sync driver started",
		logging.String(logging.FieldEventType, "sync_driver_started"),
		logging.Duration("interval", d.interval),
		logging.Int("max_attempts", d.maxAttempts),
	)
	return nil
}

// Stop cancels the trigger loop and waits for it to exit. A pass in progress
// finishes first.
func (d *Driver) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	d.wg.Wait()

	d.logger.Info("sync driver stopped",
		logging.String(logging.FieldEventType, "sync_driver_stopped"),
	)
}

// Running reports whether the trigger loop is active.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Nudge requests an extra pass without blocking. Requests made while one is
// already pending are coalesced.
func (d *Driver) Nudge() {
	select {
	case d.nudge <- struct{}{}:
	default:
	}
}

// LastReport returns the most recent pass that was not skipped.
func (d *Driver) LastReport() (Report, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastReport == nil {
		return Report{}, false
	}
	return *d.lastReport, true
}

// Status returns a snapshot for status output.
func (d *Driver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	status := Status{
		Running:  d.running,
		Busy:     d.busy.Load(),
		Interval: d.interval.String(),
	}
	if d.lastReport != nil {
		report := *d.lastReport
		status.LastReport = &report
	}
	if d.lastErr != nil {
		status.LastError = d.lastErr.Error()
	}
	return status
}

func (d *Driver) loop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.runPass(ctx, "start")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runPass(ctx, "interval")
		case <-d.nudge:
			d.runPass(ctx, "nudge")
		}
	}
}

func (d *Driver) runPass(ctx context.Context, trigger string) {
	// Stop must not abort a pass midway through the snapshot, nor the hook
	// that reports on it.
	passCtx := context.WithoutCancel(ctx)
	report, err := d.Sync(passCtx)
	if err != nil || report.Skipped != "" {
		return
	}
	if report.Attempted > 0 {
		d.logger.Info("sync pass complete",
			logging.String(logging.FieldEventType, "sync_pass_complete"),
			logging.String(logging.FieldCorrelationID, report.RequestID),
			logging.String("trigger", trigger),
			logging.Int("attempted", report.Attempted),
			logging.Int("succeeded", report.Succeeded),
			logging.Int("failed", report.Failed),
			logging.Int("dead_lettered", report.DeadLettered),
			logging.Duration("duration", report.Duration),
		)
		if d.onReport != nil {
			d.onReport(passCtx, report)
		}
	}
}

// Sync runs one pass and returns its report. It returns immediately with
// Skipped set when another pass is running or the backend is unreachable. An
// error means the queue could not be read; nothing was replayed.
func (d *Driver) Sync(ctx context.Context) (Report, error) {
	if !d.busy.CompareAndSwap(false, true) {
		return Report{Skipped: SkipBusy}, nil
	}
	defer d.busy.Store(false)

	if !d.checker.Online(ctx) {
		d.logger.Debug("backend unreachable; sync pass skipped")
		return Report{Skipped: SkipOffline}, nil
	}

	report := Report{RequestID: uuid.NewString(), StartedAt: time.Now()}
	ctx = services.WithRequestID(ctx, report.RequestID)
	logger := logging.WithContext(ctx, d.logger)

	items, err := d.store.List(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "queue unavailable; sync pass skipped", "queue_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the queue database under data_dir"),
			logging.String(logging.FieldImpact, "queued writes stay local until the next pass"),
		)
		d.setLastError(err)
		return report, services.Wrap(services.ErrStorage, "syncer", "list queue", "", err)
	}

	for _, item := range items {
		report.Attempted++
		d.replayItem(ctx, logger, item, &report)
	}

	report.Duration = time.Since(report.StartedAt)
	d.mu.Lock()
	d.lastReport = &report
	d.lastErr = nil
	d.mu.Unlock()
	return report, nil
}

func (d *Driver) replayItem(ctx context.Context, logger *slog.Logger, item *queue.Item, report *Report) {
	itemCtx := services.WithItemID(ctx, item.ID)
	itemLogger := logger.With(logging.Args(logging.Item(item.ID, string(item.Kind))...)...)

	if item.PayloadErr != nil {
		report.Failed++
		d.recordFailure(itemCtx, itemLogger, item, services.Wrap(services.ErrStorage, "syncer", "decode queue item", "", item.PayloadErr), report)
		return
	}
	if err := d.replayer.Replay(itemCtx, item); err != nil {
		report.Failed++
		d.recordFailure(itemCtx, itemLogger, item, err, report)
		return
	}

	report.Succeeded++
	if _, err := d.store.Remove(itemCtx, item.ID); err != nil {
		logging.ErrorWithContext(itemLogger, "replayed item could not be removed; it will be sent again", "queue_remove_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the queue database under data_dir"),
		)
		return
	}
	itemLogger.Debug("queue item replayed")
}

func (d *Driver) recordFailure(ctx context.Context, logger *slog.Logger, item *queue.Item, cause error, report *Report) {
	attempts, err := d.store.RecordFailure(ctx, item.ID, cause)
	if err != nil {
		logger.Error("failed to record replay failure", logging.Error(err))
		attempts = item.Attempts + 1
	}

	hint := "the item is retried on the next pass"
	if !services.Deferrable(cause) {
		hint = "inspect the item with `fieldsync queue list`; remove it if the backend will never accept it"
	}
	logging.WarnWithContext(logger, "queue item replay failed", "queue_replay_failed",
		logging.Error(cause),
		logging.Int("attempts", attempts),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "item stays queued"),
	)

	if d.maxAttempts <= 0 || attempts < d.maxAttempts {
		return
	}
	moved, err := d.store.DeadLetter(ctx, item.ID)
	if err != nil {
		logger.Error("failed to park item as dead letter", logging.Error(err))
		return
	}
	if moved {
		report.DeadLettered++
		logging.WarnWithContext(logger, "queue item parked after repeated failures", "queue_item_dead_lettered",
			logging.Int("attempts", attempts),
			logging.String(logging.FieldErrorHint, "run `fieldsync queue requeue` to retry or `fieldsync queue remove` to drop it"),
			logging.String(logging.FieldImpact, "item no longer retried automatically"),
		)
	}
}

func (d *Driver) setLastError(err error) {
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
}
