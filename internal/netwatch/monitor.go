package netwatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"fieldsync/internal/logging"
)

// Monitor listens for udev netlink events on network interfaces and calls
// onChange for each one.
type Monitor struct {
	logger   *slog.Logger
	onChange func()

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewMonitor creates a monitor. A nil onChange makes every event a no-op.
func NewMonitor(logger *slog.Logger, onChange func()) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Monitor{
		logger:   logging.NewComponentLogger(logger, "netwatch"),
		onChange: onChange,
	}
}

// Start begins listening. A netlink connection failure is logged and
// otherwise ignored; the periodic sync trigger still runs.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; reconnect sync will wait for the next interval",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open netlink sockets"),
			logging.String(logging.FieldImpact, "sync on reconnect unavailable"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.loop(ctx, conn, quit)

	m.logger.Info("network monitor started",
		logging.String(logging.FieldEventType, "netlink_monitor_started"),
	)
	return nil
}

// Stop closes the netlink connection. Safe to call repeatedly.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("network monitor stopped",
		logging.String(logging.FieldEventType, "netlink_monitor_stopped"),
	)
}

// Running reports whether the monitor is listening.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(events, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case event := <-events:
			m.handleEvent(event)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "sync on reconnect may be delayed"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=net with ACTION add, change, move, or online.
func buildMatcher() netlink.Matcher {
	action := "^(add|change|move|online)$"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "^net$",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(event netlink.UEvent) {
	m.logger.Debug("network interface event",
		logging.String("action", string(event.Action)),
		logging.String("interface", event.Env["INTERFACE"]),
	)
	if m.onChange != nil {
		m.onChange()
	}
}
