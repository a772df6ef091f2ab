package devices

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"crossdock/internal/config"
	"crossdock/internal/logging"
)

// HotplugMonitor listens for udev netlink events so the daemon notices the
// wedge scanner being unplugged or reattached without polling /dev.
type HotplugMonitor struct {
	logger   *slog.Logger
	device   string
	onAttach func(ctx context.Context, device string)
	onDetach func(ctx context.Context, device string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewHotplugMonitor creates a monitor for the configured wedge device.
// Returns nil when no device is configured; a nil monitor is a safe no-op.
func NewHotplugMonitor(
	cfg *config.Config,
	logger *slog.Logger,
	onAttach func(ctx context.Context, device string),
	onDetach func(ctx context.Context, device string),
) *HotplugMonitor {
	if cfg == nil {
		return nil
	}

	device := strings.TrimSpace(cfg.Scanner.WedgeDevice)
	if device == "" {
		return nil
	}

	return &HotplugMonitor{
		logger:   logging.NewComponentLogger(logger, "hotplug-monitor"),
		device:   device,
		onAttach: onAttach,
		onDetach: onDetach,
	}
}

// Start begins listening for udev netlink events. A connect failure is
// non-fatal: scans still flow, the daemon just cannot report unplugs.
func (m *HotplugMonitor) Start(ctx context.Context) error {
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
		m.logger.Warn("failed to connect to netlink socket; scanner hotplug detection unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "scanner unplug will not be reported"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
		logging.String("device", m.device),
	)
	return nil
}

// Stop shuts the monitor down.
func (m *HotplugMonitor) Stop() {
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

	m.logger.Info("hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *HotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *HotplugMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
			)
		}
	}
}

// buildMatcher matches input-subsystem add/remove events. Filtering down
// to the configured device happens in handleEvent, since DEVNAME is not
// matchable as an env rule across kernels.
func (m *HotplugMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "input",
		},
	})
	return rules
}

func (m *HotplugMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	devname := extractDeviceName(uevent)
	if devname == "" || devname != m.device {
		return
	}

	switch uevent.Action {
	case netlink.ADD:
		m.logger.Info("scanner attached",
			logging.String(logging.FieldEventType, "scanner_attached"),
			logging.String("device", devname),
		)
		if m.onAttach != nil {
			m.onAttach(ctx, devname)
		}
	case netlink.REMOVE:
		m.logger.Warn("scanner detached",
			logging.String(logging.FieldEventType, "scanner_detached"),
			logging.String("device", devname),
			logging.String(logging.FieldImpact, "wedge scans unavailable until reattached"),
		)
		if m.onDetach != nil {
			m.onDetach(ctx, devname)
		}
	}
}

func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/dev/") {
			return "/dev/" + devname
		}
		return devname
	}

	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	if len(parts) == 0 {
		return ""
	}
	return "/dev/" + parts[len(parts)-1]
}
