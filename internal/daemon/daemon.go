package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"crossdock/internal/config"
	"crossdock/internal/debounce"
	"crossdock/internal/devices"
	"crossdock/internal/engine"
	"crossdock/internal/feedback"
	"crossdock/internal/link"
	"crossdock/internal/logging"
	"crossdock/internal/notifications"
	"crossdock/internal/offline"
	"crossdock/internal/records"
	"crossdock/internal/scan"
	"crossdock/internal/session"
	"crossdock/internal/token"
)

// Daemon coordinates the scan station services and enforces
// single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store    *records.SQLiteStore
	queue    *offline.Store
	sess     *session.Session
	history  *session.History
	bus      *session.Bus
	monitor  *link.Monitor
	engine   *engine.Engine
	replayer *offline.Replayer
	notifier notifications.Service
	hotplug  *devices.HotplugMonitor

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	pumps   sync.WaitGroup

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	Mode           scan.Mode
	ActiveManifest string
	ManifestStatus string
	Online         bool
	Draining       bool
	QueueStats     offline.Stats
	RecordsDBPath  string
	QueueDBPath    string
	LockPath       string
	SocketPath     string
}

// New constructs a daemon with initialized dependencies. Stores are
// injected so tests can point them at temp directories.
func New(cfg *config.Config, store *records.SQLiteStore, queue *offline.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || queue == nil {
		return nil, errors.New("daemon requires config, records store, and offline queue")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	sess := session.New()
	history := session.NewHistory()
	monitor := link.NewMonitor(true)
	notifier := notifications.NewService(cfg)

	var player feedback.TonePlayer
	if cfg.Feedback.Enabled {
		player = devices.NewBeeper(os.Stdout)
	}
	emitter := feedback.NewEmitter(player, logger)

	eng := engine.New(
		token.NewNormalizer(cfg.Scanner.ManifestPrefix),
		debounce.New(cfg.WedgeGuard(), cfg.CameraGuard()),
		sess,
		history,
		store,
		queue,
		monitor,
		emitter,
		notifier,
		logger,
	)
	replayer := offline.NewReplayer(queue, eng, monitor, notifier, logger, cfg.OfflineQueue.MaxAttempts)

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		queue:    queue,
		sess:     sess,
		history:  history,
		bus:      session.NewBus(),
		monitor:  monitor,
		engine:   eng,
		replayer: replayer,
		notifier: notifier,
		lockPath: filepath.Join(cfg.Paths.DataDir, "crossdockd.lock"),
	}
	d.lock = flock.New(d.lockPath)

	d.hotplug = devices.NewHotplugMonitor(cfg, logger,
		func(ctx context.Context, device string) { d.startWedge(ctx, device) },
		nil,
	)

	// Every token published on the bus, whatever device produced it,
	// funnels through the engine.
	d.bus.Subscribe(func(raw string, source token.Source) {
		d.engine.Process(d.runContext(), raw, source)
	})

	return d, nil
}

// runContext returns the lifecycle context for bus-driven work, falling
// back to Background between Start and Stop.
func (d *Daemon) runContext() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return context.Background()
	}
	return d.ctx
}

// Start acquires the single-instance lock and brings up the replayer,
// hotplug monitor, and device pumps.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another crossdock daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.ctx, d.cancel = runCtx, cancel
	d.mu.Unlock()

	d.replayer.Start(runCtx)
	// Entries left over from a previous run replay without waiting for a
	// link transition.
	d.replayer.Kick()

	if err := d.hotplug.Start(runCtx); err != nil {
		d.logger.Warn("hotplug monitor failed to start", logging.Error(err))
	}
	if device := d.cfg.Scanner.WedgeDevice; device != "" {
		d.startWedge(runCtx, device)
	}
	if device := d.cfg.Scanner.CameraDevice; device != "" {
		d.startCamera(runCtx, device)
	}

	d.running.Store(true)
	d.logger.Info("crossdock daemon started",
		logging.String("lock", d.lockPath),
		logging.String("socket", d.cfg.SocketPath()))
	return nil
}

// Stop stops background services and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
	d.mu.Unlock()

	d.pumps.Wait()
	d.replayer.Stop()
	d.hotplug.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("crossdock daemon stopped")
}

// Close stops the daemon and closes both stores.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if err := d.queue.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := d.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// startWedge opens the wedge device and pumps it onto the bus until the
// device goes away. Reattachment is handled by the hotplug monitor.
func (d *Daemon) startWedge(ctx context.Context, device string) {
	f, err := os.Open(device)
	if err != nil {
		d.logger.Warn("failed to open wedge device",
			logging.Error(err),
			logging.String("device", device),
			logging.String(logging.FieldErrorHint, "check device path and permissions"),
			logging.String(logging.FieldImpact, "wedge scans unavailable"),
		)
		return
	}

	wedge := devices.NewWedge(d.cfg.WedgeIdleFlush(), d.bus, d.logger)
	d.pumps.Add(1)
	go func() {
		defer d.pumps.Done()
		defer f.Close()
		if err := wedge.Run(ctx, f); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("wedge pump stopped",
				logging.Error(err),
				logging.String("device", device))
		}
	}()
}

// startCamera opens the camera decode stream and pumps it onto the bus.
func (d *Daemon) startCamera(ctx context.Context, device string) {
	f, err := os.Open(device)
	if err != nil {
		d.logger.Warn("failed to open camera device",
			logging.Error(err),
			logging.String("device", device),
			logging.String(logging.FieldErrorHint, "check device path and permissions"),
			logging.String(logging.FieldImpact, "camera scans unavailable"),
		)
		return
	}

	camera := devices.NewCamera(d.bus, d.logger)
	d.pumps.Add(1)
	go func() {
		defer d.pumps.Done()
		defer f.Close()
		if err := camera.Run(ctx, f); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("camera pump stopped",
				logging.Error(err),
				logging.String("device", device))
		}
	}()
}

// Scan feeds one token through the engine on behalf of an IPC caller.
func (d *Daemon) Scan(ctx context.Context, raw string, source token.Source) scan.Outcome {
	return d.engine.Process(ctx, raw, source)
}

// SetMode switches the operator's task.
func (d *Daemon) SetMode(mode scan.Mode) {
	d.engine.SetMode(mode)
}

// ClearManifest drops the active manifest binding.
func (d *Daemon) ClearManifest() {
	d.engine.ClearManifest()
}

// ResetSession clears manifest context and history.
func (d *Daemon) ResetSession() {
	d.engine.ResetSession()
}

// SetLink marks backend connectivity up or down. Coming back online
// triggers an offline-queue drain.
func (d *Daemon) SetLink(online bool) {
	d.monitor.SetOnline(online)
}

// History returns session outcomes, newest first.
func (d *Daemon) History() []scan.Outcome {
	return d.history.Entries()
}

// SessionStats returns the session counters.
func (d *Daemon) SessionStats() session.Stats {
	return d.history.Stats()
}

// Status reports runtime information for the status surfaces.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Mode:          d.sess.Mode(),
		Online:        d.monitor.Online(),
		Draining:      d.replayer.Draining(),
		RecordsDBPath: d.store.Path(),
		QueueDBPath:   d.queue.Path(),
		LockPath:      d.lockPath,
		SocketPath:    d.cfg.SocketPath(),
	}
	if m := d.sess.ActiveManifest(); m != nil {
		st.ActiveManifest = m.Code
		st.ManifestStatus = string(m.Status)
	}
	if stats, err := d.queue.Stats(ctx); err == nil {
		st.QueueStats = stats
	}
	return st
}

// QueueList returns offline queue entries, optionally filtered by status.
func (d *Daemon) QueueList(ctx context.Context, statuses []offline.Status) ([]*offline.QueuedScan, error) {
	return d.queue.List(ctx, statuses...)
}

// QueueRetry moves failed entries back to pending and kicks a drain.
// Empty ids means all failed entries.
func (d *Daemon) QueueRetry(ctx context.Context, ids []int64) (int64, error) {
	updated, err := d.queue.RetryFailed(ctx, ids...)
	if err != nil {
		return 0, err
	}
	if updated > 0 && d.monitor.Online() {
		d.replayer.Kick()
	}
	return updated, nil
}

// QueueClearFailed removes entries from the failed set.
func (d *Daemon) QueueClearFailed(ctx context.Context) (int64, error) {
	return d.queue.ClearFailed(ctx)
}

// QueueClear removes every queued entry.
func (d *Daemon) QueueClear(ctx context.Context) (int64, error) {
	return d.queue.Clear(ctx)
}

// TestNotification pushes a test message through the notifier.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.TestNotification(ctx)
}
