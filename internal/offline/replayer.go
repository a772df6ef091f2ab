package offline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"crossdock/internal/link"
	"crossdock/internal/logging"
	"crossdock/internal/notifications"
	"crossdock/internal/scan"
)

// Processor replays one queued scan through the reconciliation engine using
// the mode and manifest recorded at capture time, not the session's current
// task.
type Processor interface {
	ProcessQueued(ctx context.Context, entry QueuedScan) scan.Outcome
}

// Replayer drains the offline queue when connectivity returns. It never
// busy-polls: a drain starts only on the offline→online transition or an
// explicit Kick.
type Replayer struct {
	store       *Store
	processor   Processor
	monitor     *link.Monitor
	notifier    notifications.Service
	logger      *slog.Logger
	maxAttempts int
	retryDelay  time.Duration
	busyDelay   time.Duration

	draining    atomic.Bool
	unsubscribe func()
	wg          sync.WaitGroup

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// ReplayerOption configures optional Replayer behavior.
type ReplayerOption func(*Replayer)

// WithRetryDelay sets the pause after a failed replay attempt.
func WithRetryDelay(d time.Duration) ReplayerOption {
	return func(r *Replayer) { r.retryDelay = d }
}

// WithBusyDelay sets the pause before retrying when the engine's in-flight
// slot is held by a live scan.
func WithBusyDelay(d time.Duration) ReplayerOption {
	return func(r *Replayer) { r.busyDelay = d }
}

// NewReplayer wires the drain worker. maxAttempts <= 0 disables the cap.
func NewReplayer(store *Store, processor Processor, monitor *link.Monitor, notifier notifications.Service, logger *slog.Logger, maxAttempts int, opts ...ReplayerOption) *Replayer {
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	r := &Replayer{
		store:       store,
		processor:   processor,
		monitor:     monitor,
		notifier:    notifier,
		logger:      logging.NewComponentLogger(logger, "offline-replay"),
		maxAttempts: maxAttempts,
		retryDelay:  time.Second,
		busyDelay:   250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start subscribes to connectivity transitions. A drain fires whenever the
// link comes back up.
func (r *Replayer) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.unsubscribe = r.monitor.Subscribe(func(online bool) {
		if online {
			r.Kick()
		}
	})
}

// Stop detaches from the monitor and waits for an in-progress drain.
func (r *Replayer) Stop() {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Kick triggers a drain if one is not already running. Used on daemon
// startup when pending entries survived a restart, and by operator retry.
func (r *Replayer) Kick() {
	if !r.draining.CompareAndSwap(false, true) {
		return
	}

	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	if ctx == nil {
		r.draining.Store(false)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.draining.Store(false)
		r.drain(ctx)
	}()
}

// Draining reports whether a drain is in progress.
func (r *Replayer) Draining() bool {
	return r.draining.Load()
}

func (r *Replayer) drain(ctx context.Context) {
	var processed, failed int

	for {
		if ctx.Err() != nil {
			return
		}
		if !r.monitor.Online() {
			r.logger.Info("connectivity lost mid-drain, stopping replay")
			break
		}

		entry, err := r.store.NextPending(ctx)
		if err != nil {
			r.logger.Error("failed to fetch next queued scan",
				logging.Error(err),
				logging.String(logging.FieldEventType, "offline_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check offline queue database access"),
			)
			return
		}
		if entry == nil {
			break
		}

		outcome := r.processor.ProcessQueued(ctx, *entry)

		// A live scan holds the in-flight slot. Back off without burning
		// an attempt: the entry was never processed.
		if outcome.Code == scan.CodeScanInFlight {
			if !sleepCtx(ctx, r.busyDelay) {
				return
			}
			continue
		}

		if outcome.Success {
			if err := r.store.Remove(ctx, entry.ID); err != nil {
				r.logger.Error("failed to remove replayed scan", logging.Error(err), logging.Int64("entry_id", entry.ID))
				return
			}
			processed++
			r.logger.Info("queued scan replayed",
				logging.String(logging.FieldAWB, entry.AWB),
				logging.String(logging.FieldMode, string(entry.Mode)),
				logging.String("correlation_id", entry.CorrelationID),
				logging.Bool("duplicate", outcome.Duplicate),
			)
			continue
		}

		attempts := entry.AttemptCount + 1
		if r.maxAttempts > 0 && attempts >= r.maxAttempts {
			if err := r.store.MarkFailed(ctx, entry, outcome.Message); err != nil {
				r.logger.Error("failed to park exhausted scan", logging.Error(err), logging.Int64("entry_id", entry.ID))
				return
			}
			failed++
			r.logger.Warn("queued scan exhausted its attempts",
				logging.String(logging.FieldAWB, entry.AWB),
				logging.Int("attempts", attempts),
				logging.String("last_error", outcome.Message),
				logging.String(logging.FieldEventType, "offline_scan_exhausted"),
				logging.String(logging.FieldErrorHint, "inspect with 'crossdock queue list --failed'"),
				logging.String(logging.FieldImpact, "scan will not be applied until retried"),
			)
			if err := r.notifier.NotifyScanExhausted(ctx, entry.AWB, attempts, outcome.Message); err != nil {
				r.logger.Debug("exhausted-scan notification failed", logging.Error(err))
			}
			continue
		}

		if _, err := r.store.Requeue(ctx, entry, outcome.Message); err != nil {
			r.logger.Error("failed to requeue scan", logging.Error(err), logging.Int64("entry_id", entry.ID))
			return
		}
		if !sleepCtx(ctx, r.retryDelay) {
			return
		}
	}

	if processed > 0 || failed > 0 {
		r.logger.Info("offline replay finished",
			logging.Int("processed", processed),
			logging.Int("failed", failed),
		)
		if err := r.notifier.NotifyReplayCompleted(ctx, processed, failed); err != nil {
			r.logger.Debug("replay notification failed", logging.Error(err))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
