package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"crossdock/internal/debounce"
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

// Enqueuer captures shipment scans while the record store is unreachable.
// *offline.Store satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, awb string, mode scan.Mode, manifestCode string, source token.Source) (*offline.QueuedScan, error)
}

// Engine applies scanned tokens to the record store according to the
// session's operation mode. It owns the single in-flight slot: a second
// scan arriving while one is being applied is rejected, never queued
// behind it.
type Engine struct {
	normalizer *token.Normalizer
	debouncer  *debounce.Debouncer
	session    *session.Session
	history    *session.History
	store      records.Store
	queue      Enqueuer
	monitor    *link.Monitor
	emitter    *feedback.Emitter
	notifier   notifications.Service
	logger     *slog.Logger

	inFlight atomic.Bool
}

// New wires an Engine. The queue may be nil when offline capture is not
// configured; shipment scans while offline then fail instead of queueing.
func New(
	normalizer *token.Normalizer,
	debouncer *debounce.Debouncer,
	sess *session.Session,
	history *session.History,
	store records.Store,
	queue Enqueuer,
	monitor *link.Monitor,
	emitter *feedback.Emitter,
	notifier notifications.Service,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	return &Engine{
		normalizer: normalizer,
		debouncer:  debouncer,
		session:    sess,
		history:    history,
		store:      store,
		queue:      queue,
		monitor:    monitor,
		emitter:    emitter,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "engine"),
	}
}

// Session exposes the live session for read access by status surfaces.
func (e *Engine) Session() *session.Session {
	return e.session
}

// History exposes the session's outcome ring.
func (e *Engine) History() *session.History {
	return e.history
}

// SetMode switches the operator's task. The active manifest and the
// debounce window are cleared so the new task starts from a clean slate.
func (e *Engine) SetMode(mode scan.Mode) {
	e.session.SetMode(mode)
	e.debouncer.Reset()
	e.logger.Info("operation mode changed",
		logging.String(logging.FieldMode, string(mode)))
}

// ClearManifest drops the bound manifest without changing mode.
func (e *Engine) ClearManifest() {
	e.session.ClearManifest()
	e.logger.Info("active manifest cleared")
}

// ResetSession clears manifest context and session history. Mode is kept.
func (e *Engine) ResetSession() {
	e.session.ClearManifest()
	e.history.Reset()
	e.debouncer.Reset()
	e.logger.Info("session reset")
}

// Process applies one raw token from a live input source. It always
// returns an Outcome; expected conditions (duplicate, debounce, busy,
// validation failure) are reported through the outcome, not an error.
func (e *Engine) Process(ctx context.Context, raw string, source token.Source) scan.Outcome {
	ref := e.normalizer.Parse(raw)
	if ref.Kind == token.KindUnrecognized {
		return e.finish(scan.Failed(scan.CodeEmptyScan, "Empty scan ignored", ""), source)
	}

	if !e.debouncer.Check(ref.Value, source) {
		return e.finish(scan.Debounced(ref.Value), source)
	}

	if !e.inFlight.CompareAndSwap(false, true) {
		return e.finish(scan.Failed(scan.CodeScanInFlight, "A scan is already being processed, retry", ref.Value), source)
	}
	defer e.inFlight.Store(false)

	var outcome scan.Outcome
	switch ref.Kind {
	case token.KindManifest:
		outcome = e.applyManifest(ctx, ref)
	default:
		outcome = e.applyShipmentLive(ctx, ref, source)
	}
	return e.finish(outcome, source)
}

// ProcessQueued replays one offline-captured scan against the mode and
// manifest recorded at capture time, not the session's current ones. It
// satisfies offline.Processor.
func (e *Engine) ProcessQueued(ctx context.Context, entry offline.QueuedScan) scan.Outcome {
	if !e.inFlight.CompareAndSwap(false, true) {
		// Returned straight to the replayer, which backs off and
		// retries without burning an attempt. Not session history.
		return scan.Failed(scan.CodeScanInFlight, "A scan is already being processed", entry.AWB)
	}
	defer e.inFlight.Store(false)

	var manifest *records.Manifest
	if entry.Mode.UsesManifest() {
		if entry.ManifestCode == "" {
			return e.finish(scan.Failed(scan.CodeNoActiveManifest, "No manifest was bound when the scan was captured", entry.AWB), entry.Source)
		}
		m, err := e.store.FindManifestByCode(ctx, entry.ManifestCode)
		if err != nil {
			return e.finish(e.classifyFailure(err, entry.AWB), entry.Source)
		}
		if m == nil {
			return e.finish(scan.Failed(scan.CodeNotFound, fmt.Sprintf("Manifest %s not found", entry.ManifestCode), entry.AWB), entry.Source)
		}
		manifest = m
	}
	return e.finish(e.applyShipment(ctx, entry.AWB, entry.Mode, manifest), entry.Source)
}

// applyManifest handles a manifest-code token in the live path.
func (e *Engine) applyManifest(ctx context.Context, ref token.Reference) scan.Outcome {
	mode := e.session.Mode()
	if !mode.UsesManifest() {
		return scan.Failed(scan.CodeInvalidScanType,
			fmt.Sprintf("Manifest scans are not valid in %s mode", mode), ref.Value)
	}

	if active := e.session.ActiveManifest(); active != nil {
		return scan.Succeeded(fmt.Sprintf("Manifest %s already active", active.Code), active.Code)
	}

	manifest, err := e.store.FindManifestByCode(ctx, ref.Value)
	if err != nil {
		return e.classifyFailure(err, ref.Value)
	}
	if manifest == nil {
		return scan.Failed(scan.CodeNotFound, fmt.Sprintf("Manifest %s not found", ref.Value), ref.Value)
	}
	if outcome, ok := e.checkManifestStatus(mode, manifest); !ok {
		return outcome
	}

	e.session.BindManifest(manifest)
	e.logger.Info("manifest activated",
		logging.String(logging.FieldManifest, manifest.Code),
		logging.String(logging.FieldMode, string(mode)))
	return scan.ManifestActivated(fmt.Sprintf("Manifest %s activated", manifest.Code), manifest.Code)
}

// checkManifestStatus gates binding and replay on the manifest lifecycle:
// loading needs an open manifest, verification a departed one.
func (e *Engine) checkManifestStatus(mode scan.Mode, manifest *records.Manifest) (scan.Outcome, bool) {
	var want records.ManifestStatus
	switch mode {
	case scan.ModeLoadManifest:
		want = records.ManifestOpen
	case scan.ModeVerifyManifest:
		want = records.ManifestDeparted
	default:
		return scan.Outcome{}, true
	}
	if manifest.Status != want {
		return scan.Failed(scan.CodeWrongManifestStatus,
			fmt.Sprintf("Manifest %s is %s, needs %s for %s", manifest.Code, manifest.Status, want, mode),
			manifest.Code), false
	}
	return scan.Outcome{}, true
}

// applyShipmentLive routes a shipment token either to the record store or,
// when the link is down, to the offline queue.
func (e *Engine) applyShipmentLive(ctx context.Context, ref token.Reference, source token.Source) scan.Outcome {
	mode := e.session.Mode()
	if e.monitor != nil && !e.monitor.Online() {
		if e.queue == nil {
			return scan.Failed(scan.CodeSystemError, "Record store unreachable and no offline queue configured", ref.Value)
		}
		manifestCode := ""
		if mode.UsesManifest() {
			if active := e.session.ActiveManifest(); active != nil {
				manifestCode = active.Code
			}
		}
		entry, err := e.queue.Enqueue(ctx, ref.Value, mode, manifestCode, source)
		if err != nil {
			return e.classifyFailure(err, ref.Value)
		}
		e.logger.Info("scan captured offline",
			logging.String(logging.FieldAWB, ref.Value),
			logging.String(logging.FieldMode, string(mode)),
			logging.String("correlation_id", entry.CorrelationID))
		return scan.Queued(fmt.Sprintf("Offline, scan %s queued for replay", ref.Value), ref.Value)
	}

	var manifest *records.Manifest
	if mode.UsesManifest() {
		manifest = e.session.ActiveManifest()
	}
	return e.applyShipment(ctx, ref.Value, mode, manifest)
}

// applyShipment performs the mode-specific record mutation for one AWB.
// The manifest argument is the bound (live) or recorded (replay) manifest;
// nil when none applies.
func (e *Engine) applyShipment(ctx context.Context, awb string, mode scan.Mode, manifest *records.Manifest) scan.Outcome {
	shipment, err := e.store.FindShipmentByAWB(ctx, awb)
	if err != nil {
		return e.classifyFailure(err, awb)
	}
	if shipment == nil {
		return scan.Failed(scan.CodeNotFound, fmt.Sprintf("Shipment %s not found", awb), awb)
	}

	if mode.UsesManifest() {
		if manifest == nil {
			return scan.Failed(scan.CodeNoActiveManifest, "Scan a manifest barcode first", awb)
		}
		if outcome, ok := e.checkManifestStatus(mode, manifest); !ok {
			return outcome
		}
	}

	switch mode {
	case scan.ModeReceive:
		return e.receive(ctx, shipment)
	case scan.ModeLoadManifest:
		return e.load(ctx, shipment, manifest)
	case scan.ModeVerifyManifest:
		return e.verify(ctx, shipment, manifest)
	case scan.ModeDeliver:
		return e.deliver(ctx, shipment)
	default:
		return scan.Failed(scan.CodeSystemError, fmt.Sprintf("Unknown operation mode %s", mode), awb)
	}
}

// receive marks arrival. A shipment never seen before is arriving at its
// origin hub; anything else is arriving at the destination.
func (e *Engine) receive(ctx context.Context, shipment *records.Shipment) scan.Outcome {
	status := records.ShipmentReceivedAtDest
	site := "destination"
	if shipment.Status == records.ShipmentCreated {
		status = records.ShipmentReceivedAtOrigin
		site = "origin"
	}
	if err := e.store.UpdateShipmentStatus(ctx, shipment.ID, status); err != nil {
		return e.classifyFailure(err, shipment.AWB)
	}
	return scan.Succeeded(fmt.Sprintf("Shipment %s received at %s", shipment.AWB, site), shipment.AWB)
}

func (e *Engine) load(ctx context.Context, shipment *records.Shipment, manifest *records.Manifest) scan.Outcome {
	member, err := e.store.IsShipmentInManifest(ctx, manifest.ID, shipment.ID)
	if err != nil {
		return e.classifyFailure(err, shipment.AWB)
	}
	if member {
		return scan.DuplicateScan(fmt.Sprintf("Shipment %s already on manifest %s", shipment.AWB, manifest.Code), shipment.AWB)
	}
	if err := e.store.AddShipmentToManifest(ctx, manifest.ID, shipment.ID); err != nil {
		return e.classifyFailure(err, shipment.AWB)
	}
	if err := e.store.UpdateShipmentStatus(ctx, shipment.ID, records.ShipmentInTransit); err != nil {
		return e.classifyFailure(err, shipment.AWB)
	}
	return scan.Succeeded(fmt.Sprintf("Shipment %s loaded onto manifest %s", shipment.AWB, manifest.Code), shipment.AWB)
}

// verify checks an arriving shipment against the departed manifest. A miss
// is a misroute: the exception is recorded before the error outcome is
// returned, and the shipment's status is left untouched.
func (e *Engine) verify(ctx context.Context, shipment *records.Shipment, manifest *records.Manifest) scan.Outcome {
	member, err := e.store.IsShipmentInManifest(ctx, manifest.ID, shipment.ID)
	if err != nil {
		return e.classifyFailure(err, shipment.AWB)
	}
	if !member {
		return e.misroute(ctx, shipment, manifest)
	}
	if err := e.store.UpdateShipmentStatus(ctx, shipment.ID, records.ShipmentReceivedAtDest); err != nil {
		return e.classifyFailure(err, shipment.AWB)
	}
	return scan.Succeeded(fmt.Sprintf("Shipment %s verified against manifest %s", shipment.AWB, manifest.Code), shipment.AWB)
}

func (e *Engine) misroute(ctx context.Context, shipment *records.Shipment, manifest *records.Manifest) scan.Outcome {
	description := fmt.Sprintf("Shipment %s scanned during verification of manifest %s but is not on it", shipment.AWB, manifest.Code)
	exc := records.Exception{
		ID:          uuid.NewString(),
		ShipmentID:  shipment.ID,
		CNNumber:    shipment.AWB,
		Type:        records.ExceptionMisroute,
		Severity:    records.SeverityHigh,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.store.CreateException(ctx, exc); err != nil {
		return e.classifyFailure(err, shipment.AWB)
	}
	e.logger.Warn("misroute detected",
		logging.String(logging.FieldAWB, shipment.AWB),
		logging.String(logging.FieldManifest, manifest.Code),
		logging.String(logging.FieldImpact, "shipment requires manual rerouting"))
	if err := e.notifier.NotifyMisroute(ctx, shipment.AWB, manifest.Code, description); err != nil {
		e.logger.Warn("misroute notification failed", logging.Error(err))
	}
	return scan.Failed(scan.CodeMisroute,
		fmt.Sprintf("Shipment %s is not on manifest %s", shipment.AWB, manifest.Code), shipment.AWB)
}

func (e *Engine) deliver(ctx context.Context, shipment *records.Shipment) scan.Outcome {
	if err := e.store.UpdateShipmentStatus(ctx, shipment.ID, records.ShipmentDelivered); err != nil {
		return e.classifyFailure(err, shipment.AWB)
	}
	return scan.Succeeded(fmt.Sprintf("Shipment %s delivered", shipment.AWB), shipment.AWB)
}

// classifyFailure converts a store or queue error into an outcome. A
// cancelled context is the operator's own doing and safe to retry;
// everything else is a system fault.
func (e *Engine) classifyFailure(err error, reference string) scan.Outcome {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return scan.Failed(scan.CodeRequestCancelled, "Request cancelled, retry the scan", reference)
	}
	e.logger.Error("record operation failed",
		logging.Error(err),
		logging.String("reference", reference))
	return scan.Failed(scan.CodeSystemError, "Internal error, see logs", reference)
}

// finish records the outcome in session history, emits operator feedback,
// and logs it.
func (e *Engine) finish(outcome scan.Outcome, source token.Source) scan.Outcome {
	if e.history != nil {
		e.history.Append(outcome)
	}
	if e.emitter != nil {
		e.emitter.Emit(outcome)
	}
	level := slog.LevelInfo
	if outcome.IsError() {
		level = slog.LevelWarn
	}
	e.logger.Log(context.Background(), level, outcome.Message,
		logging.String("class", string(outcome.Class)),
		logging.String("code", string(outcome.Code)),
		logging.String("reference", outcome.Reference),
		logging.String(logging.FieldSource, string(source)))
	return outcome
}
