package engine

import (
	"context"
	"testing"
	"time"

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

type fakeStore struct {
	shipments  map[string]*records.Shipment
	manifests  map[string]*records.Manifest
	members    map[int64]map[int64]bool
	exceptions []records.Exception
	failWith   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		shipments: make(map[string]*records.Shipment),
		manifests: make(map[string]*records.Manifest),
		members:   make(map[int64]map[int64]bool),
	}
}

func (f *fakeStore) addShipment(id int64, awb string, status records.ShipmentStatus) {
	f.shipments[awb] = &records.Shipment{ID: id, AWB: awb, Status: status}
}

func (f *fakeStore) addManifest(id int64, code string, status records.ManifestStatus) {
	f.manifests[code] = &records.Manifest{ID: id, Code: code, Status: status}
}

func (f *fakeStore) FindShipmentByAWB(ctx context.Context, awb string) (*records.Shipment, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	sh, ok := f.shipments[awb]
	if !ok {
		return nil, nil
	}
	cp := *sh
	return &cp, nil
}

func (f *fakeStore) UpdateShipmentStatus(ctx context.Context, id int64, status records.ShipmentStatus) error {
	if f.failWith != nil {
		return f.failWith
	}
	for _, sh := range f.shipments {
		if sh.ID == id {
			sh.Status = status
			return nil
		}
	}
	return context.Canceled
}

func (f *fakeStore) FindManifestByCode(ctx context.Context, code string) (*records.Manifest, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	m, ok := f.manifests[code]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) IsShipmentInManifest(ctx context.Context, manifestID, shipmentID int64) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	return f.members[manifestID][shipmentID], nil
}

func (f *fakeStore) AddShipmentToManifest(ctx context.Context, manifestID, shipmentID int64) error {
	if f.failWith != nil {
		return f.failWith
	}
	if f.members[manifestID] == nil {
		f.members[manifestID] = make(map[int64]bool)
	}
	f.members[manifestID][shipmentID] = true
	return nil
}

func (f *fakeStore) CreateException(ctx context.Context, exc records.Exception) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.exceptions = append(f.exceptions, exc)
	return nil
}

type fakeQueue struct {
	entries []offline.QueuedScan
}

func (f *fakeQueue) Enqueue(ctx context.Context, awb string, mode scan.Mode, manifestCode string, source token.Source) (*offline.QueuedScan, error) {
	entry := offline.QueuedScan{
		ID:            int64(len(f.entries) + 1),
		CorrelationID: "test",
		AWB:           awb,
		Mode:          mode,
		ManifestCode:  manifestCode,
		Source:        source,
		Status:        offline.StatusPending,
		EnqueuedAt:    time.Now().UTC(),
	}
	f.entries = append(f.entries, entry)
	return &entry, nil
}

type harness struct {
	engine  *Engine
	store   *fakeStore
	queue   *fakeQueue
	monitor *link.Monitor
	history *session.History
	clock   time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:   newFakeStore(),
		queue:   &fakeQueue{},
		monitor: link.NewMonitor(true),
		history: session.NewHistory(),
		clock:   time.Unix(1_700_000_000, 0),
	}
	deb := debounce.New(75*time.Millisecond, 2*time.Second,
		debounce.WithClock(func() time.Time { return h.clock }))
	h.engine = New(
		token.NewNormalizer("MAN-"),
		deb,
		session.New(),
		h.history,
		h.store,
		h.queue,
		h.monitor,
		feedback.NewEmitter(nil, logging.NewNop()),
		notifications.NewNop(),
		logging.NewNop(),
	)
	return h
}

// scanAt advances the fake clock past both debounce windows before
// processing, so tests exercise business logic rather than the guard.
func (h *harness) scanAt(raw string, source token.Source) scan.Outcome {
	h.clock = h.clock.Add(5 * time.Second)
	return h.engine.Process(context.Background(), raw, source)
}

func TestProcessEmptyScan(t *testing.T) {
	h := newHarness(t)

	outcome := h.scanAt("  \x1d ", token.SourceWedge)
	if outcome.Code != scan.CodeEmptyScan {
		t.Fatalf("expected EMPTY_SCAN, got %q (%s)", outcome.Code, outcome.Message)
	}
	if got := h.history.Stats().ErrorCount; got != 1 {
		t.Fatalf("expected 1 error in history, got %d", got)
	}
}

func TestProcessReceiveStatusTransitions(t *testing.T) {
	h := newHarness(t)
	h.store.addShipment(1, "TAC100", records.ShipmentCreated)
	h.store.addShipment(2, "TAC200", records.ShipmentInTransit)

	outcome := h.scanAt("TAC100", token.SourceCamera)
	if !outcome.Success {
		t.Fatalf("expected success, got %q: %s", outcome.Code, outcome.Message)
	}
	if got := h.store.shipments["TAC100"].Status; got != records.ShipmentReceivedAtOrigin {
		t.Fatalf("created shipment should arrive at origin, got %s", got)
	}

	outcome = h.scanAt("TAC200", token.SourceCamera)
	if !outcome.Success {
		t.Fatalf("expected success, got %q: %s", outcome.Code, outcome.Message)
	}
	if got := h.store.shipments["TAC200"].Status; got != records.ShipmentReceivedAtDest {
		t.Fatalf("in-transit shipment should arrive at destination, got %s", got)
	}
}

func TestProcessUnknownShipment(t *testing.T) {
	h := newHarness(t)

	outcome := h.scanAt("TAC404", token.SourceWedge)
	if outcome.Code != scan.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %q", outcome.Code)
	}
}

func TestProcessManifestScanInReceiveMode(t *testing.T) {
	h := newHarness(t)
	h.store.addManifest(1, "MAN-0001", records.ManifestOpen)

	outcome := h.scanAt("MAN-0001", token.SourceCamera)
	if outcome.Code != scan.CodeInvalidScanType {
		t.Fatalf("expected INVALID_SCAN_TYPE, got %q", outcome.Code)
	}
	if h.engine.Session().ActiveManifest() != nil {
		t.Fatal("manifest must not bind in RECEIVE mode")
	}
}

func TestLoadManifestFlow(t *testing.T) {
	h := newHarness(t)
	h.store.addManifest(7, "MAN-0042", records.ManifestOpen)
	h.store.addShipment(1, "TAC555", records.ShipmentReceivedAtOrigin)
	h.engine.SetMode(scan.ModeLoadManifest)

	// Shipment before any manifest is bound.
	outcome := h.scanAt("TAC555", token.SourceWedge)
	if outcome.Code != scan.CodeNoActiveManifest {
		t.Fatalf("expected NO_ACTIVE_MANIFEST, got %q", outcome.Code)
	}

	outcome = h.scanAt("MAN-0042", token.SourceWedge)
	if outcome.Class != scan.ClassManifestActivated {
		t.Fatalf("expected manifest activation, got %q: %s", outcome.Class, outcome.Message)
	}
	active := h.engine.Session().ActiveManifest()
	if active == nil || active.Code != "MAN-0042" {
		t.Fatalf("expected MAN-0042 bound, got %+v", active)
	}

	outcome = h.scanAt("TAC555", token.SourceWedge)
	if !outcome.Success || outcome.Duplicate {
		t.Fatalf("expected first load to succeed, got %+v", outcome)
	}
	if !h.store.members[7][1] {
		t.Fatal("expected membership row")
	}
	if got := h.store.shipments["TAC555"].Status; got != records.ShipmentInTransit {
		t.Fatalf("expected IN_TRANSIT after load, got %s", got)
	}

	// Same AWB again: duplicate, no error, membership unchanged.
	outcome = h.scanAt("TAC555", token.SourceWedge)
	if !outcome.Duplicate {
		t.Fatalf("expected duplicate outcome, got %+v", outcome)
	}
	if outcome.IsError() {
		t.Fatal("duplicate must not be an error")
	}
	if got := h.history.Stats().DuplicateCount; got != 1 {
		t.Fatalf("expected 1 duplicate counted, got %d", got)
	}
}

func TestManifestAlreadyActiveIsNoOp(t *testing.T) {
	h := newHarness(t)
	h.store.addManifest(7, "MAN-0042", records.ManifestOpen)
	h.store.addManifest(8, "MAN-0043", records.ManifestOpen)
	h.engine.SetMode(scan.ModeLoadManifest)

	h.scanAt("MAN-0042", token.SourceWedge)
	outcome := h.scanAt("MAN-0043", token.SourceWedge)
	if !outcome.Success || outcome.Class == scan.ClassManifestActivated {
		t.Fatalf("expected plain success, got %+v", outcome)
	}
	if active := h.engine.Session().ActiveManifest(); active.Code != "MAN-0042" {
		t.Fatalf("bound manifest must be unchanged, got %s", active.Code)
	}
}

func TestLoadRejectsDepartedManifest(t *testing.T) {
	h := newHarness(t)
	h.store.addManifest(3, "MAN-0009", records.ManifestDeparted)
	h.engine.SetMode(scan.ModeLoadManifest)

	outcome := h.scanAt("MAN-0009", token.SourceWedge)
	if outcome.Code != scan.CodeWrongManifestStatus {
		t.Fatalf("expected WRONG_MANIFEST_STATUS, got %q", outcome.Code)
	}
	if h.engine.Session().ActiveManifest() != nil {
		t.Fatal("departed manifest must not bind for loading")
	}
}

func TestVerifyRequiresDepartedManifest(t *testing.T) {
	h := newHarness(t)
	h.store.addManifest(3, "MAN-0009", records.ManifestOpen)
	h.engine.SetMode(scan.ModeVerifyManifest)

	outcome := h.scanAt("MAN-0009", token.SourceWedge)
	if outcome.Code != scan.CodeWrongManifestStatus {
		t.Fatalf("expected WRONG_MANIFEST_STATUS, got %q", outcome.Code)
	}
}

func TestVerifyManifestFlow(t *testing.T) {
	h := newHarness(t)
	h.store.addManifest(5, "MAN-0100", records.ManifestDeparted)
	h.store.addShipment(10, "TAC700", records.ShipmentInTransit)
	h.store.addShipment(11, "TAC800", records.ShipmentInTransit)
	h.store.members[5] = map[int64]bool{10: true}
	h.engine.SetMode(scan.ModeVerifyManifest)

	h.scanAt("MAN-0100", token.SourceWedge)

	outcome := h.scanAt("TAC700", token.SourceWedge)
	if !outcome.Success {
		t.Fatalf("expected verification success, got %+v", outcome)
	}
	if got := h.store.shipments["TAC700"].Status; got != records.ShipmentReceivedAtDest {
		t.Fatalf("expected RECEIVED_AT_DEST, got %s", got)
	}

	// TAC800 is not on the manifest: misroute exception, status untouched.
	outcome = h.scanAt("TAC800", token.SourceWedge)
	if outcome.Code != scan.CodeMisroute {
		t.Fatalf("expected MISROUTE, got %q", outcome.Code)
	}
	if len(h.store.exceptions) != 1 {
		t.Fatalf("expected 1 exception, got %d", len(h.store.exceptions))
	}
	exc := h.store.exceptions[0]
	if exc.Type != records.ExceptionMisroute || exc.Severity != records.SeverityHigh {
		t.Fatalf("unexpected exception %+v", exc)
	}
	if exc.CNNumber != "TAC800" || exc.ShipmentID != 11 {
		t.Fatalf("exception references wrong shipment: %+v", exc)
	}
	if got := h.store.shipments["TAC800"].Status; got != records.ShipmentInTransit {
		t.Fatalf("misrouted shipment status must be untouched, got %s", got)
	}
}

func TestDeliverMode(t *testing.T) {
	h := newHarness(t)
	h.store.addShipment(1, "TAC900", records.ShipmentReceivedAtDest)
	h.engine.SetMode(scan.ModeDeliver)

	outcome := h.scanAt("TAC900", token.SourceCamera)
	if !outcome.Success {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if got := h.store.shipments["TAC900"].Status; got != records.ShipmentDelivered {
		t.Fatalf("expected DELIVERED, got %s", got)
	}
}

func TestDebounceSuppressesRapidRepeat(t *testing.T) {
	h := newHarness(t)
	h.store.addShipment(1, "TAC100", records.ShipmentCreated)

	first := h.scanAt("TAC100", token.SourceWedge)
	if !first.Success {
		t.Fatalf("first scan should succeed, got %+v", first)
	}

	// 10ms later, inside the wedge window.
	h.clock = h.clock.Add(10 * time.Millisecond)
	second := h.engine.Process(context.Background(), "TAC100", token.SourceWedge)
	if second.Class != scan.ClassDebounced {
		t.Fatalf("expected debounced outcome, got %+v", second)
	}
	if second.IsError() {
		t.Fatal("debounce must not count as an error")
	}

	stats := h.history.Stats()
	if stats.DebouncedCount != 1 || stats.ErrorCount != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	// The shipment moved exactly once.
	if got := h.store.shipments["TAC100"].Status; got != records.ShipmentReceivedAtOrigin {
		t.Fatalf("expected single transition, got %s", got)
	}
}

func TestModeSwitchClearsManifest(t *testing.T) {
	h := newHarness(t)
	h.store.addManifest(1, "MAN-0001", records.ManifestOpen)
	h.engine.SetMode(scan.ModeLoadManifest)
	h.scanAt("MAN-0001", token.SourceWedge)

	h.engine.SetMode(scan.ModeReceive)
	if h.engine.Session().ActiveManifest() != nil {
		t.Fatal("mode switch must clear the active manifest")
	}
}

func TestBusyGuardRejectsConcurrentScan(t *testing.T) {
	h := newHarness(t)
	h.store.addShipment(1, "TAC100", records.ShipmentCreated)

	h.engine.inFlight.Store(true)
	outcome := h.scanAt("TAC100", token.SourceCamera)
	if outcome.Code != scan.CodeScanInFlight {
		t.Fatalf("expected SCAN_IN_FLIGHT, got %q", outcome.Code)
	}
	if !outcome.Retryable {
		t.Fatal("busy rejection must be retryable")
	}
	h.engine.inFlight.Store(false)

	outcome = h.scanAt("TAC100", token.SourceCamera)
	if !outcome.Success {
		t.Fatalf("expected success after guard release, got %+v", outcome)
	}
}

func TestCancelledContextIsRetryable(t *testing.T) {
	h := newHarness(t)
	h.store.failWith = context.Canceled

	outcome := h.scanAt("TAC100", token.SourceWedge)
	if outcome.Code != scan.CodeRequestCancelled {
		t.Fatalf("expected REQUEST_CANCELLED, got %q", outcome.Code)
	}
	if !outcome.Retryable {
		t.Fatal("cancelled request must be retryable")
	}
}

func TestOfflineShipmentScanQueues(t *testing.T) {
	h := newHarness(t)
	h.store.addManifest(7, "MAN-0042", records.ManifestOpen)
	h.engine.SetMode(scan.ModeLoadManifest)
	h.scanAt("MAN-0042", token.SourceWedge)

	h.monitor.SetOnline(false)
	outcome := h.scanAt("TAC555", token.SourceWedge)
	if outcome.Class != scan.ClassQueued {
		t.Fatalf("expected queued outcome, got %+v", outcome)
	}
	if len(h.queue.entries) != 1 {
		t.Fatalf("expected 1 queued entry, got %d", len(h.queue.entries))
	}
	entry := h.queue.entries[0]
	if entry.Mode != scan.ModeLoadManifest || entry.ManifestCode != "MAN-0042" {
		t.Fatalf("entry must capture mode and manifest: %+v", entry)
	}
}

func TestManifestScanWhileOfflineStillResolves(t *testing.T) {
	// Manifest binds are not queued: they need the record store, so
	// offline they fail like any other store access would.
	h := newHarness(t)
	h.engine.SetMode(scan.ModeLoadManifest)
	h.monitor.SetOnline(false)

	outcome := h.scanAt("MAN-0042", token.SourceWedge)
	if outcome.Class == scan.ClassQueued {
		t.Fatalf("manifest scans must not queue, got %+v", outcome)
	}
}

func TestProcessQueuedReplaysAgainstRecordedContext(t *testing.T) {
	h := newHarness(t)
	h.store.addManifest(7, "MAN-0042", records.ManifestOpen)
	h.store.addShipment(1, "TAC555", records.ShipmentReceivedAtOrigin)

	// Session is in RECEIVE; the queued entry was captured in LOAD.
	entry := offline.QueuedScan{
		ID:           1,
		AWB:          "TAC555",
		Mode:         scan.ModeLoadManifest,
		ManifestCode: "MAN-0042",
		Source:       token.SourceWedge,
	}
	outcome := h.engine.ProcessQueued(context.Background(), entry)
	if !outcome.Success {
		t.Fatalf("expected replay success, got %+v", outcome)
	}
	if !h.store.members[7][1] {
		t.Fatal("replay must add the membership row")
	}
	if got := h.store.shipments["TAC555"].Status; got != records.ShipmentInTransit {
		t.Fatalf("expected IN_TRANSIT after replay, got %s", got)
	}

	// Replaying the same entry again is a harmless duplicate.
	outcome = h.engine.ProcessQueued(context.Background(), entry)
	if !outcome.Duplicate {
		t.Fatalf("expected duplicate on second replay, got %+v", outcome)
	}
}

func TestProcessQueuedDepartedManifestFails(t *testing.T) {
	h := newHarness(t)
	h.store.addManifest(7, "MAN-0042", records.ManifestDeparted)
	h.store.addShipment(1, "TAC555", records.ShipmentReceivedAtOrigin)

	entry := offline.QueuedScan{
		AWB:          "TAC555",
		Mode:         scan.ModeLoadManifest,
		ManifestCode: "MAN-0042",
		Source:       token.SourceWedge,
	}
	outcome := h.engine.ProcessQueued(context.Background(), entry)
	if outcome.Code != scan.CodeWrongManifestStatus {
		t.Fatalf("expected WRONG_MANIFEST_STATUS, got %q", outcome.Code)
	}
}

func TestProcessQueuedBusyDoesNotTouchHistory(t *testing.T) {
	h := newHarness(t)
	h.engine.inFlight.Store(true)

	outcome := h.engine.ProcessQueued(context.Background(), offline.QueuedScan{AWB: "TAC1"})
	if outcome.Code != scan.CodeScanInFlight {
		t.Fatalf("expected SCAN_IN_FLIGHT, got %q", outcome.Code)
	}
	if got := h.history.Stats().ScanCount; got != 0 {
		t.Fatalf("busy replay must not enter history, got %d entries", got)
	}
}

func TestNormalizedTokensReconcileAcrossSources(t *testing.T) {
	h := newHarness(t)
	h.store.addShipment(1, "TAC100", records.ShipmentCreated)

	// Fullwidth digits with trailing CR, as a camera would emit.
	outcome := h.scanAt("tac１００\r", token.SourceCamera)
	if !outcome.Success {
		t.Fatalf("expected normalized token to match, got %+v", outcome)
	}
	if outcome.Reference != "TAC100" {
		t.Fatalf("expected reference TAC100, got %q", outcome.Reference)
	}
}
