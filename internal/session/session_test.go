package session_test

import (
	"fmt"
	"testing"

	"crossdock/internal/records"
	"crossdock/internal/scan"
	"crossdock/internal/session"
	"crossdock/internal/token"
)

func TestSetModeClearsManifest(t *testing.T) {
	sess := session.New()
	sess.SetMode(scan.ModeLoadManifest)
	sess.BindManifest(&records.Manifest{ID: 1, Code: "MAN-0001", Status: records.ManifestOpen})

	if sess.ActiveManifest() == nil {
		t.Fatal("expected manifest bound")
	}

	sess.SetMode(scan.ModeVerifyManifest)
	if sess.ActiveManifest() != nil {
		t.Fatal("mode switch must clear the active manifest")
	}
}

func TestActiveManifestReturnsCopy(t *testing.T) {
	sess := session.New()
	sess.BindManifest(&records.Manifest{ID: 1, Code: "MAN-0001", Status: records.ManifestOpen})

	got := sess.ActiveManifest()
	got.Code = "MUTATED"

	if sess.ActiveManifest().Code != "MAN-0001" {
		t.Fatal("callers must not be able to mutate session state through the returned pointer")
	}
}

func TestHistoryCapDropsOldest(t *testing.T) {
	history := session.NewHistory()
	for i := 0; i < session.HistoryCap+10; i++ {
		history.Append(scan.Succeeded(fmt.Sprintf("scan %d", i), ""))
	}

	entries := history.Entries()
	if len(entries) != session.HistoryCap {
		t.Fatalf("expected %d entries, got %d", session.HistoryCap, len(entries))
	}
	if entries[0].Message != fmt.Sprintf("scan %d", session.HistoryCap+9) {
		t.Fatalf("expected newest entry first, got %q", entries[0].Message)
	}
}

func TestHistoryCounters(t *testing.T) {
	history := session.NewHistory()
	history.Append(scan.Succeeded("ok", "TAC555"))
	history.Append(scan.ManifestActivated("bound", "MAN-0001"))
	history.Append(scan.DuplicateScan("again", "TAC555"))
	history.Append(scan.Debounced("TAC555"))
	history.Append(scan.Failed(scan.CodeNotFound, "missing", "TAC999"))

	stats := history.Stats()
	if stats.ScanCount != 5 {
		t.Fatalf("expected 5 scans, got %d", stats.ScanCount)
	}
	if stats.SuccessCount != 2 {
		t.Fatalf("expected 2 successes, got %d", stats.SuccessCount)
	}
	if stats.DuplicateCount != 1 {
		t.Fatalf("expected 1 duplicate, got %d", stats.DuplicateCount)
	}
	if stats.ErrorCount != 1 {
		t.Fatalf("debounce must not count as an error; got %d errors", stats.ErrorCount)
	}
	if stats.DebouncedCount != 1 {
		t.Fatalf("expected 1 debounced, got %d", stats.DebouncedCount)
	}
}

func TestHistoryReset(t *testing.T) {
	history := session.NewHistory()
	history.Append(scan.Succeeded("ok", ""))
	history.Reset()

	if len(history.Entries()) != 0 {
		t.Fatal("expected empty history after reset")
	}
	if history.Stats() != (session.Stats{}) {
		t.Fatal("expected zeroed counters after reset")
	}
}

func TestBusSubscribeAndUnsubscribe(t *testing.T) {
	bus := session.NewBus()

	var got []string
	unsubscribe := bus.Subscribe(func(raw string, source token.Source) {
		got = append(got, fmt.Sprintf("%s/%s", raw, source))
	})

	bus.Publish("TAC555", token.SourceWedge)
	unsubscribe()
	bus.Publish("TAC556", token.SourceCamera)

	if len(got) != 1 || got[0] != "TAC555/wedge" {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

func TestBusFansOutToAllListeners(t *testing.T) {
	bus := session.NewBus()

	count := 0
	for i := 0; i < 3; i++ {
		bus.Subscribe(func(string, token.Source) { count++ })
	}
	bus.Publish("TAC555", token.SourceManual)

	if count != 3 {
		t.Fatalf("expected 3 deliveries, got %d", count)
	}
}
