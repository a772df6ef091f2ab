package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"crossdock/internal/config"
	"crossdock/internal/daemon"
	"crossdock/internal/logging"
	"crossdock/internal/records"
	"crossdock/internal/scan"
	"crossdock/internal/testsupport"
	"crossdock/internal/token"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func newTestDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecords(t, cfg)
	queue := testsupport.MustOpenQueue(t, cfg)
	d, err := daemon.New(cfg, store, queue, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newTestDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected error starting an already-running daemon")
	}

	status := d.Status(ctx)
	if !status.Running || !status.Online {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Mode != scan.ModeReceive {
		t.Fatalf("expected RECEIVE mode, got %s", status.Mode)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon stopped")
	}
	// Stop is idempotent.
	d.Stop()
}

func TestDaemonScanRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecords(t, cfg)
	queue := testsupport.MustOpenQueue(t, cfg)
	testsupport.SeedShipment(t, store, "TAC100", records.ShipmentCreated)

	d, err := daemon.New(cfg, store, queue, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	outcome := d.Scan(context.Background(), "TAC100", token.SourceManual)
	if !outcome.Success {
		t.Fatalf("expected scan success, got %+v", outcome)
	}
	if got := len(d.History()); got != 1 {
		t.Fatalf("expected 1 history entry, got %d", got)
	}

	sh, err := store.FindShipmentByAWB(context.Background(), "TAC100")
	if err != nil {
		t.Fatalf("find shipment: %v", err)
	}
	if sh.Status != records.ShipmentReceivedAtOrigin {
		t.Fatalf("expected RECEIVED_AT_ORIGIN, got %s", sh.Status)
	}
}

func TestCameraDevicePumpsScans(t *testing.T) {
	device := filepath.Join(t.TempDir(), "camera.stream")
	if err := os.WriteFile(device, []byte("TAC300\n\nTAC400\n"), 0o644); err != nil {
		t.Fatalf("write decode stream: %v", err)
	}

	cfg := testsupport.NewConfig(t, func(c *config.Config) {
		c.Scanner.CameraDevice = device
	})
	store := testsupport.MustOpenRecords(t, cfg)
	queue := testsupport.MustOpenQueue(t, cfg)
	testsupport.SeedShipment(t, store, "TAC300", records.ShipmentCreated)
	testsupport.SeedShipment(t, store, "TAC400", records.ShipmentCreated)

	d, err := daemon.New(cfg, store, queue, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, func() bool { return len(d.History()) == 2 })

	for _, awb := range []string{"TAC300", "TAC400"} {
		sh, err := store.FindShipmentByAWB(context.Background(), awb)
		if err != nil {
			t.Fatalf("find shipment %s: %v", awb, err)
		}
		if sh.Status != records.ShipmentReceivedAtOrigin {
			t.Fatalf("expected %s RECEIVED_AT_ORIGIN, got %s", awb, sh.Status)
		}
	}
	d.Stop()
}

func TestStopJoinsBlockedCameraPump(t *testing.T) {
	device := filepath.Join(t.TempDir(), "camera.fifo")
	if err := syscall.Mkfifo(device, 0o600); err != nil {
		t.Skipf("mkfifo unavailable: %v", err)
	}
	// Holding a read-write handle keeps the read side from blocking on
	// open and keeps the stream free of EOF.
	keeper, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		t.Skipf("open fifo: %v", err)
	}
	defer keeper.Close()

	cfg := testsupport.NewConfig(t, func(c *config.Config) {
		c.Scanner.CameraDevice = device
	})
	store := testsupport.MustOpenRecords(t, cfg)
	queue := testsupport.MustOpenQueue(t, cfg)

	d, err := daemon.New(cfg, store, queue, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return while the camera pump was idle")
	}
}

func TestSecondInstanceRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecords(t, cfg)
	queue := testsupport.MustOpenQueue(t, cfg)

	first, err := daemon.New(cfg, store, queue, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { first.Close() })
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	second, err := daemon.New(cfg, store, queue, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected lock conflict for second instance")
	}
}
