// Package testsupport provides shared helpers for package tests: temp-dir
// configs and pre-opened stores.
package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"crossdock/internal/config"
	"crossdock/internal/offline"
	"crossdock/internal/records"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Feedback.Enabled = false
	cfg.Notifications.NtfyTopic = ""
	cfg.Scanner.WedgeDevice = ""
	cfg.Scanner.CameraDevice = ""

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithManifestPrefix overrides the manifest prefix on the test config.
func WithManifestPrefix(prefix string) ConfigOption {
	return func(c *config.Config) {
		c.Scanner.ManifestPrefix = prefix
	}
}

// WithMaxAttempts overrides the offline replay attempt cap.
func WithMaxAttempts(n int) ConfigOption {
	return func(c *config.Config) {
		c.OfflineQueue.MaxAttempts = n
	}
}

// MustOpenRecords opens a records store under the test config, closing it
// on cleanup.
func MustOpenRecords(t testing.TB, cfg *config.Config) *records.SQLiteStore {
	t.Helper()
	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("open records store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// MustOpenQueue opens an offline queue store under the test config,
// closing it on cleanup.
func MustOpenQueue(t testing.TB, cfg *config.Config) *offline.Store {
	t.Helper()
	store, err := offline.Open(cfg)
	if err != nil {
		t.Fatalf("open offline queue: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// SeedShipment creates a shipment or fails the test.
func SeedShipment(t testing.TB, store *records.SQLiteStore, awb string, status records.ShipmentStatus) *records.Shipment {
	t.Helper()
	sh, err := store.CreateShipment(context.Background(), awb, status)
	if err != nil {
		t.Fatalf("seed shipment %s: %v", awb, err)
	}
	return sh
}

// SeedManifest creates a manifest or fails the test.
func SeedManifest(t testing.TB, store *records.SQLiteStore, code string, status records.ManifestStatus) *records.Manifest {
	t.Helper()
	m, err := store.CreateManifest(context.Background(), code, "HUB-A", "HUB-B", status)
	if err != nil {
		t.Fatalf("seed manifest %s: %v", code, err)
	}
	return m
}
