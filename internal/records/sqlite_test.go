package records

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("open records store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFindShipmentByAWB(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created, err := store.CreateShipment(ctx, "TAC100", ShipmentCreated)
	if err != nil {
		t.Fatalf("create shipment: %v", err)
	}

	found, err := store.FindShipmentByAWB(ctx, "TAC100")
	if err != nil {
		t.Fatalf("find shipment: %v", err)
	}
	if found == nil || found.ID != created.ID || found.Status != ShipmentCreated {
		t.Fatalf("unexpected shipment %+v", found)
	}

	missing, err := store.FindShipmentByAWB(ctx, "TAC404")
	if err != nil {
		t.Fatalf("find missing shipment: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown AWB, got %+v", missing)
	}
}

func TestUpdateShipmentStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sh, err := store.CreateShipment(ctx, "TAC100", ShipmentCreated)
	if err != nil {
		t.Fatalf("create shipment: %v", err)
	}
	if err := store.UpdateShipmentStatus(ctx, sh.ID, ShipmentInTransit); err != nil {
		t.Fatalf("update status: %v", err)
	}

	found, err := store.FindShipmentByAWB(ctx, "TAC100")
	if err != nil {
		t.Fatalf("find shipment: %v", err)
	}
	if found.Status != ShipmentInTransit {
		t.Fatalf("expected IN_TRANSIT, got %s", found.Status)
	}
	if !found.UpdatedAt.After(found.CreatedAt) && !found.UpdatedAt.Equal(found.CreatedAt) {
		t.Fatalf("updated_at not maintained: %v vs %v", found.UpdatedAt, found.CreatedAt)
	}

	if err := store.UpdateShipmentStatus(ctx, 9999, ShipmentDelivered); err == nil {
		t.Fatal("expected error updating unknown shipment")
	}
}

func TestManifestMembershipIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	m, err := store.CreateManifest(ctx, "MAN-0042", "BLR", "DEL", ManifestOpen)
	if err != nil {
		t.Fatalf("create manifest: %v", err)
	}
	sh, err := store.CreateShipment(ctx, "TAC555", ShipmentReceivedAtOrigin)
	if err != nil {
		t.Fatalf("create shipment: %v", err)
	}

	member, err := store.IsShipmentInManifest(ctx, m.ID, sh.ID)
	if err != nil {
		t.Fatalf("membership check: %v", err)
	}
	if member {
		t.Fatal("expected no membership before add")
	}

	// Adding twice must not error and must leave a single row.
	for i := 0; i < 2; i++ {
		if err := store.AddShipmentToManifest(ctx, m.ID, sh.ID); err != nil {
			t.Fatalf("add to manifest (round %d): %v", i+1, err)
		}
	}

	member, err = store.IsShipmentInManifest(ctx, m.ID, sh.ID)
	if err != nil {
		t.Fatalf("membership check: %v", err)
	}
	if !member {
		t.Fatal("expected membership after add")
	}

	members, err := store.ManifestMembers(ctx, m.ID)
	if err != nil {
		t.Fatalf("manifest members: %v", err)
	}
	if len(members) != 1 || members[0] != sh.ID {
		t.Fatalf("expected single membership row, got %v", members)
	}
}

func TestFindManifestByCode(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateManifest(ctx, "MAN-0001", "BLR", "MAA", ManifestDeparted); err != nil {
		t.Fatalf("create manifest: %v", err)
	}

	m, err := store.FindManifestByCode(ctx, "MAN-0001")
	if err != nil {
		t.Fatalf("find manifest: %v", err)
	}
	if m == nil || m.Status != ManifestDeparted || m.OriginHubID != "BLR" {
		t.Fatalf("unexpected manifest %+v", m)
	}

	missing, err := store.FindManifestByCode(ctx, "MAN-9999")
	if err != nil {
		t.Fatalf("find missing manifest: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown code, got %+v", missing)
	}
}

func TestCreateException(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sh, err := store.CreateShipment(ctx, "TAC800", ShipmentInTransit)
	if err != nil {
		t.Fatalf("create shipment: %v", err)
	}

	exc := Exception{
		ID:          uuid.NewString(),
		ShipmentID:  sh.ID,
		CNNumber:    "TAC800",
		Type:        ExceptionMisroute,
		Severity:    SeverityHigh,
		Description: "scanned against the wrong manifest",
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.CreateException(ctx, exc); err != nil {
		t.Fatalf("create exception: %v", err)
	}

	got, err := store.ExceptionsForShipment(ctx, sh.ID)
	if err != nil {
		t.Fatalf("exceptions for shipment: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 exception, got %d", len(got))
	}
	if got[0].Type != ExceptionMisroute || got[0].Severity != SeverityHigh || got[0].CNNumber != "TAC800" {
		t.Fatalf("unexpected exception %+v", got[0])
	}
}
