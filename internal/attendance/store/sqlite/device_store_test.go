package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/autonex/punchd/internal/attendance/store"
	"github.com/autonex/punchd/internal/attendance/store/sqlite"
	"github.com/autonex/punchd/internal/attendance/types"
)

func TestDeviceStore_EnsureSeenCreatesProbationRow(t *testing.T) {
	conn := openTestDB(t)
	ds := sqlite.NewDeviceStore(conn, newTestWriter(t, conn))
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	_, ok, err := ds.Get(ctx, "term-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected no row before first contact")
	}

	if err := ds.EnsureSeen(ctx, "term-a", now); err != nil {
		t.Fatalf("EnsureSeen: %v", err)
	}

	d, ok, err := ds.Get(ctx, "term-a")
	if err != nil || !ok {
		t.Fatalf("Get after EnsureSeen: ok=%v err=%v", ok, err)
	}
	if d.Commissioned {
		t.Error("first contact must not commission a device")
	}
	if d.Trust != types.TrustProbation {
		t.Errorf("expected probation, got %s", d.Trust)
	}
	if !d.LastSeen.Equal(now) {
		t.Errorf("expected last_seen=%v, got %v", now, d.LastSeen)
	}
}

func TestDeviceStore_CommissionAndTrust(t *testing.T) {
	conn := openTestDB(t)
	ds := sqlite.NewDeviceStore(conn, newTestWriter(t, conn))
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if err := ds.Commission(ctx, "term-a", "Warehouse", 90*time.Second, now); err != nil {
		t.Fatalf("Commission: %v", err)
	}

	d, ok, err := ds.Get(ctx, "term-a")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !d.Commissioned || d.Trust != types.TrustTrusted {
		t.Errorf("expected trusted commissioned device, got %+v", d)
	}
	if d.Site != "Warehouse" {
		t.Errorf("expected site=Warehouse, got %q", d.Site)
	}
	if d.DeclaredOffset != 90*time.Second {
		t.Errorf("expected declared offset 90s, got %v", d.DeclaredOffset)
	}

	if err := ds.SetTrust(ctx, "term-a", types.TrustQuarantined, now.Add(time.Hour)); err != nil {
		t.Fatalf("SetTrust: %v", err)
	}
	d, _, _ = ds.Get(ctx, "term-a")
	if d.Trust != types.TrustQuarantined {
		t.Errorf("expected quarantined, got %s", d.Trust)
	}
}

func TestDeviceStore_AnomalyWindowCount(t *testing.T) {
	conn := openTestDB(t)
	ds := sqlite.NewDeviceStore(conn, newTestWriter(t, conn))
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	// Two recent anomalies, one stale.
	if err := ds.RecordAnomaly(ctx, "term-a", store.AnomalyBadPayload, now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("RecordAnomaly: %v", err)
	}
	if err := ds.RecordAnomaly(ctx, "term-a", store.AnomalyTimestampOutOfBounds, now.Add(-10*time.Minute)); err != nil {
		t.Fatalf("RecordAnomaly: %v", err)
	}
	if err := ds.RecordAnomaly(ctx, "term-a", store.AnomalySequenceConflict, now.Add(-time.Minute)); err != nil {
		t.Fatalf("RecordAnomaly: %v", err)
	}

	n, err := ds.CountAnomaliesSince(ctx, "term-a", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountAnomaliesSince: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 anomalies inside window, got %d", n)
	}

	// Other devices are unaffected.
	n, err = ds.CountAnomaliesSince(ctx, "term-b", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CountAnomaliesSince: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 anomalies for untouched device, got %d", n)
	}
}
