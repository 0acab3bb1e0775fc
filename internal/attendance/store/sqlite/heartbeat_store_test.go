package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/autonex/punchd/internal/attendance/store"
	"github.com/autonex/punchd/internal/attendance/store/sqlite"
	"github.com/autonex/punchd/internal/attendance/types"
)

func TestHeartbeatStore_UpsertUpdatesDeviceSnapshot(t *testing.T) {
	conn := openTestDB(t)
	writer := newTestWriter(t, conn)
	hs := sqlite.NewHeartbeatStore(conn, writer)
	ds := sqlite.NewDeviceStore(conn, writer)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	backlog := 3
	rec := store.HeartbeatRecord{
		ReceivedAt: now,
		Request: types.HeartbeatRequest{
			DeviceID:        "term-a",
			FirmwareVersion: "2.4.1",
			UptimeSeconds:   3600,
			PendingBacklog:  &backlog,
			IP:              "192.168.1.50",
			Sequence:        12,
		},
	}
	if err := hs.UpsertHeartbeat(ctx, "term-a", rec); err != nil {
		t.Fatalf("UpsertHeartbeat: %v", err)
	}

	// The heartbeat must have created the device row and stamped last_seen.
	d, ok, err := ds.Get(ctx, "term-a")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !d.LastSeen.Equal(now) {
		t.Errorf("expected last_seen=%v, got %v", now, d.LastSeen)
	}
	if d.Commissioned {
		t.Error("a heartbeat must not commission a device")
	}

	// Append-only: a second heartbeat adds a row rather than replacing.
	rec.ReceivedAt = now.Add(time.Minute)
	if err := hs.UpsertHeartbeat(ctx, "term-a", rec); err != nil {
		t.Fatalf("second UpsertHeartbeat: %v", err)
	}

	var count int
	if err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM device_heartbeats WHERE device_id = ?`, "term-a").Scan(&count); err != nil {
		t.Fatalf("count heartbeats: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 heartbeat rows, got %d", count)
	}
}

func TestHeartbeatStore_PruneOlderThan(t *testing.T) {
	conn := openTestDB(t)
	hs := sqlite.NewHeartbeatStore(conn, newTestWriter(t, conn))
	ctx := context.Background()
	now := time.Now().UTC()

	old := store.HeartbeatRecord{
		ReceivedAt: now.AddDate(0, 0, -40),
		Request:    types.HeartbeatRequest{DeviceID: "term-a"},
	}
	recent := store.HeartbeatRecord{
		ReceivedAt: now.AddDate(0, 0, -1),
		Request:    types.HeartbeatRequest{DeviceID: "term-a"},
	}
	if err := hs.UpsertHeartbeat(ctx, "term-a", old); err != nil {
		t.Fatalf("insert old: %v", err)
	}
	if err := hs.UpsertHeartbeat(ctx, "term-a", recent); err != nil {
		t.Fatalf("insert recent: %v", err)
	}

	deleted, err := hs.PruneOlderThan(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}

	deleted, err = hs.PruneOlderThan(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("second prune: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected nothing left to prune, got %d", deleted)
	}
}
