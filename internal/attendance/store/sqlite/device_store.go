package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/autonex/punchd/internal/db"

	"github.com/autonex/punchd/internal/attendance/store"
	"github.com/autonex/punchd/internal/attendance/types"
)

type DeviceStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewDeviceStore(db *sql.DB, writer *dbpkg.Worker) *DeviceStore {
	return &DeviceStore{db: db, writer: writer}
}

func (s *DeviceStore) Get(ctx context.Context, deviceID string) (types.Device, bool, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return types.Device{}, false, nil
	}

	var (
		d            types.Device
		commissioned int
		trust        string
		offsetMs     int64
		firstSeenMs  int64
		lastSeenMs   sql.NullInt64
		site         string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT site, commissioned, trust, declared_offset_ms, first_seen_at_ms, last_seen_at_ms
FROM devices
WHERE device_id = ?;
`, deviceID).Scan(&site, &commissioned, &trust, &offsetMs, &firstSeenMs, &lastSeenMs)

	if err == sql.ErrNoRows {
		return types.Device{}, false, nil
	}
	if err != nil {
		return types.Device{}, false, fmt.Errorf("device get: %w", err)
	}

	d.DeviceID = deviceID
	d.Site = site
	d.Commissioned = commissioned == 1
	d.Trust = types.TrustState(trust)
	d.DeclaredOffset = time.Duration(offsetMs) * time.Millisecond
	d.FirstSeen = time.UnixMilli(firstSeenMs).UTC()
	if lastSeenMs.Valid {
		d.LastSeen = time.UnixMilli(lastSeenMs.Int64).UTC()
	}
	return d, true, nil
}

func (s *DeviceStore) EnsureSeen(ctx context.Context, deviceID string, t time.Time) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureDevice(ctx, tx, deviceID, ms); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE devices
SET last_seen_at_ms = ?,
    updated_at_ms   = ?
WHERE device_id = ?;
`, ms, ms, deviceID); err != nil {
			return fmt.Errorf("EnsureSeen update: %w", err)
		}
		return nil
	})
}

func (s *DeviceStore) Commission(ctx context.Context, deviceID, site string, declaredOffset time.Duration, t time.Time) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureDevice(ctx, tx, deviceID, ms); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE devices
SET site = ?,
    commissioned = 1,
    trust = 'trusted',
    declared_offset_ms = ?,
    updated_at_ms = ?
WHERE device_id = ?;
`, site, declaredOffset.Milliseconds(), ms, deviceID); err != nil {
			return fmt.Errorf("Commission update: %w", err)
		}
		return nil
	})
}

func (s *DeviceStore) SetTrust(ctx context.Context, deviceID string, trust types.TrustState, t time.Time) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureDevice(ctx, tx, deviceID, ms); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE devices
SET trust = ?, updated_at_ms = ?
WHERE device_id = ?;
`, string(trust), ms, deviceID); err != nil {
			return fmt.Errorf("SetTrust update: %w", err)
		}
		return nil
	})
}

func (s *DeviceStore) RecordAnomaly(ctx context.Context, deviceID string, kind store.AnomalyKind, at time.Time) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	ms := at.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureDevice(ctx, tx, deviceID, ms); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO device_anomalies(device_id, kind, occurred_at_ms)
VALUES (?, ?, ?);
`, deviceID, string(kind), ms); err != nil {
			return fmt.Errorf("RecordAnomaly insert: %w", err)
		}
		return nil
	})
}

func (s *DeviceStore) CountAnomaliesSince(ctx context.Context, deviceID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM device_anomalies
WHERE device_id = ? AND occurred_at_ms >= ?;
`, deviceID, since.UTC().UnixMilli()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountAnomaliesSince: %w", err)
	}
	return n, nil
}
