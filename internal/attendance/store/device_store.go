package store

import (
	"context"
	"time"

	"github.com/autonex/punchd/internal/attendance/types"
)

// AnomalyKind labels a device misbehaviour observed during ingestion.
type AnomalyKind string

const (
	AnomalyTimestampOutOfBounds AnomalyKind = "timestamp_out_of_bounds"
	AnomalySequenceConflict     AnomalyKind = "sequence_conflict"
	AnomalyBadPayload           AnomalyKind = "bad_payload"
)

// DeviceStore persists device reference data. Rows are created on first
// contact and never deleted; quarantine is the terminal state.
type DeviceStore interface {
	// Get returns the device row, or ok=false if the device has never
	// been seen.
	Get(ctx context.Context, deviceID string) (types.Device, bool, error)

	// EnsureSeen creates the device row on first contact (uncommissioned,
	// probation) and bumps last_seen.
	EnsureSeen(ctx context.Context, deviceID string, t time.Time) error

	// Commission marks a device as administratively registered, setting its
	// site and declared clock offset and promoting it to trusted.
	Commission(ctx context.Context, deviceID, site string, declaredOffset time.Duration, t time.Time) error

	// SetTrust overwrites the trust state (escalation and admin reinstate).
	SetTrust(ctx context.Context, deviceID string, trust types.TrustState, t time.Time) error

	// RecordAnomaly appends one anomaly observation.
	RecordAnomaly(ctx context.Context, deviceID string, kind AnomalyKind, at time.Time) error

	// CountAnomaliesSince returns how many anomalies the device accumulated
	// at or after the given instant.
	CountAnomaliesSince(ctx context.Context, deviceID string, since time.Time) (int, error)
}
