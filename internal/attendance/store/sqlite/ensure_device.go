package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// ensureDevice guarantees a devices row exists for the given deviceID so
// that foreign-key constraints from anomalies and heartbeats are satisfied.
//
// New rows start uncommissioned, on probation; only an admin action (or
// the dev seeder) commissions a device.
//
// Must be called inside an existing transaction.
func ensureDevice(ctx context.Context, tx *sql.Tx, deviceID string, nowMs int64) error {
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO devices(
  device_id, commissioned, trust, first_seen_at_ms, created_at_ms, updated_at_ms
) VALUES (?, 0, 'probation', ?, ?, ?);
`, deviceID, nowMs, nowMs, nowMs); err != nil {
		return fmt.Errorf("ensureDevice %s: %w", deviceID, err)
	}
	return nil
}
