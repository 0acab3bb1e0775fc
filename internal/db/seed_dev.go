package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SeedDevOptions struct {
	// Devices to pre-commission in dev so local terminals are trusted
	// out of the box.
	Devices []string
}

// SeedDev commissions a starter terminal and a small badge map so a dev
// environment can accept punches without any admin calls.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	devices := opt.Devices
	if len(devices) == 0 {
		devices = []string{"terminal-001"}
	}

	for _, id := range devices {
		if _, err := db.ExecContext(ctx, `
INSERT INTO devices(
  device_id, site, commissioned, trust,
  first_seen_at_ms, created_at_ms, updated_at_ms
) VALUES (?, 'Dev', 1, 'trusted', ?, ?, ?)
ON CONFLICT(device_id) DO UPDATE SET
  commissioned = 1,
  trust = 'trusted',
  updated_at_ms = excluded.updated_at_ms;
`, id, now, now, now); err != nil {
			return fmt.Errorf("seed device %s: %w", id, err)
		}
	}

	seedBadges := map[string]string{
		"B-1001": "emp-alice",
		"B-1002": "emp-bob",
	}
	for badge, emp := range seedBadges {
		if _, err := db.ExecContext(ctx, `
INSERT INTO badges(badge, employee_id, updated_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(badge) DO NOTHING;
`, badge, emp, now); err != nil {
			return fmt.Errorf("seed badge %s: %w", badge, err)
		}
	}

	return nil
}
