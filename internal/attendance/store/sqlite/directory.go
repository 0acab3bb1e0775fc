package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/autonex/punchd/internal/db"
)

// Directory is the badge→employee map, fed by the external HR directory
// (via the admin remap hook or the dev seeder).
type Directory struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewDirectory(db *sql.DB, writer *dbpkg.Worker) *Directory {
	return &Directory{db: db, writer: writer}
}

func (d *Directory) ResolveBadge(ctx context.Context, badge string) (string, bool, error) {
	badge = strings.TrimSpace(badge)
	if badge == "" {
		return "", false, nil
	}

	var employeeID string
	err := d.db.QueryRowContext(ctx, `
SELECT employee_id FROM badges WHERE badge = ?;
`, badge).Scan(&employeeID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ResolveBadge: %w", err)
	}
	return employeeID, true, nil
}

func (d *Directory) RemapBadge(ctx context.Context, badge, employeeID string) error {
	badge = strings.TrimSpace(badge)
	employeeID = strings.TrimSpace(employeeID)
	if badge == "" || employeeID == "" {
		return nil
	}
	ms := time.Now().UTC().UnixMilli()

	return d.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO badges(badge, employee_id, updated_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(badge) DO UPDATE SET
  employee_id = excluded.employee_id,
  updated_at_ms = excluded.updated_at_ms;
`, badge, employeeID, ms); err != nil {
			return fmt.Errorf("RemapBadge upsert: %w", err)
		}
		return nil
	})
}
