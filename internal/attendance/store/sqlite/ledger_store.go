package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/autonex/punchd/internal/db"

	"github.com/autonex/punchd/internal/attendance/store"
	"github.com/autonex/punchd/internal/attendance/types"
)

// LedgerStore persists the unified attendance timeline in the
// ledger_entries table. The committed order is materialized by ORDER BY
// (resolved_at_ms, tie_rank DESC, device_seq, device_id); "inserting" an
// out-of-order event is just an insert, the order is a property of reads.
type LedgerStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewLedgerStore(db *sql.DB, writer *dbpkg.Worker) *LedgerStore {
	return &LedgerStore{db: db, writer: writer}
}

const entryColumns = `
kind, employee_id, event_id, punch_type, resolved_at_ms, ingested_at_ms,
device_id, device_seq, badge, display_name, confidence, tie_rank,
unverified_device, conflict_id, conflict_reason, conflict_status,
corrects_event_id, recorded_at_ms`

func scanEntry(row interface {
	Scan(dest ...any) error
}) (store.LedgerEntry, error) {
	var (
		e          store.LedgerEntry
		kind       string
		punchType  string
		resolvedMs int64
		ingestedMs int64
		confidence sql.NullFloat64
		unverified int
		conflictID sql.NullString
		reason     sql.NullString
		status     sql.NullString
		corrects   sql.NullString
		recordedMs int64
	)
	err := row.Scan(
		&kind, &e.Event.EmployeeID, &e.Event.EventID, &punchType,
		&resolvedMs, &ingestedMs, &e.Event.DeviceID, &e.Event.DeviceSeq,
		&e.Event.Badge, &e.Event.Name, &confidence, &e.Event.TieRank,
		&unverified, &conflictID, &reason, &status, &corrects, &recordedMs,
	)
	if err != nil {
		return store.LedgerEntry{}, err
	}
	e.Kind = store.EntryKind(kind)
	e.Event.Type = types.PunchType(punchType)
	e.Event.ResolvedAt = time.UnixMilli(resolvedMs).UTC()
	e.Event.IngestedAt = time.UnixMilli(ingestedMs).UTC()
	if confidence.Valid {
		v := confidence.Float64
		e.Event.Confidence = &v
	}
	e.Event.Unverified = unverified == 1
	e.ConflictID = conflictID.String
	e.ConflictReason = reason.String
	e.ConflictStatus = status.String
	e.CorrectsEventID = corrects.String
	e.RecordedAt = time.UnixMilli(recordedMs).UTC()
	return e, nil
}

func (s *LedgerStore) HasEvent(ctx context.Context, employeeID, eventID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
SELECT 1 FROM ledger_entries
WHERE employee_id = ? AND event_id = ? AND kind IN ('event', 'compensation')
LIMIT 1;
`, employeeID, eventID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("HasEvent: %w", err)
	}
	return true, nil
}

func (s *LedgerStore) Neighbors(ctx context.Context, employeeID string, ev types.CanonicalEvent) (*store.LedgerEntry, *store.LedgerEntry, error) {
	ts := ev.ResolvedAt.UTC().UnixMilli()

	// prev: greatest committed event ordering strictly before the candidate.
	prevRow := s.db.QueryRowContext(ctx, `
SELECT `+entryColumns+`
FROM ledger_entries
WHERE employee_id = ? AND kind = 'event' AND (
  resolved_at_ms < ?
  OR (resolved_at_ms = ? AND (
    tie_rank > ?
    OR (tie_rank = ? AND (
      device_seq < ?
      OR (device_seq = ? AND device_id < ?)))))
)
ORDER BY resolved_at_ms DESC, tie_rank ASC, device_seq DESC, device_id DESC
LIMIT 1;
`, employeeID, ts, ts, ev.TieRank, ev.TieRank, ev.DeviceSeq, ev.DeviceSeq, ev.DeviceID)

	var prev, next *store.LedgerEntry
	if e, err := scanEntry(prevRow); err == nil {
		prev = &e
	} else if err != sql.ErrNoRows {
		return nil, nil, fmt.Errorf("Neighbors prev: %w", err)
	}

	nextRow := s.db.QueryRowContext(ctx, `
SELECT `+entryColumns+`
FROM ledger_entries
WHERE employee_id = ? AND kind = 'event' AND (
  resolved_at_ms > ?
  OR (resolved_at_ms = ? AND (
    tie_rank < ?
    OR (tie_rank = ? AND (
      device_seq > ?
      OR (device_seq = ? AND device_id > ?)))))
)
ORDER BY resolved_at_ms ASC, tie_rank DESC, device_seq ASC, device_id ASC
LIMIT 1;
`, employeeID, ts, ts, ev.TieRank, ev.TieRank, ev.DeviceSeq, ev.DeviceSeq, ev.DeviceID)

	if e, err := scanEntry(nextRow); err == nil {
		next = &e
	} else if err != sql.ErrNoRows {
		return nil, nil, fmt.Errorf("Neighbors next: %w", err)
	}

	return prev, next, nil
}

func (s *LedgerStore) NearestSameType(ctx context.Context, employeeID string, pt types.PunchType, around time.Time, window time.Duration) (*store.LedgerEntry, error) {
	ts := around.UTC().UnixMilli()
	w := window.Milliseconds()

	row := s.db.QueryRowContext(ctx, `
SELECT `+entryColumns+`
FROM ledger_entries
WHERE employee_id = ? AND kind = 'event' AND punch_type = ?
  AND resolved_at_ms BETWEEN ? AND ?
ORDER BY ABS(resolved_at_ms - ?) ASC
LIMIT 1;
`, employeeID, string(pt), ts-w, ts+w, ts)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("NearestSameType: %w", err)
	}
	return &e, nil
}

func (s *LedgerStore) AppendEvent(ctx context.Context, employeeID string, ev types.CanonicalEvent) error {
	return s.insert(ctx, store.LedgerEntry{
		Kind:       store.KindEvent,
		Event:      ev,
		RecordedAt: time.Now().UTC(),
	})
}

func (s *LedgerStore) AppendCompensation(ctx context.Context, employeeID string, ev types.CanonicalEvent, correctsEventID string) error {
	return s.insert(ctx, store.LedgerEntry{
		Kind:            store.KindCompensation,
		Event:           ev,
		CorrectsEventID: correctsEventID,
		RecordedAt:      time.Now().UTC(),
	})
}

func (s *LedgerStore) RecordConflict(ctx context.Context, employeeID string, entry store.LedgerEntry) error {
	entry.Kind = store.KindConflict
	if entry.ConflictStatus == "" {
		entry.ConflictStatus = store.ConflictPending
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	return s.insert(ctx, entry)
}

func (s *LedgerStore) PendingConflictByEventID(ctx context.Context, employeeID, eventID string) (*store.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+entryColumns+`
FROM ledger_entries
WHERE employee_id = ? AND event_id = ? AND kind = 'conflict' AND conflict_status = 'pending'
LIMIT 1;
`, employeeID, eventID)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("PendingConflictByEventID: %w", err)
	}
	return &e, nil
}

func (s *LedgerStore) insert(ctx context.Context, e store.LedgerEntry) error {
	var confidence any
	if e.Event.Confidence != nil {
		confidence = *e.Event.Confidence
	}
	unverified := 0
	if e.Event.Unverified {
		unverified = 1
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO ledger_entries(
  kind, employee_id, event_id, punch_type, resolved_at_ms, ingested_at_ms,
  device_id, device_seq, badge, display_name, confidence, tie_rank,
  unverified_device, conflict_id, conflict_reason, conflict_status,
  corrects_event_id, recorded_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			string(e.Kind), e.Event.EmployeeID, e.Event.EventID, string(e.Event.Type),
			e.Event.ResolvedAt.UTC().UnixMilli(), e.Event.IngestedAt.UTC().UnixMilli(),
			e.Event.DeviceID, e.Event.DeviceSeq, e.Event.Badge, e.Event.Name,
			confidence, e.Event.TieRank, unverified,
			nullIfEmpty(e.ConflictID), nullIfEmpty(e.ConflictReason), nullIfEmpty(e.ConflictStatus),
			nullIfEmpty(e.CorrectsEventID), e.RecordedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("ledger insert: %w", err)
		}
		return nil
	})
}

func (s *LedgerStore) ResolveConflict(ctx context.Context, conflictID string, at time.Time) (bool, error) {
	var affected int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE ledger_entries
SET conflict_status = 'resolved'
WHERE conflict_id = ? AND conflict_status = 'pending';
`, conflictID)
		if err != nil {
			return fmt.Errorf("ResolveConflict: %w", err)
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	return affected > 0, err
}

func (s *LedgerStore) Conflict(ctx context.Context, conflictID string) (store.LedgerEntry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+entryColumns+`
FROM ledger_entries
WHERE conflict_id = ?;
`, conflictID)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return store.LedgerEntry{}, false, nil
	}
	if err != nil {
		return store.LedgerEntry{}, false, fmt.Errorf("Conflict: %w", err)
	}
	return e, true, nil
}

func (s *LedgerStore) ReadRange(ctx context.Context, employeeID string, from, to time.Time) ([]store.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+entryColumns+`
FROM ledger_entries
WHERE employee_id = ? AND resolved_at_ms BETWEEN ? AND ?
ORDER BY resolved_at_ms ASC, tie_rank DESC, device_seq ASC, device_id ASC;
`, employeeID, from.UTC().UnixMilli(), to.UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("ReadRange query: %w", err)
	}
	defer rows.Close()

	var out []store.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ReadRange scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *LedgerStore) Conflicts(ctx context.Context, status string, limit int) ([]store.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `
SELECT ` + entryColumns + `
FROM ledger_entries
WHERE kind = 'conflict'`
	args := []any{}
	if status != "" {
		q += ` AND conflict_status = ?`
		args = append(args, status)
	}
	q += `
ORDER BY recorded_at_ms DESC
LIMIT ?;`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("Conflicts query: %w", err)
	}
	defer rows.Close()

	var out []store.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("Conflicts scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
