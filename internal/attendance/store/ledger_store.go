package store

import (
	"context"
	"time"

	"github.com/autonex/punchd/internal/attendance/types"
)

// EntryKind tags the three row variants a ledger can hold. Conflicts live in
// the same sequence as events so the read path can present one timeline.
type EntryKind string

const (
	KindEvent        EntryKind = "event"
	KindConflict     EntryKind = "conflict"
	KindCompensation EntryKind = "compensation"
)

// Conflict review states.
const (
	ConflictPending  = "pending"
	ConflictResolved = "resolved"
)

// LedgerEntry is one row of an employee's timeline. For KindConflict the
// embedded event is the rejected candidate, held for adjudication; it is not
// part of the committed order.
type LedgerEntry struct {
	Kind  EntryKind            `json:"kind"`
	Event types.CanonicalEvent `json:"event"`

	// Conflict fields (KindConflict only).
	ConflictID     string `json:"conflict_id,omitempty"`
	ConflictReason string `json:"conflict_reason,omitempty"`
	ConflictStatus string `json:"conflict_status,omitempty"`

	// CorrectsEventID references the original event a compensation fixes
	// (KindCompensation only).
	CorrectsEventID string `json:"corrects_event_id,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}

// Before reports whether entry a orders strictly before b in the committed
// sequence: resolved time ascending, then trust rank descending, then device
// sequence ascending, then device id lexicographic.
func Before(a, b types.CanonicalEvent) bool {
	if !a.ResolvedAt.Equal(b.ResolvedAt) {
		return a.ResolvedAt.Before(b.ResolvedAt)
	}
	if a.TieRank != b.TieRank {
		return a.TieRank > b.TieRank
	}
	if a.DeviceSeq != b.DeviceSeq {
		return a.DeviceSeq < b.DeviceSeq
	}
	return a.DeviceID < b.DeviceID
}

// LedgerStore is the authoritative, append-only attendance record. Committed
// events are immutable; corrections land as compensation rows. Callers must
// hold the per-employee admission lock across the read-check-append sequence;
// the store itself only guarantees that each call is atomic.
type LedgerStore interface {
	// HasEvent reports whether a committed event or compensation with this
	// event_id already exists for the employee.
	HasEvent(ctx context.Context, employeeID, eventID string) (bool, error)

	// Neighbors returns the committed events that would immediately precede
	// and follow ev in the employee's sequence. Either may be nil.
	Neighbors(ctx context.Context, employeeID string, ev types.CanonicalEvent) (prev, next *LedgerEntry, err error)

	// NearestSameType returns the committed event of the given punch type
	// closest in time to `around` within ±window, or nil.
	NearestSameType(ctx context.Context, employeeID string, pt types.PunchType, around time.Time, window time.Duration) (*LedgerEntry, error)

	// AppendEvent commits a canonical event. All-or-nothing.
	AppendEvent(ctx context.Context, employeeID string, ev types.CanonicalEvent) error

	// AppendCompensation commits a correcting event referencing the original.
	AppendCompensation(ctx context.Context, employeeID string, ev types.CanonicalEvent, correctsEventID string) error

	// RecordConflict stores a rejected candidate for external adjudication.
	RecordConflict(ctx context.Context, employeeID string, entry LedgerEntry) error

	// PendingConflictByEventID returns the pending conflict row holding this
	// candidate event id, or nil. Lets a retransmit of a conflicted punch map
	// onto the existing review instead of opening another one.
	PendingConflictByEventID(ctx context.Context, employeeID, eventID string) (*LedgerEntry, error)

	// ResolveConflict flips a pending conflict to resolved. Returns false if
	// no pending conflict with that id exists.
	ResolveConflict(ctx context.Context, conflictID string, at time.Time) (bool, error)

	// Conflict looks up a single conflict row by review id.
	Conflict(ctx context.Context, conflictID string) (LedgerEntry, bool, error)

	// ReadRange returns the employee's unified timeline (events,
	// compensations, and conflict rows) with resolved_at in [from, to],
	// in committed order.
	ReadRange(ctx context.Context, employeeID string, from, to time.Time) ([]LedgerEntry, error)

	// Conflicts lists conflict rows by status across all employees,
	// most recent first.
	Conflicts(ctx context.Context, status string, limit int) ([]LedgerEntry, error)
}
