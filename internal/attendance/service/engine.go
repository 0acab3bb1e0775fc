package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/autonex/punchd/internal/attendance/store"
	"github.com/autonex/punchd/internal/attendance/types"
	"github.com/autonex/punchd/internal/metrics"
)

// EngineConfig holds the conflict-detection knobs.
type EngineConfig struct {
	// ConflictWindow: a same-type committed event from a different device
	// within this window of the candidate is a conflict even when the
	// in/out alternation would otherwise allow it.
	ConflictWindow time.Duration
}

// Engine is the deduplication and ordering core. Admit takes a canonical
// event and produces exactly one definite outcome. All reads and the final
// append for one employee happen under that employee's admission lock, so
// the check-then-append sequence is atomic per employee.
type Engine struct {
	ledger   store.LedgerStore
	registry *DeviceRegistry
	cfg      EngineConfig
	locks    *employeeLocks
	m        *metrics.Metrics
	logger   *log.Logger

	// sink, when set, receives every committed event (archive forwarder).
	sink func(ev types.CanonicalEvent)
}

func NewEngine(ledger store.LedgerStore, reg *DeviceRegistry, cfg EngineConfig, m *metrics.Metrics, logger *log.Logger) *Engine {
	if cfg.ConflictWindow <= 0 {
		cfg.ConflictWindow = 2 * time.Minute
	}
	return &Engine{
		ledger:   ledger,
		registry: reg,
		cfg:      cfg,
		locks:    newEmployeeLocks(),
		m:        m,
		logger:   logger,
	}
}

// SetSink registers a committed-event listener. Must be called before the
// engine starts admitting.
func (e *Engine) SetSink(fn func(ev types.CanonicalEvent)) { e.sink = fn }

// Admit runs dedup, conflict detection, and ordering for one canonical
// event. A returned error means the ledger write failed and the caller may
// retry; re-submission is idempotent thanks to the content-derived event id.
func (e *Engine) Admit(ctx context.Context, ev types.CanonicalEvent) (types.AdmitResult, error) {
	lock := e.locks.get(ev.EmployeeID)
	lock.Lock()
	defer lock.Unlock()

	// Idempotence: same physical punch, same event id, no-op.
	dup, err := e.ledger.HasEvent(ctx, ev.EmployeeID, ev.EventID)
	if err != nil {
		return types.AdmitResult{}, fmt.Errorf("dedup lookup: %w", err)
	}
	if dup {
		return types.AdmitResult{Outcome: types.OutcomeDuplicate, EventID: ev.EventID}, nil
	}

	// Unclassified punches bypass the in/out sequence rules; they are kept
	// for the timeline but carry no pairing semantics.
	if ev.Type == types.PunchIn || ev.Type == types.PunchOut {
		if res, err := e.checkConflicts(ctx, ev); err != nil || res != nil {
			if err != nil {
				return types.AdmitResult{}, err
			}
			return *res, nil
		}
	}

	_, next, err := e.ledger.Neighbors(ctx, ev.EmployeeID, ev)
	if err != nil {
		return types.AdmitResult{}, fmt.Errorf("neighbors: %w", err)
	}

	if err := e.ledger.AppendEvent(ctx, ev.EmployeeID, ev); err != nil {
		return types.AdmitResult{}, fmt.Errorf("ledger append: %w", err)
	}

	// Feed the estimator the raw device offset from events that made it in.
	// ResolvedAt already folds in the learned correction, so add it back;
	// observing the residual would settle the estimate at half the true skew.
	e.registry.ObserveSkew(ev.DeviceID, ev.IngestedAt.Sub(ev.ResolvedAt)+ev.SkewApplied)

	if e.sink != nil {
		e.sink(ev)
	}

	outcome := types.OutcomeAccepted
	if next != nil {
		// The event landed before the current tail: a device flushed a
		// backlog after an outage.
		outcome = types.OutcomeReordered
		e.logger.Printf("reordered punch employee=%s device=%s resolved=%s (tail was later)",
			ev.EmployeeID, ev.DeviceID, ev.ResolvedAt.Format(time.RFC3339))
	}
	return types.AdmitResult{Outcome: outcome, EventID: ev.EventID}, nil
}

// Compensate commits a correcting entry under the employee's admission
// lock. Compensations are adjudicator-authored and deliberately skip the
// sequence rules; the ledger records them as their own kind so the original
// event stays untouched.
func (e *Engine) Compensate(ctx context.Context, ev types.CanonicalEvent, correctsEventID string) (types.AdmitResult, error) {
	lock := e.locks.get(ev.EmployeeID)
	lock.Lock()
	defer lock.Unlock()

	dup, err := e.ledger.HasEvent(ctx, ev.EmployeeID, ev.EventID)
	if err != nil {
		return types.AdmitResult{}, fmt.Errorf("dedup lookup: %w", err)
	}
	if dup {
		return types.AdmitResult{Outcome: types.OutcomeDuplicate, EventID: ev.EventID}, nil
	}
	if err := e.ledger.AppendCompensation(ctx, ev.EmployeeID, ev, correctsEventID); err != nil {
		return types.AdmitResult{}, fmt.Errorf("append compensation: %w", err)
	}
	return types.AdmitResult{Outcome: types.OutcomeAccepted, EventID: ev.EventID}, nil
}

// checkConflicts applies the two sequence rules. A violation records a
// pending-conflict entry (never a ledger event) and returns its result.
func (e *Engine) checkConflicts(ctx context.Context, ev types.CanonicalEvent) (*types.AdmitResult, error) {
	// Rule 1: same-type event from a different device inside the conflict
	// window: two terminals both claiming the punch.
	near, err := e.ledger.NearestSameType(ctx, ev.EmployeeID, ev.Type, ev.ResolvedAt, e.cfg.ConflictWindow)
	if err != nil {
		return nil, fmt.Errorf("conflict window lookup: %w", err)
	}
	if near != nil && near.Event.DeviceID != ev.DeviceID {
		return e.recordConflict(ctx, ev, types.ReasonDuplicateWindow)
	}

	// Rule 2: insertion must not create two adjacent same-type events.
	prev, next, err := e.ledger.Neighbors(ctx, ev.EmployeeID, ev)
	if err != nil {
		return nil, fmt.Errorf("neighbors: %w", err)
	}
	if prev != nil && prev.Event.Type == ev.Type {
		return e.recordConflict(ctx, ev, types.ReasonDoubleSameType)
	}
	if next != nil && next.Event.Type == ev.Type {
		return e.recordConflict(ctx, ev, types.ReasonDoubleSameType)
	}
	return nil, nil
}

func (e *Engine) recordConflict(ctx context.Context, ev types.CanonicalEvent, reason string) (*types.AdmitResult, error) {
	// A device retrying a conflicted punch resends the same event id. Map the
	// retransmit onto the existing review; a fresh row per delivery attempt
	// would inflate the adjudication backlog and the anomaly count.
	existing, err := e.ledger.PendingConflictByEventID(ctx, ev.EmployeeID, ev.EventID)
	if err != nil {
		return nil, fmt.Errorf("pending conflict lookup: %w", err)
	}
	if existing != nil {
		return &types.AdmitResult{
			Outcome:    types.OutcomeConflict,
			Reason:     existing.ConflictReason,
			EventID:    ev.EventID,
			ConflictID: existing.ConflictID,
		}, nil
	}

	id := uuid.NewString()
	entry := store.LedgerEntry{
		Kind:           store.KindConflict,
		Event:          ev,
		ConflictID:     id,
		ConflictReason: reason,
		ConflictStatus: store.ConflictPending,
		RecordedAt:     time.Now().UTC(),
	}
	if err := e.ledger.RecordConflict(ctx, ev.EmployeeID, entry); err != nil {
		return nil, fmt.Errorf("record conflict: %w", err)
	}
	_ = e.registry.RecordAnomaly(ctx, ev.DeviceID, store.AnomalySequenceConflict)
	e.m.PendingConflicts.Inc()
	e.logger.Printf("conflict employee=%s device=%s type=%s reason=%s review=%s",
		ev.EmployeeID, ev.DeviceID, ev.Type, reason, id)
	return &types.AdmitResult{
		Outcome:    types.OutcomeConflict,
		Reason:     reason,
		EventID:    ev.EventID,
		ConflictID: id,
	}, nil
}
