package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/autonex/punchd/internal/attendance/store"
	"github.com/autonex/punchd/internal/attendance/types"
)

// LedgerStore is an in-memory ledger backend for tests and dev. Entries of
// all kinds share one per-employee slice kept in committed order, mirroring
// the unified timeline the sqlite backend produces with ORDER BY.
type LedgerStore struct {
	mu         sync.RWMutex
	entries    map[string][]store.LedgerEntry // employee_id -> ordered timeline
	byEventID  map[string]map[string]struct{} // employee_id -> committed event_ids
	byConflict map[string]*conflictRef
}

type conflictRef struct {
	employeeID string
	index      int
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		entries:    make(map[string][]store.LedgerEntry),
		byEventID:  make(map[string]map[string]struct{}),
		byConflict: make(map[string]*conflictRef),
	}
}

func (s *LedgerStore) HasEvent(_ context.Context, employeeID, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEventID[employeeID][eventID]
	return ok, nil
}

func (s *LedgerStore) Neighbors(_ context.Context, employeeID string, ev types.CanonicalEvent) (*store.LedgerEntry, *store.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var prev, next *store.LedgerEntry
	for i := range s.entries[employeeID] {
		e := s.entries[employeeID][i]
		if e.Kind != store.KindEvent {
			continue
		}
		if store.Before(e.Event, ev) {
			cp := e
			prev = &cp
			continue
		}
		cp := e
		next = &cp
		break
	}
	return prev, next, nil
}

func (s *LedgerStore) NearestSameType(_ context.Context, employeeID string, pt types.PunchType, around time.Time, window time.Duration) (*store.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *store.LedgerEntry
	var bestDist time.Duration
	for i := range s.entries[employeeID] {
		e := s.entries[employeeID][i]
		if e.Kind != store.KindEvent || e.Event.Type != pt {
			continue
		}
		dist := e.Event.ResolvedAt.Sub(around)
		if dist < 0 {
			dist = -dist
		}
		if dist > window {
			continue
		}
		if best == nil || dist < bestDist {
			cp := e
			best = &cp
			bestDist = dist
		}
	}
	return best, nil
}

func (s *LedgerStore) AppendEvent(_ context.Context, employeeID string, ev types.CanonicalEvent) error {
	return s.insert(employeeID, store.LedgerEntry{
		Kind:       store.KindEvent,
		Event:      ev,
		RecordedAt: time.Now().UTC(),
	})
}

func (s *LedgerStore) AppendCompensation(_ context.Context, employeeID string, ev types.CanonicalEvent, correctsEventID string) error {
	return s.insert(employeeID, store.LedgerEntry{
		Kind:            store.KindCompensation,
		Event:           ev,
		CorrectsEventID: correctsEventID,
		RecordedAt:      time.Now().UTC(),
	})
}

func (s *LedgerStore) insert(employeeID string, entry store.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[employeeID]
	i := sort.Search(len(list), func(i int) bool {
		return !store.Before(list[i].Event, entry.Event)
	})
	list = append(list, store.LedgerEntry{})
	copy(list[i+1:], list[i:])
	list[i] = entry
	s.entries[employeeID] = list
	s.reindexConflicts(employeeID)

	ids := s.byEventID[employeeID]
	if ids == nil {
		ids = make(map[string]struct{})
		s.byEventID[employeeID] = ids
	}
	ids[entry.Event.EventID] = struct{}{}
	return nil
}

func (s *LedgerStore) RecordConflict(_ context.Context, employeeID string, entry store.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Kind = store.KindConflict
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}

	list := s.entries[employeeID]
	i := sort.Search(len(list), func(i int) bool {
		return !store.Before(list[i].Event, entry.Event)
	})
	list = append(list, store.LedgerEntry{})
	copy(list[i+1:], list[i:])
	list[i] = entry
	s.entries[employeeID] = list
	s.reindexConflicts(employeeID)
	return nil
}

func (s *LedgerStore) PendingConflictByEventID(_ context.Context, employeeID, eventID string) (*store.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries[employeeID] {
		if e.Kind == store.KindConflict && e.ConflictStatus == store.ConflictPending && e.Event.EventID == eventID {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

// reindexConflicts rebuilds conflict positions after an insertion shifted
// indices. Timelines are short-lived test data, so a linear pass is fine.
func (s *LedgerStore) reindexConflicts(employeeID string) {
	for i := range s.entries[employeeID] {
		e := s.entries[employeeID][i]
		if e.Kind == store.KindConflict {
			s.byConflict[e.ConflictID] = &conflictRef{employeeID: employeeID, index: i}
		}
	}
}

func (s *LedgerStore) ResolveConflict(_ context.Context, conflictID string, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, ok := s.byConflict[conflictID]
	if !ok {
		return false, nil
	}
	e := &s.entries[ref.employeeID][ref.index]
	if e.ConflictStatus != store.ConflictPending {
		return false, nil
	}
	e.ConflictStatus = store.ConflictResolved
	return true, nil
}

func (s *LedgerStore) Conflict(_ context.Context, conflictID string) (store.LedgerEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, ok := s.byConflict[conflictID]
	if !ok {
		return store.LedgerEntry{}, false, nil
	}
	return s.entries[ref.employeeID][ref.index], true, nil
}

func (s *LedgerStore) ReadRange(_ context.Context, employeeID string, from, to time.Time) ([]store.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.LedgerEntry
	for _, e := range s.entries[employeeID] {
		t := e.Event.ResolvedAt
		if t.Before(from) || t.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *LedgerStore) Conflicts(_ context.Context, status string, limit int) ([]store.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.LedgerEntry
	for _, list := range s.entries {
		for _, e := range list {
			if e.Kind != store.KindConflict {
				continue
			}
			if status != "" && e.ConflictStatus != status {
				continue
			}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Entries returns a copy of one employee's full timeline. Test-only helper.
func (s *LedgerStore) Entries(employeeID string) []store.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.LedgerEntry, len(s.entries[employeeID]))
	copy(out, s.entries[employeeID])
	return out
}
