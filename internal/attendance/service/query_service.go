package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/autonex/punchd/internal/attendance/store"
	"github.com/autonex/punchd/internal/attendance/types"
)

var (
	ErrInvalidEmployeeID = errors.New("employee_id is required")
	ErrInvalidDay        = errors.New("day must be YYYY-MM-DD")
)

// QueryService answers point-in-time and range queries against the ledger.
// Reads include pending conflicts so downstream consumers see one timeline.
type QueryService struct {
	ledger store.LedgerStore
}

func NewQueryService(ledger store.LedgerStore) *QueryService {
	return &QueryService{ledger: ledger}
}

// Events returns the employee's unified timeline for [from, to].
func (s *QueryService) Events(ctx context.Context, employeeID string, from, to time.Time) ([]store.LedgerEntry, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return nil, ErrInvalidEmployeeID
	}
	return s.ledger.ReadRange(ctx, employeeID, from, to)
}

// Conflicts lists conflict entries by review status ("" = all).
func (s *QueryService) Conflicts(ctx context.Context, status string, limit int) ([]store.LedgerEntry, error) {
	return s.ledger.Conflicts(ctx, status, limit)
}

// Summary derives the attendance summary for one employee-day (UTC) by
// pairing consecutive in/out events. A trailing unmatched `in` flags the
// day Open rather than failing.
func (s *QueryService) Summary(ctx context.Context, employeeID, day string) (types.DaySummary, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return types.DaySummary{}, ErrInvalidEmployeeID
	}
	dayStart, err := time.Parse("2006-01-02", day)
	if err != nil {
		return types.DaySummary{}, ErrInvalidDay
	}
	dayEnd := dayStart.Add(24*time.Hour - time.Nanosecond)

	entries, err := s.ledger.ReadRange(ctx, employeeID, dayStart, dayEnd)
	if err != nil {
		return types.DaySummary{}, err
	}

	sum := types.DaySummary{EmployeeID: employeeID, Day: day}
	var openIn *time.Time

	for _, e := range entries {
		// Compensations participate in pairing: they are the corrected
		// record. Conflicts and unclassified punches do not.
		if e.Kind == store.KindConflict {
			continue
		}
		switch e.Event.Type {
		case types.PunchIn:
			if openIn != nil {
				// Double-in should be impossible in a committed ledger;
				// if present (legacy data), the earlier in stays open.
				continue
			}
			t := e.Event.ResolvedAt
			openIn = &t
			if sum.FirstIn == nil {
				sum.FirstIn = &t
			}
		case types.PunchOut:
			if openIn == nil {
				continue
			}
			out := e.Event.ResolvedAt
			sum.Sessions = append(sum.Sessions, types.WorkSession{In: *openIn, Out: &out})
			sum.Total += out.Sub(*openIn)
			sum.LastOut = &out
			openIn = nil
		}
	}

	if openIn != nil {
		sum.Sessions = append(sum.Sessions, types.WorkSession{In: *openIn})
		sum.Open = true
	}
	sum.TotalStr = sum.Total.String()
	return sum, nil
}
