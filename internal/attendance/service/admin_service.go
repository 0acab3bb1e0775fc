package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/autonex/punchd/internal/attendance/store"
	"github.com/autonex/punchd/internal/attendance/types"
	"github.com/autonex/punchd/internal/metrics"
)

var (
	ErrInvalidBadge    = errors.New("badge is required")
	ErrConflictUnknown = errors.New("no such conflict")
)

// AdminService exposes the administrative hooks: device lifecycle, badge
// remapping, and conflict adjudication. Transport-level authentication is
// an external concern.
type AdminService struct {
	registry    *DeviceRegistry
	deviceStore store.DeviceStore
	directory   store.Directory
	ledger      store.LedgerStore
	engine      *Engine
	m           *metrics.Metrics
	logger      *log.Logger
}

func NewAdminService(reg *DeviceRegistry, ds store.DeviceStore, dir store.Directory, ledger store.LedgerStore, engine *Engine, m *metrics.Metrics, logger *log.Logger) *AdminService {
	return &AdminService{
		registry:    reg,
		deviceStore: ds,
		directory:   dir,
		ledger:      ledger,
		engine:      engine,
		m:           m,
		logger:      logger,
	}
}

// CommissionDevice registers (or re-registers) a terminal: site, declared
// clock offset, trusted state.
func (s *AdminService) CommissionDevice(ctx context.Context, deviceID, site string, declaredOffset time.Duration) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return ErrInvalidDeviceID
	}
	if err := s.deviceStore.Commission(ctx, deviceID, site, declaredOffset, time.Now().UTC()); err != nil {
		return err
	}
	s.logger.Printf("device %s commissioned (site=%s offset=%s)", deviceID, site, declaredOffset)
	return nil
}

// QuarantineDevice forces the terminal into quarantine; its punches are
// rejected until an admin reinstates it.
func (s *AdminService) QuarantineDevice(ctx context.Context, deviceID string) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return ErrInvalidDeviceID
	}
	if err := s.deviceStore.SetTrust(ctx, deviceID, types.TrustQuarantined, time.Now().UTC()); err != nil {
		return err
	}
	s.logger.Printf("device %s quarantined by admin", deviceID)
	return nil
}

// ReinstateDevice lifts a quarantine back to probation. The device earns
// trusted again only through (re)commissioning.
func (s *AdminService) ReinstateDevice(ctx context.Context, deviceID string) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return ErrInvalidDeviceID
	}
	if err := s.deviceStore.SetTrust(ctx, deviceID, types.TrustProbation, time.Now().UTC()); err != nil {
		return err
	}
	s.logger.Printf("device %s reinstated to probation", deviceID)
	return nil
}

// RemapBadge points a (reissued) badge at an employee.
func (s *AdminService) RemapBadge(ctx context.Context, badge, employeeID string) error {
	badge = strings.TrimSpace(badge)
	employeeID = strings.TrimSpace(employeeID)
	if badge == "" {
		return ErrInvalidBadge
	}
	if employeeID == "" {
		return ErrInvalidEmployeeID
	}
	if err := s.directory.RemapBadge(ctx, badge, employeeID); err != nil {
		return err
	}
	s.logger.Printf("badge %s remapped to %s", badge, employeeID)
	return nil
}

// CompensationRequest describes the correcting entry an adjudicator wants
// appended while resolving a conflict.
type CompensationRequest struct {
	PunchType  string    `json:"punch_type"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// ResolveConflict marks a pending conflict resolved and, when comp is
// non-nil, appends a compensating entry referencing the conflicting
// candidate's event id. The original ledger rows are never edited.
func (s *AdminService) ResolveConflict(ctx context.Context, conflictID string, comp *CompensationRequest) (types.AdmitResult, error) {
	entry, ok, err := s.ledger.Conflict(ctx, conflictID)
	if err != nil {
		return types.AdmitResult{}, err
	}
	if !ok {
		return types.AdmitResult{}, ErrConflictUnknown
	}

	resolved, err := s.ledger.ResolveConflict(ctx, conflictID, time.Now().UTC())
	if err != nil {
		return types.AdmitResult{}, err
	}
	if !resolved {
		return types.AdmitResult{}, ErrConflictUnknown
	}
	s.m.PendingConflicts.Dec()
	s.logger.Printf("conflict %s resolved (employee=%s)", conflictID, entry.Event.EmployeeID)

	if comp == nil {
		return types.AdmitResult{Outcome: types.OutcomeAccepted}, nil
	}

	now := time.Now().UTC()
	ev := types.CanonicalEvent{
		EventID:    compensationEventID(conflictID, comp),
		EmployeeID: entry.Event.EmployeeID,
		Type:       types.ParsePunchType(comp.PunchType),
		ResolvedAt: comp.ResolvedAt.UTC(),
		IngestedAt: now,
		DeviceID:   entry.Event.DeviceID,
		DeviceSeq:  entry.Event.DeviceSeq,
		Badge:      entry.Event.Badge,
		TieRank:    types.TrustTrusted.Rank(),
	}
	return s.engine.Compensate(ctx, ev, entry.Event.EventID)
}

// compensationEventID is deterministic per (conflict, correction) so a
// retried resolve call cannot double-append.
func compensationEventID(conflictID string, comp *CompensationRequest) string {
	composite := fmt.Sprintf("compensation|%s|%s|%d",
		conflictID, types.ParsePunchType(comp.PunchType), comp.ResolvedAt.UTC().UnixMilli())
	sum := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(sum[:])
}
