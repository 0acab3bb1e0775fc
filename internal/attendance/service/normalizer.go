package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/autonex/punchd/internal/attendance/store"
	"github.com/autonex/punchd/internal/attendance/types"
)

// NormalizerConfig holds the timestamp sanity bounds.
type NormalizerConfig struct {
	// MaxClockDrift is how far a resolved timestamp may sit from ingestion
	// time before the punch is rejected as misconfigured or malicious.
	// Devices on probation (or never commissioned) get half this bound.
	MaxClockDrift time.Duration
}

// Normalizer converts raw punches into canonical events: device and badge
// resolution, clock-offset application, drift clamping, and the
// content-derived event id that makes re-delivery idempotent.
type Normalizer struct {
	registry  *DeviceRegistry
	directory store.Directory
	cfg       NormalizerConfig

	// Now is injectable for tests.
	Now func() time.Time
}

func NewNormalizer(reg *DeviceRegistry, dir store.Directory, cfg NormalizerConfig) *Normalizer {
	if cfg.MaxClockDrift <= 0 {
		cfg.MaxClockDrift = 24 * time.Hour
	}
	return &Normalizer{
		registry:  reg,
		directory: dir,
		cfg:       cfg,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// EventID derives the deterministic content hash for a raw punch. The same
// physical punch always hashes to the same id, no matter how many times the
// device retransmits it.
func EventID(rp types.RawPunch) string {
	composite := fmt.Sprintf("%s|%d|%s|%s",
		strings.TrimSpace(rp.DeviceID), rp.DeviceSeq, strings.TrimSpace(rp.Badge), types.ParsePunchType(rp.PunchType))
	sum := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(sum[:])
}

// Normalize returns the canonical event, or a non-nil rejection result.
// Rejections are reported to the caller, never silently dropped; timestamp
// rejections also count against the device's anomaly window.
func (n *Normalizer) Normalize(ctx context.Context, rp types.RawPunch) (types.CanonicalEvent, *types.AdmitResult, error) {
	ingested := n.Now()

	deviceID := strings.TrimSpace(rp.DeviceID)
	if deviceID == "" {
		return types.CanonicalEvent{}, reject(types.ReasonMissingDeviceID), nil
	}
	badge := strings.TrimSpace(rp.Badge)
	if badge == "" {
		_ = n.registry.RecordAnomaly(ctx, deviceID, store.AnomalyBadPayload)
		return types.CanonicalEvent{}, reject(types.ReasonMissingBadge), nil
	}

	punchedAt, err := parseDeviceTime(rp.PunchedAt)
	if err != nil {
		_ = n.registry.RecordAnomaly(ctx, deviceID, store.AnomalyBadPayload)
		return types.CanonicalEvent{}, reject(types.ReasonBadTimestamp), nil
	}

	dev, err := n.registry.Resolve(ctx, deviceID)
	if err != nil {
		return types.CanonicalEvent{}, nil, err
	}
	if dev.Trust == types.TrustQuarantined {
		return types.CanonicalEvent{}, reject(types.ReasonDeviceQuarantined), nil
	}

	employeeID, ok, err := n.directory.ResolveBadge(ctx, badge)
	if err != nil {
		return types.CanonicalEvent{}, nil, err
	}
	if !ok {
		return types.CanonicalEvent{}, reject(types.ReasonUnknownBadge), nil
	}

	correction := n.registry.SkewCorrection(deviceID)
	resolved := punchedAt.Add(dev.DeclaredOffset).Add(correction)

	// Clamp to a sane window around ingestion time. Unverified and
	// probation devices get the stricter half-bound.
	bound := n.cfg.MaxClockDrift
	if !dev.Commissioned || dev.Trust != types.TrustTrusted {
		bound = bound / 2
	}
	if drift := resolved.Sub(ingested); drift > bound || drift < -bound {
		_ = n.registry.RecordAnomaly(ctx, deviceID, store.AnomalyTimestampOutOfBounds)
		return types.CanonicalEvent{}, reject(types.ReasonTimestampOutOfBound), nil
	}

	return types.CanonicalEvent{
		EventID:     EventID(rp),
		EmployeeID:  employeeID,
		Type:        types.ParsePunchType(rp.PunchType),
		ResolvedAt:  resolved,
		IngestedAt:  ingested,
		DeviceID:    deviceID,
		DeviceSeq:   rp.DeviceSeq,
		Badge:       badge,
		Name:        strings.TrimSpace(rp.Name),
		Confidence:  rp.Confidence,
		TieRank:     dev.Trust.Rank(),
		SkewApplied: correction,
		Unverified:  !dev.Commissioned,
	}, nil, nil
}

func reject(reason string) *types.AdmitResult {
	return &types.AdmitResult{Outcome: types.OutcomeRejected, Reason: reason}
}

// parseDeviceTime accepts the timestamp formats seen in terminal firmware.
func parseDeviceTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	// Older firmware sends "YYYY-MM-DD HH:MM:SS" in device-local UTC.
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
