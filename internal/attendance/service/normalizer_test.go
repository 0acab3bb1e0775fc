package service_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/autonex/punchd/internal/attendance/service"
	"github.com/autonex/punchd/internal/attendance/store/memory"
	"github.com/autonex/punchd/internal/attendance/types"
)

// newTestNormalizer wires a Normalizer over in-memory stores with a frozen
// clock so drift bounds are deterministic.
func newTestNormalizer(t *testing.T, now time.Time) (*service.Normalizer, *memory.DeviceStore) {
	t.Helper()

	logger := log.New(io.Discard, "", 0)
	deviceStore := memory.NewDeviceStore([]string{"term-a"})
	registry := service.NewDeviceRegistry(deviceStore, service.RegistryConfig{}, logger)
	directory := memory.NewDirectory(map[string]string{"B-1001": "emp-alice"})

	n := service.NewNormalizer(registry, directory, service.NormalizerConfig{
		MaxClockDrift: 24 * time.Hour,
	})
	n.Now = func() time.Time { return now }
	return n, deviceStore
}

func rawPunch(device, badge, at string) types.RawPunch {
	return types.RawPunch{
		DeviceID:  device,
		Badge:     badge,
		DeviceSeq: 1,
		PunchedAt: at,
		PunchType: "in",
	}
}

func TestNormalize_ValidPunch(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 30, 0, time.UTC)
	n, _ := newTestNormalizer(t, now)

	ev, rej, err := n.Normalize(context.Background(), rawPunch("term-a", "B-1001", "2026-03-02T09:00:00Z"))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rej != nil {
		t.Fatalf("unexpected rejection: %s", rej.Reason)
	}
	if ev.EmployeeID != "emp-alice" {
		t.Errorf("expected employee resolved from badge, got %q", ev.EmployeeID)
	}
	if ev.Type != types.PunchIn {
		t.Errorf("expected punch type in, got %s", ev.Type)
	}
	if ev.EventID == "" {
		t.Error("expected a content-derived event id")
	}
	if ev.Unverified {
		t.Error("commissioned device should not be flagged unverified")
	}
	if !ev.IngestedAt.Equal(now) {
		t.Errorf("expected ingested_at=%v, got %v", now, ev.IngestedAt)
	}
}

func TestNormalize_Rejections(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		punch  types.RawPunch
		reason string
	}{
		{"missing device", rawPunch("", "B-1001", "2026-03-02T09:00:00Z"), types.ReasonMissingDeviceID},
		{"missing badge", rawPunch("term-a", "", "2026-03-02T09:00:00Z"), types.ReasonMissingBadge},
		{"bad timestamp", rawPunch("term-a", "B-1001", "yesterday-ish"), types.ReasonBadTimestamp},
		{"unknown badge", rawPunch("term-a", "B-9999", "2026-03-02T09:00:00Z"), types.ReasonUnknownBadge},
		{"too far in past", rawPunch("term-a", "B-1001", "2026-02-27T09:00:00Z"), types.ReasonTimestampOutOfBound},
		{"too far in future", rawPunch("term-a", "B-1001", "2026-03-05T09:00:00Z"), types.ReasonTimestampOutOfBound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, _ := newTestNormalizer(t, now)
			_, rej, err := n.Normalize(context.Background(), tc.punch)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if rej == nil {
				t.Fatal("expected a rejection")
			}
			if rej.Outcome != types.OutcomeRejected {
				t.Errorf("expected rejected, got %s", rej.Outcome)
			}
			if rej.Reason != tc.reason {
				t.Errorf("expected reason=%s, got %s", tc.reason, rej.Reason)
			}
		})
	}
}

func TestNormalize_QuarantinedDeviceRejected(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	n, deviceStore := newTestNormalizer(t, now)

	if err := deviceStore.SetTrust(context.Background(), "term-a", types.TrustQuarantined, now); err != nil {
		t.Fatalf("SetTrust: %v", err)
	}

	_, rej, err := n.Normalize(context.Background(), rawPunch("term-a", "B-1001", "2026-03-02T09:00:00Z"))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rej == nil || rej.Reason != types.ReasonDeviceQuarantined {
		t.Fatalf("expected device_quarantined rejection, got %+v", rej)
	}
}

func TestNormalize_UnknownDeviceUnverifiedAndStricterBound(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	n, _ := newTestNormalizer(t, now)

	// 18h drift: inside the 24h trusted bound, outside the 12h probation bound.
	_, rej, err := n.Normalize(context.Background(), rawPunch("term-new", "B-1001", "2026-03-01T15:00:00Z"))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rej == nil || rej.Reason != types.ReasonTimestampOutOfBound {
		t.Fatalf("expected stricter bound for unknown device, got %+v", rej)
	}

	// Within the half bound the punch goes through, tagged unverified.
	ev, rej, err := n.Normalize(context.Background(), rawPunch("term-new", "B-1001", "2026-03-02T08:00:00Z"))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rej != nil {
		t.Fatalf("unexpected rejection: %s", rej.Reason)
	}
	if !ev.Unverified {
		t.Error("expected unverified flag for an uncommissioned device")
	}
	if ev.TieRank != types.TrustProbation.Rank() {
		t.Errorf("expected probation tie rank, got %d", ev.TieRank)
	}
}

func TestNormalize_DeclaredOffsetApplied(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	n, deviceStore := newTestNormalizer(t, now)

	// Terminal clock runs 30 minutes behind; commissioning declared it.
	if err := deviceStore.Commission(context.Background(), "term-a", "HQ", 30*time.Minute, now); err != nil {
		t.Fatalf("Commission: %v", err)
	}

	ev, rej, err := n.Normalize(context.Background(), rawPunch("term-a", "B-1001", "2026-03-02T08:30:00Z"))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rej != nil {
		t.Fatalf("unexpected rejection: %s", rej.Reason)
	}
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !ev.ResolvedAt.Equal(want) {
		t.Errorf("expected resolved_at=%v, got %v", want, ev.ResolvedAt)
	}
}

func TestNormalize_LegacyTimestampFormat(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 30, 0, time.UTC)
	n, _ := newTestNormalizer(t, now)

	ev, rej, err := n.Normalize(context.Background(), rawPunch("term-a", "B-1001", "2026-03-02 09:00:00"))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rej != nil {
		t.Fatalf("unexpected rejection: %s", rej.Reason)
	}
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !ev.ResolvedAt.Equal(want) {
		t.Errorf("expected resolved_at=%v, got %v", want, ev.ResolvedAt)
	}
}

func TestEventID_DeterministicAndTimestampIndependent(t *testing.T) {
	a := rawPunch("term-a", "B-1001", "2026-03-02T09:00:00Z")
	b := rawPunch("term-a", "B-1001", "2026-03-02T09:00:05Z") // retransmit, clock moved

	if service.EventID(a) != service.EventID(b) {
		t.Error("event id must not depend on the reported timestamp")
	}

	c := a
	c.DeviceSeq = 2
	if service.EventID(a) == service.EventID(c) {
		t.Error("different device sequence must produce a different event id")
	}

	d := a
	d.DeviceID = "term-b"
	if service.EventID(a) == service.EventID(d) {
		t.Error("different device must produce a different event id")
	}
}
