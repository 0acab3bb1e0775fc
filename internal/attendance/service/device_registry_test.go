package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/autonex/punchd/internal/attendance/service"
	"github.com/autonex/punchd/internal/attendance/store"
	"github.com/autonex/punchd/internal/attendance/store/memory"
	"github.com/autonex/punchd/internal/attendance/types"
)

func TestRegistry_ResolveCreatesUnknownDevice(t *testing.T) {
	deviceStore := memory.NewDeviceStore(nil)
	reg := service.NewDeviceRegistry(deviceStore, service.RegistryConfig{}, silentLogger())

	d, err := reg.Resolve(context.Background(), "term-new")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Commissioned {
		t.Error("expected uncommissioned on first contact")
	}
	if d.Trust != types.TrustProbation {
		t.Errorf("expected probation trust, got %s", d.Trust)
	}
}

func TestRegistry_AnomaliesEscalateTrust(t *testing.T) {
	ctx := context.Background()
	deviceStore := memory.NewDeviceStore([]string{"term-a"})
	reg := service.NewDeviceRegistry(deviceStore, service.RegistryConfig{
		AnomalyWindow:    time.Hour,
		AnomalyThreshold: 3,
	}, silentLogger())

	// Two anomalies: still trusted.
	for i := 0; i < 2; i++ {
		if err := reg.RecordAnomaly(ctx, "term-a", store.AnomalyBadPayload); err != nil {
			t.Fatalf("RecordAnomaly: %v", err)
		}
	}
	d, _, _ := deviceStore.Get(ctx, "term-a")
	if d.Trust != types.TrustTrusted {
		t.Fatalf("expected still trusted, got %s", d.Trust)
	}

	// Third crosses the threshold: one level down.
	if err := reg.RecordAnomaly(ctx, "term-a", store.AnomalyTimestampOutOfBounds); err != nil {
		t.Fatalf("RecordAnomaly: %v", err)
	}
	d, _, _ = deviceStore.Get(ctx, "term-a")
	if d.Trust != types.TrustProbation {
		t.Fatalf("expected probation, got %s", d.Trust)
	}

	// Further anomalies keep escalating until quarantine, then stop.
	if err := reg.RecordAnomaly(ctx, "term-a", store.AnomalySequenceConflict); err != nil {
		t.Fatalf("RecordAnomaly: %v", err)
	}
	d, _, _ = deviceStore.Get(ctx, "term-a")
	if d.Trust != types.TrustQuarantined {
		t.Fatalf("expected quarantined, got %s", d.Trust)
	}

	if err := reg.RecordAnomaly(ctx, "term-a", store.AnomalySequenceConflict); err != nil {
		t.Fatalf("RecordAnomaly: %v", err)
	}
	d, _, _ = deviceStore.Get(ctx, "term-a")
	if d.Trust != types.TrustQuarantined {
		t.Errorf("quarantine is the floor, got %s", d.Trust)
	}
}

func TestRegistry_SkewObservationsFeedCorrection(t *testing.T) {
	reg := service.NewDeviceRegistry(memory.NewDeviceStore(nil), service.RegistryConfig{
		SkewWindow:        8,
		MaxSkewCorrection: 10 * time.Minute,
	}, silentLogger())

	if got := reg.SkewCorrection("term-a"); got != 0 {
		t.Fatalf("expected zero correction before samples, got %v", got)
	}

	for i := 0; i < 6; i++ {
		reg.ObserveSkew("term-a", 2*time.Minute)
	}
	if got := reg.SkewCorrection("term-a"); got != 2*time.Minute {
		t.Errorf("expected 2m correction, got %v", got)
	}

	// Estimators are per device.
	if got := reg.SkewCorrection("term-b"); got != 0 {
		t.Errorf("expected zero correction for other device, got %v", got)
	}
}
