package service_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/autonex/punchd/internal/attendance/service"
	"github.com/autonex/punchd/internal/attendance/store/memory"
	"github.com/autonex/punchd/internal/attendance/types"
	"github.com/autonex/punchd/internal/metrics"
)

func newTestHeartbeatService(t *testing.T, commissioned []string) *service.HeartbeatService {
	t.Helper()

	logger := silentLogger()
	deviceStore := memory.NewDeviceStore(commissioned)
	registry := service.NewDeviceRegistry(deviceStore, service.RegistryConfig{}, logger)
	m := metrics.New(prometheus.NewRegistry())
	return service.NewHeartbeatService(memory.NewHeartbeatStore(), registry, m)
}

func TestHeartbeat_CommissionedDevice_Known(t *testing.T) {
	svc := newTestHeartbeatService(t, []string{"term-a"})

	resp, err := svc.Record(context.Background(), types.HeartbeatRequest{
		DeviceID:      "term-a",
		UptimeSeconds: 42,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !resp.OK {
		t.Error("expected ok=true")
	}
	if !resp.Known {
		t.Error("expected known=true for a commissioned terminal")
	}
	if resp.DeviceID != "term-a" {
		t.Errorf("expected device_id echoed back, got %q", resp.DeviceID)
	}
	if resp.ServerTime == "" {
		t.Error("expected server_time to be set")
	}
}

func TestHeartbeat_UnknownDevice_StillAccepted(t *testing.T) {
	svc := newTestHeartbeatService(t, []string{"term-a"})

	resp, err := svc.Record(context.Background(), types.HeartbeatRequest{
		DeviceID: "term-rogue",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !resp.OK {
		t.Error("expected ok=true (heartbeats are accepted from unknown terminals)")
	}
	if resp.Known {
		t.Error("expected known=false for an uncommissioned terminal")
	}
}

func TestHeartbeat_MissingDeviceID_Error(t *testing.T) {
	svc := newTestHeartbeatService(t, nil)

	_, err := svc.Record(context.Background(), types.HeartbeatRequest{})
	if err != service.ErrInvalidDeviceID {
		t.Errorf("expected ErrInvalidDeviceID, got %v", err)
	}
}
