package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/autonex/punchd/internal/attendance/store"
	"github.com/autonex/punchd/internal/attendance/types"
	"github.com/autonex/punchd/internal/metrics"
)

var ErrInvalidDeviceID = errors.New("device_id is required")

// HeartbeatService records periodic terminal status reports. Heartbeats are
// accepted from unknown devices too; the response just tells the device it
// is not commissioned yet.
type HeartbeatService struct {
	heartbeatStore store.HeartbeatStore
	registry       *DeviceRegistry
	m              *metrics.Metrics
}

func NewHeartbeatService(hs store.HeartbeatStore, reg *DeviceRegistry, m *metrics.Metrics) *HeartbeatService {
	return &HeartbeatService{heartbeatStore: hs, registry: reg, m: m}
}

func (s *HeartbeatService) Record(ctx context.Context, req types.HeartbeatRequest) (types.HeartbeatResponse, error) {
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return types.HeartbeatResponse{}, ErrInvalidDeviceID
	}

	dev, err := s.registry.Resolve(ctx, deviceID)
	if err != nil {
		return types.HeartbeatResponse{}, err
	}

	rec := store.HeartbeatRecord{
		ReceivedAt: time.Now().UTC(),
		Request:    req,
	}
	if err := s.heartbeatStore.UpsertHeartbeat(ctx, deviceID, rec); err != nil {
		return types.HeartbeatResponse{}, err
	}
	s.m.Heartbeats.Inc()

	return types.HeartbeatResponse{
		OK:         true,
		Known:      dev.Commissioned,
		DeviceID:   deviceID,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}
