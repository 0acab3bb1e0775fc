package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/autonex/punchd/internal/attendance/store"
	"github.com/autonex/punchd/internal/attendance/types"
)

type anomaly struct {
	kind store.AnomalyKind
	at   time.Time
}

// DeviceStore is an in-memory device registry backend for tests and dev.
type DeviceStore struct {
	mu        sync.RWMutex
	devices   map[string]types.Device
	anomalies map[string][]anomaly
}

// NewDeviceStore pre-commissions the given device IDs as trusted.
func NewDeviceStore(commissioned []string) *DeviceStore {
	s := &DeviceStore{
		devices:   make(map[string]types.Device),
		anomalies: make(map[string][]anomaly),
	}
	now := time.Now().UTC()
	for _, id := range commissioned {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		s.devices[id] = types.Device{
			DeviceID:     id,
			Commissioned: true,
			Trust:        types.TrustTrusted,
			FirstSeen:    now,
		}
	}
	return s
}

func (s *DeviceStore) Get(_ context.Context, deviceID string) (types.Device, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[deviceID]
	return d, ok, nil
}

func (s *DeviceStore) EnsureSeen(_ context.Context, deviceID string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[deviceID]
	if !ok {
		d = types.Device{
			DeviceID:  deviceID,
			Trust:     types.TrustProbation,
			FirstSeen: t,
		}
	}
	d.LastSeen = t
	s.devices[deviceID] = d
	return nil
}

func (s *DeviceStore) Commission(_ context.Context, deviceID, site string, declaredOffset time.Duration, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[deviceID]
	if !ok {
		d = types.Device{DeviceID: deviceID, FirstSeen: t}
	}
	d.Site = site
	d.Commissioned = true
	d.Trust = types.TrustTrusted
	d.DeclaredOffset = declaredOffset
	s.devices[deviceID] = d
	return nil
}

func (s *DeviceStore) SetTrust(_ context.Context, deviceID string, trust types.TrustState, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[deviceID]
	if !ok {
		d = types.Device{DeviceID: deviceID, FirstSeen: t}
	}
	d.Trust = trust
	s.devices[deviceID] = d
	return nil
}

func (s *DeviceStore) RecordAnomaly(_ context.Context, deviceID string, kind store.AnomalyKind, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalies[deviceID] = append(s.anomalies[deviceID], anomaly{kind: kind, at: at})
	return nil
}

func (s *DeviceStore) CountAnomaliesSince(_ context.Context, deviceID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.anomalies[deviceID] {
		if !a.at.Before(since) {
			n++
		}
	}
	return n, nil
}
