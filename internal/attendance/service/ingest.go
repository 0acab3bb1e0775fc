package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/autonex/punchd/internal/attendance/types"
	"github.com/autonex/punchd/internal/metrics"
)

// IngestConfig bounds the ingestion entry point.
type IngestConfig struct {
	// DeviceQueueDepth is how many punches from one device may be in
	// flight at once; beyond that the device gets an Overload outcome
	// and is expected to back off.
	DeviceQueueDepth int

	// Timeout bounds one Ingest call. An expired call returns an error
	// without a partial append; the content-derived event id makes the
	// retry safe.
	Timeout time.Duration
}

// IngestService is the ingestion entry point the transport hands parsed
// punches to. It gates per-device concurrency, applies the call timeout,
// normalizes, and runs the admission engine.
type IngestService struct {
	normalizer *Normalizer
	engine     *Engine
	cfg        IngestConfig
	m          *metrics.Metrics

	mu    sync.Mutex
	gates map[string]chan struct{}
}

func NewIngestService(n *Normalizer, e *Engine, cfg IngestConfig, m *metrics.Metrics) *IngestService {
	if cfg.DeviceQueueDepth <= 0 {
		cfg.DeviceQueueDepth = 32
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &IngestService{
		normalizer: n,
		engine:     e,
		cfg:        cfg,
		m:          m,
	}
}

// Ingest processes one raw punch to a definite outcome. Every return path
// yields either an AdmitResult or an error the caller may retry; nothing is
// buffered past the per-device gate.
func (s *IngestService) Ingest(ctx context.Context, rp types.RawPunch) (types.AdmitResult, error) {
	start := time.Now()
	res, err := s.ingest(ctx, rp)
	if err == nil {
		s.m.AdmitOutcomes.WithLabelValues(string(res.Outcome)).Inc()
		s.m.AdmitDuration.Observe(time.Since(start).Seconds())
	}
	return res, err
}

func (s *IngestService) ingest(ctx context.Context, rp types.RawPunch) (types.AdmitResult, error) {
	release, ok := s.acquire(rp.DeviceID)
	if !ok {
		return types.AdmitResult{Outcome: types.OutcomeOverload, Reason: types.ReasonQueueFull}, nil
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	ev, rejected, err := s.normalizer.Normalize(ctx, rp)
	if err != nil {
		return types.AdmitResult{}, err
	}
	if rejected != nil {
		return *rejected, nil
	}

	return s.engine.Admit(ctx, ev)
}

// acquire takes a slot on the device's bounded gate without blocking.
func (s *IngestService) acquire(deviceID string) (func(), bool) {
	deviceID = strings.TrimSpace(deviceID)

	s.mu.Lock()
	gate, ok := s.gates[deviceID]
	if !ok {
		if s.gates == nil {
			s.gates = make(map[string]chan struct{})
		}
		gate = make(chan struct{}, s.cfg.DeviceQueueDepth)
		s.gates[deviceID] = gate
	}
	s.mu.Unlock()

	select {
	case gate <- struct{}{}:
		return func() { <-gate }, true
	default:
		return nil, false
	}
}
