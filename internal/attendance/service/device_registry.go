package service

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/autonex/punchd/internal/attendance/store"
	"github.com/autonex/punchd/internal/attendance/types"
)

// RegistryConfig holds the trust-escalation and skew-estimation knobs.
type RegistryConfig struct {
	// AnomalyWindow / AnomalyThreshold: this many anomalies inside the
	// window escalates trust one level (trusted→probation→quarantined).
	AnomalyWindow    time.Duration
	AnomalyThreshold int

	// SkewWindow is the ring size for the per-device offset estimator.
	SkewWindow int

	// MaxSkewCorrection bounds the learned correction so one bad sample
	// cannot swing a device's clock by hours.
	MaxSkewCorrection time.Duration
}

// DeviceRegistry resolves terminals and tracks their reliability. Anomaly
// writes are serialized per device by the underlying store; skew estimators
// live in memory and are rebuilt from live traffic after a restart.
type DeviceRegistry struct {
	store  store.DeviceStore
	cfg    RegistryConfig
	logger *log.Logger

	mu   sync.Mutex
	skew map[string]*skewEstimator
}

func NewDeviceRegistry(st store.DeviceStore, cfg RegistryConfig, logger *log.Logger) *DeviceRegistry {
	if cfg.AnomalyThreshold <= 0 {
		cfg.AnomalyThreshold = 5
	}
	if cfg.AnomalyWindow <= 0 {
		cfg.AnomalyWindow = time.Hour
	}
	if cfg.SkewWindow <= 0 {
		cfg.SkewWindow = 16
	}
	return &DeviceRegistry{
		store:  st,
		cfg:    cfg,
		logger: logger,
		skew:   make(map[string]*skewEstimator),
	}
}

// Resolve returns the device row, creating it on first contact. A device the
// registry has never seen is not fatal; it comes back uncommissioned, on
// probation, and its punches are tagged unverified.
func (r *DeviceRegistry) Resolve(ctx context.Context, deviceID string) (types.Device, error) {
	deviceID = strings.TrimSpace(deviceID)
	now := time.Now().UTC()

	if err := r.store.EnsureSeen(ctx, deviceID, now); err != nil {
		return types.Device{}, err
	}
	d, ok, err := r.store.Get(ctx, deviceID)
	if err != nil {
		return types.Device{}, err
	}
	if !ok {
		// EnsureSeen should have created it; fall back to a bare row.
		d = types.Device{DeviceID: deviceID, Trust: types.TrustProbation, FirstSeen: now}
	}
	return d, nil
}

// RecordAnomaly logs one misbehaviour and escalates trust when the rolling
// window crosses the threshold. Escalation is one level per call; recovery
// is only ever administrative.
func (r *DeviceRegistry) RecordAnomaly(ctx context.Context, deviceID string, kind store.AnomalyKind) error {
	now := time.Now().UTC()
	if err := r.store.RecordAnomaly(ctx, deviceID, kind, now); err != nil {
		return err
	}

	n, err := r.store.CountAnomaliesSince(ctx, deviceID, now.Add(-r.cfg.AnomalyWindow))
	if err != nil {
		return err
	}
	if n < r.cfg.AnomalyThreshold {
		return nil
	}

	d, ok, err := r.store.Get(ctx, deviceID)
	if err != nil || !ok {
		return err
	}
	if d.Trust == types.TrustQuarantined {
		return nil
	}
	next := d.Trust.Escalate()
	if err := r.store.SetTrust(ctx, deviceID, next, now); err != nil {
		return err
	}
	r.logger.Printf("device %s trust %s -> %s (%d anomalies in %s, last: %s)",
		deviceID, d.Trust, next, n, r.cfg.AnomalyWindow, kind)
	return nil
}

// ObserveSkew feeds one raw offset sample (server ingestion time minus the
// device's declared-offset-adjusted timestamp) into the device's estimator.
// Callers must not pass the post-correction residual.
func (r *DeviceRegistry) ObserveSkew(deviceID string, delta time.Duration) {
	r.estimator(deviceID).Observe(delta)
}

// SkewCorrection returns the current learned clock correction for a device.
// Zero until enough samples have accumulated.
func (r *DeviceRegistry) SkewCorrection(deviceID string) time.Duration {
	return r.estimator(deviceID).Correction()
}

func (r *DeviceRegistry) estimator(deviceID string) *skewEstimator {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.skew[deviceID]
	if !ok {
		e = newSkewEstimator(r.cfg.SkewWindow, r.cfg.MaxSkewCorrection)
		r.skew[deviceID] = e
	}
	return e
}
