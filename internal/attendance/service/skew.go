package service

import (
	"sort"
	"sync"
	"time"
)

// skewEstimator tracks a device's clock offset from server time using a
// fixed-size ring of recent deltas and a trimmed mean (min and max samples
// dropped). Memory per device is O(window); a single outlier cannot move
// the correction, and the correction itself is clamped to ±max.
type skewEstimator struct {
	mu      sync.Mutex
	samples []time.Duration
	idx     int
	n       int
	max     time.Duration
}

func newSkewEstimator(window int, max time.Duration) *skewEstimator {
	if window < 4 {
		window = 4
	}
	return &skewEstimator{
		samples: make([]time.Duration, window),
		max:     max,
	}
}

func (e *skewEstimator) Observe(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.samples[e.idx] = d
	e.idx = (e.idx + 1) % len(e.samples)
	if e.n < len(e.samples) {
		e.n++
	}
}

// Correction returns the trimmed mean of the recorded deltas, clamped to
// ±max. Returns zero until at least four samples exist; an estimate from
// one or two punches is noise.
func (e *skewEstimator) Correction() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.n < 4 {
		return 0
	}
	sorted := make([]time.Duration, e.n)
	copy(sorted, e.samples[:e.n])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	// Drop min and max, average the rest.
	var sum time.Duration
	for _, d := range sorted[1 : len(sorted)-1] {
		sum += d
	}
	mean := sum / time.Duration(len(sorted)-2)

	if e.max > 0 {
		if mean > e.max {
			mean = e.max
		}
		if mean < -e.max {
			mean = -e.max
		}
	}
	return mean
}
