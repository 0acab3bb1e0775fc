package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the punchd collectors. Register against a dedicated
// registry in tests and prometheus.DefaultRegisterer in main.
type Metrics struct {
	AdmitOutcomes    *prometheus.CounterVec
	AdmitDuration    prometheus.Histogram
	PendingConflicts prometheus.Gauge
	Heartbeats       prometheus.Counter
	ArchivedEvents   prometheus.Counter
	ArchiveDropped   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AdmitOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "punchd_admit_outcomes_total",
			Help: "Punch admissions by definite outcome.",
		}, []string{"outcome"}),
		AdmitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "punchd_admit_duration_seconds",
			Help:    "Wall time of one admit call, queueing included.",
			Buckets: prometheus.DefBuckets,
		}),
		PendingConflicts: f.NewGauge(prometheus.GaugeOpts{
			Name: "punchd_pending_conflicts",
			Help: "Conflict entries awaiting adjudication.",
		}),
		Heartbeats: f.NewCounter(prometheus.CounterOpts{
			Name: "punchd_heartbeats_total",
			Help: "Device heartbeats received.",
		}),
		ArchivedEvents: f.NewCounter(prometheus.CounterOpts{
			Name: "punchd_archived_events_total",
			Help: "Ledger events mirrored to the central archive.",
		}),
		ArchiveDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "punchd_archive_dropped_total",
			Help: "Events dropped because the archive queue was full.",
		}),
	}
}
