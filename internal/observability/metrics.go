package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// geocoding and synchronization core.
type Metrics struct {
	// Geocoding metrics.
	GeocodeRequests  *prometheus.CounterVec // labels: strategy, outcome={success,empty,error,throttled}
	GeocodeCache     *prometheus.CounterVec // labels: result={hit,miss}
	ResolveDuration  prometheus.Histogram
	ResolveCoalesced prometheus.Counter

	// Store and sync metrics.
	MirrorRecords  prometheus.Gauge
	RemoteErrors   prometheus.Counter
	SyncState      prometheus.Gauge       // 0=booting, 1=online, 2=offline
	ChangesApplied *prometheus.CounterVec // labels: type={added,modified,removed}
	PullsDiscarded prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.GeocodeRequests,
		m.GeocodeCache,
		m.ResolveDuration,
		m.ResolveCoalesced,
		m.MirrorRecords,
		m.RemoteErrors,
		m.SyncState,
		m.ChangesApplied,
		m.PullsDiscarded,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "provider_atlas",
			Name:      "geocode_requests_total",
			Help:      "Geocoding network requests by transport strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "provider_atlas",
			Name:      "geocode_cache_total",
			Help:      "Geocode cache lookups by result.",
		}, []string{"result"}),
		ResolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "provider_atlas",
			Name:      "resolve_duration_seconds",
			Help:      "End-to-end duration of an uncached address resolution.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ResolveCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "provider_atlas",
			Name:      "resolve_coalesced_total",
			Help:      "Concurrent resolutions that shared an in-flight lookup.",
		}),
		MirrorRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "provider_atlas",
			Name:      "mirror_records",
			Help:      "Provider records currently held in the local mirror.",
		}),
		RemoteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "provider_atlas",
			Name:      "remote_errors_total",
			Help:      "Failed remote store operations (local mirror unaffected).",
		}),
		SyncState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "provider_atlas",
			Name:      "sync_state",
			Help:      "Sync controller state: 0 booting, 1 online, 2 offline.",
		}),
		ChangesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "provider_atlas",
			Name:      "changes_applied_total",
			Help:      "Remote change-feed events reconciled into the mirror.",
		}, []string{"type"}),
		PullsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "provider_atlas",
			Name:      "pulls_discarded_total",
			Help:      "Full pulls discarded because a newer pull superseded them.",
		}),
	}
}
