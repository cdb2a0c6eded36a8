package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// weather acquisition pipeline.
type Metrics struct {
	// Fetch gateway metrics.
	FetchRequests *prometheus.CounterVec // labels: outcome={success,error,timeout}
	FetchCache    *prometheus.CounterVec // labels: result={hit,miss}
	FetchRetries  prometheus.Counter
	FetchDuration prometheus.Histogram

	// Location resolution metrics.
	ResolveTier     *prometheus.CounterVec // labels: tier, outcome={resolved,continue,abort}
	GeocodeRequests *prometheus.CounterVec // labels: method={forward,reverse}, outcome={success,error,empty}

	// Store metrics.
	SnapshotsPublished prometheus.Counter
	SnapshotsDiscarded prometheus.Counter
	RefreshTotal       *prometheus.CounterVec // labels: trigger={query,device,manual,stale}
	StoreReady         prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchCache,
		m.FetchRetries,
		m.FetchDuration,
		m.ResolveTier,
		m.GeocodeRequests,
		m.SnapshotsPublished,
		m.SnapshotsDiscarded,
		m.RefreshTotal,
		m.StoreReady,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_service",
			Name:      "fetch_requests_total",
			Help:      "Upstream HTTP requests by outcome.",
		}, []string{"outcome"}),
		FetchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_service",
			Name:      "fetch_cache_total",
			Help:      "Fetch gateway cache lookups by result.",
		}, []string{"result"}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_service",
			Name:      "fetch_retries_total",
			Help:      "Retries of transient upstream failures.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_service",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ResolveTier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_service",
			Name:      "resolve_tier_total",
			Help:      "Location resolution attempts by tier and outcome.",
		}, []string{"tier", "outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_service",
			Name:      "geocode_requests_total",
			Help:      "Geocoding requests by method and outcome.",
		}, []string{"method", "outcome"}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_service",
			Name:      "snapshots_published_total",
			Help:      "Successfully composed and published weather snapshots.",
		}),
		SnapshotsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_service",
			Name:      "snapshots_discarded_total",
			Help:      "Snapshots discarded because a newer request superseded them.",
		}),
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_service",
			Name:      "refresh_total",
			Help:      "Resolution attempts by trigger.",
		}, []string{"trigger"}),
		StoreReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_service",
			Name:      "store_ready",
			Help:      "1 when the store has published at least one snapshot.",
		}),
	}
}
