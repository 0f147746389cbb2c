package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// heat-risk pipeline and its fetch collaborator.
type Metrics struct {
	PipelineRuns        *prometheus.CounterVec // labels: outcome={success,error}
	PipelineDuration    prometheus.Histogram
	ObservationsInRun   prometheus.Histogram
	BarangaysClassified prometheus.Gauge
	RiskLevelCount      *prometheus.GaugeVec // labels: level=1..k
	SchedulerRunning    prometheus.Gauge

	// Fetch metrics.
	FetchRequests     *prometheus.CounterVec   // labels: endpoint={temperatures,facilities_batch,facilities_single}, outcome={success,error}
	FetchDuration     *prometheus.HistogramVec // labels: endpoint
	FacilityFallbacks prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRuns,
		m.PipelineDuration,
		m.ObservationsInRun,
		m.BarangaysClassified,
		m.RiskLevelCount,
		m.SchedulerRunning,
		m.FetchRequests,
		m.FetchDuration,
		m.FacilityFallbacks,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "heat_risk",
			Name:      "pipeline_runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "heat_risk",
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of a complete feature-cluster-rank run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		ObservationsInRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "heat_risk",
			Name:      "observations_per_run",
			Help:      "Historical rows fed into each pipeline run.",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
		}),
		BarangaysClassified: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "heat_risk",
			Name:      "barangays_classified",
			Help:      "Barangays in the most recent snapshot.",
		}),
		RiskLevelCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "heat_risk",
			Name:      "risk_level_count",
			Help:      "Barangays per risk level in the most recent snapshot.",
		}, []string{"level"}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "heat_risk",
			Name:      "scheduler_running",
			Help:      "1 when the daily scheduler is active, 0 when shut down.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "heat_risk",
			Name:      "fetch_requests_total",
			Help:      "Backend fetch requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "heat_risk",
			Name:      "fetch_duration_seconds",
			Help:      "Backend request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60, 120},
		}, []string{"endpoint"}),
		FacilityFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "heat_risk",
			Name:      "facility_fallbacks_total",
			Help:      "Times the batch facility endpoint failed and per-barangay requests were used.",
		}),
	}
}
