package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pivot_coverage"

// Metrics holds the Prometheus counters, histograms, and gauges for the coverage service.
type Metrics struct {
	StudiesCreated prometheus.Counter
	VirtualPivots  prometheus.Counter

	// Simulation metrics.
	Simulations        *prometheus.CounterVec   // labels: role={main,repeater}, outcome={success,error}
	SimulationDuration *prometheus.HistogramVec // labels: role={main,repeater}
	PivotsClassified   *prometheus.CounterVec   // labels: result={covered,outside}

	// Elevation metrics.
	ElevationRequests    *prometheus.CounterVec // labels: outcome={success,error}
	ElevationCache       *prometheus.CounterVec // labels: result={hit,miss}
	ElevationAPIDuration prometheus.Histogram

	// Report publishing metrics.
	ReportsPublished        *prometheus.CounterVec // labels: outcome={success,error}
	ReportPublishingEnabled prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		StudiesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "studies_created_total",
			Help:      "Total KMZ uploads that produced a study.",
		}),
		VirtualPivots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "virtual_pivots_total",
			Help:      "Pivots synthesized from coverage circles.",
		}),
		Simulations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_total",
			Help:      "RF simulations by role and outcome.",
		}, []string{"role", "outcome"}),
		SimulationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "simulation_duration_seconds",
			Help:      "Duration of a simulation including raster download and classification.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90},
		}, []string{"role"}),
		PivotsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pivots_classified_total",
			Help:      "Pivot classifications by result.",
		}, []string{"result"}),
		ElevationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elevation_requests_total",
			Help:      "Elevation API requests by outcome.",
		}, []string{"outcome"}),
		ElevationCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elevation_cache_total",
			Help:      "Elevation cache lookups by result.",
		}, []string{"result"}),
		ElevationAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "elevation_api_duration_seconds",
			Help:      "Elevation API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ReportsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_published_total",
			Help:      "Coverage reports published to Kafka by outcome.",
		}, []string{"outcome"}),
		ReportPublishingEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_publishing_enabled",
			Help:      "1 when coverage reports are published to Kafka, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.StudiesCreated,
		m.VirtualPivots,
		m.Simulations,
		m.SimulationDuration,
		m.PivotsClassified,
		m.ElevationRequests,
		m.ElevationCache,
		m.ElevationAPIDuration,
		m.ReportsPublished,
		m.ReportPublishingEnabled,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		StudiesCreated:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "studies_created_total"}),
		VirtualPivots:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "virtual_pivots_total"}),
		Simulations:             prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "simulations_total"}, []string{"role", "outcome"}),
		SimulationDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "simulation_duration_seconds"}, []string{"role"}),
		PivotsClassified:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "pivots_classified_total"}, []string{"result"}),
		ElevationRequests:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "elevation_requests_total"}, []string{"outcome"}),
		ElevationCache:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "elevation_cache_total"}, []string{"result"}),
		ElevationAPIDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "elevation_api_duration_seconds"}),
		ReportsPublished:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "reports_published_total"}, []string{"outcome"}),
		ReportPublishingEnabled: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "report_publishing_enabled"}),
	}
}
