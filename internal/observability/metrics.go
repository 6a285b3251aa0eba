package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "co2_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL runs.
type Metrics struct {
	FetchRequests     *prometheus.CounterVec   // labels: source={co2,weather}, outcome={success,retry,skipped,error}
	FetchDuration     *prometheus.HistogramVec // labels: source
	RecordsNormalized prometheus.Counter
	WeatherResults    prometheus.Counter

	UploadBytes  prometheus.Counter
	UploadErrors prometheus.Counter

	// Warehouse step metrics.
	StepDuration *prometheus.HistogramVec // labels: step, outcome={success,error,skipped}
	StagingRows  prometheus.Gauge

	// Merge schedule metrics.
	MergeRuns    *prometheus.CounterVec // labels: outcome={success,error}
	MergeSkipped prometheus.Counter
	MergeRunning prometheus.Gauge
}

// NewMetrics creates and registers all ETL metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchDuration,
		m.RecordsNormalized,
		m.WeatherResults,
		m.UploadBytes,
		m.UploadErrors,
		m.StepDuration,
		m.StagingRows,
		m.MergeRuns,
		m.MergeSkipped,
		m.MergeRunning,
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
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Upstream fetch attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		RecordsNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_normalized_total",
			Help:      "Total CO2 measurements parsed from the feed.",
		}),
		WeatherResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_results_total",
			Help:      "Total weather observations collected.",
		}),
		UploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes written to the object store.",
		}),
		UploadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_errors_total",
			Help:      "Failed object store writes.",
		}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "warehouse_step_duration_seconds",
			Help:      "Duration of each warehouse step.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"step", "outcome"}),
		StagingRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "staging_rows",
			Help:      "Rows present in the staging table after the last load.",
		}),
		MergeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_runs_total",
			Help:      "Scheduled merge executions by outcome.",
		}, []string{"outcome"}),
		MergeSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_skipped_total",
			Help:      "Merge triggers skipped because a run was already active.",
		}),
		MergeRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "merge_running",
			Help:      "1 while a merge is executing, 0 otherwise.",
		}),
	}
}
