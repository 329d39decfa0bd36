// Package monitoring records batch run metrics in a private Prometheus
// registry that can be dumped as a node-exporter textfile.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for SourceRuns.
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics holds the Prometheus collectors for scrape runs.
type Metrics struct {
	registry *prometheus.Registry

	SourceRuns     *prometheus.CounterVec
	SourceRows     *prometheus.GaugeVec
	SourceChanged  *prometheus.GaugeVec
	SourceDuration *prometheus.HistogramVec
	LastSuccess    *prometheus.GaugeVec
	ErrorsTotal    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SourceRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ratescrape_source_runs_total",
			Help: "Source extractions by outcome",
		}, []string{"source", "outcome"}),
		SourceRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ratescrape_source_rows",
			Help: "Rows in the last artifact written for a source",
		}, []string{"source"}),
		SourceChanged: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ratescrape_source_changed",
			Help: "1 when the last artifact hash differed from the previous manifest",
		}, []string{"source"}),
		SourceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ratescrape_source_duration_seconds",
			Help:    "Time spent extracting a source",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"source"}),
		LastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ratescrape_source_last_success_timestamp_seconds",
			Help: "Unix time of the last successful extraction",
		}, []string{"source"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ratescrape_errors_total",
			Help: "Extraction errors by error code",
		}, []string{"code"}),
	}
}

// ObserveSuccess records a written artifact.
func (m *Metrics) ObserveSuccess(source string, rows int, changed bool, elapsed time.Duration, at time.Time) {
	m.SourceRuns.WithLabelValues(source, OutcomeSuccess).Inc()
	m.SourceRows.WithLabelValues(source).Set(float64(rows))
	changedVal := 0.0
	if changed {
		changedVal = 1
	}
	m.SourceChanged.WithLabelValues(source).Set(changedVal)
	m.SourceDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	m.LastSuccess.WithLabelValues(source).Set(float64(at.Unix()))
}

func (m *Metrics) ObserveSkipped(source string) {
	m.SourceRuns.WithLabelValues(source, OutcomeSkipped).Inc()
}

// ObserveFailure records a failed extraction under its error code.
func (m *Metrics) ObserveFailure(source, code string, elapsed time.Duration) {
	if code == "" {
		code = "UNKNOWN"
	}
	m.SourceRuns.WithLabelValues(source, OutcomeFailed).Inc()
	m.SourceDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	m.ErrorsTotal.WithLabelValues(code).Inc()
}

// Gatherer exposes the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile dumps all metrics in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
