// Package metrics exposes Prometheus counters for archive runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the archiver.
// All methods are safe for concurrent use by the per-position goroutines.
type Metrics struct {
	registry        *prometheus.Registry
	segmentsWritten *prometheus.CounterVec
	bytesWritten    *prometheus.CounterVec
	fetchRetries    *prometheus.CounterVec
	filesFinalized  *prometheus.CounterVec
	sinkWaits       *prometheus.CounterVec
	positionState   *prometheus.GaugeVec
}

// New creates and registers the archiver metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	segmentsWritten := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dvrarchive_segments_written_total",
		Help: "Total number of segments written to output files",
	}, []string{"position"})
	bytesWritten := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dvrarchive_bytes_written_total",
		Help: "Total number of segment bytes written to output files",
	}, []string{"position"})
	fetchRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dvrarchive_fetch_retries_total",
		Help: "Total number of failed segment fetches that were retried",
	}, []string{"position"})
	filesFinalized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dvrarchive_files_finalized_total",
		Help: "Total number of provisional files renamed to their permanent name",
	}, []string{"position"})
	sinkWaits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dvrarchive_sink_waits_total",
		Help: "Number of times fetching paused because the file writer was behind",
	}, []string{"position"})
	positionState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dvrarchive_position_state",
		Help: "1 for the state each position is currently in, 0 otherwise",
	}, []string{"position", "state"})

	registry.MustRegister(
		segmentsWritten,
		bytesWritten,
		fetchRetries,
		filesFinalized,
		sinkWaits,
		positionState,
	)

	return &Metrics{
		registry:        registry,
		segmentsWritten: segmentsWritten,
		bytesWritten:    bytesWritten,
		fetchRetries:    fetchRetries,
		filesFinalized:  filesFinalized,
		sinkWaits:       sinkWaits,
		positionState:   positionState,
	}
}

// AddSegmentWritten records one segment of n bytes written for position.
func (m *Metrics) AddSegmentWritten(position string, n int) {
	m.segmentsWritten.WithLabelValues(position).Inc()
	m.bytesWritten.WithLabelValues(position).Add(float64(n))
}

// IncFetchRetries increments the retry counter for position.
func (m *Metrics) IncFetchRetries(position string) {
	m.fetchRetries.WithLabelValues(position).Inc()
}

// IncFilesFinalized increments the finalized file counter for position.
func (m *Metrics) IncFilesFinalized(position string) {
	m.filesFinalized.WithLabelValues(position).Inc()
}

// IncSinkWaits increments the backpressure counter for position.
func (m *Metrics) IncSinkWaits(position string) {
	m.sinkWaits.WithLabelValues(position).Inc()
}

// SetState marks state as the current one for position, clearing prev.
func (m *Metrics) SetState(position, prev, state string) {
	if prev != "" {
		m.positionState.WithLabelValues(position, prev).Set(0)
	}
	m.positionState.WithLabelValues(position, state).Set(1)
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
