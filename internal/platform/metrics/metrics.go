package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the processing pipeline.
type Metrics struct {
	registry               *prometheus.Registry
	requestsTotal          prometheus.Counter
	extractionsTotal       prometheus.Counter
	fallbacksTotal         prometheus.Counter
	framesGeneratedTotal   prometheus.Counter
	sessionsCreatedTotal   prometheus.Counter
	analysesCompletedTotal prometheus.Counter
	activeSessions         prometheus.Gauge
	errorsTotal            prometheus.Counter
}

// New creates and registers Prometheus metrics for the pipeline.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_requests_total",
		Help: "Total number of HTTP requests received",
	})
	extractionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_extractions_total",
		Help: "Total number of completed frame extractions",
	})
	fallbacksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_extraction_fallbacks_total",
		Help: "Total number of extractions resolved via the synthetic fallback path",
	})
	framesGeneratedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_frames_generated_total",
		Help: "Total number of frame descriptors generated",
	})
	sessionsCreatedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_sessions_created_total",
		Help: "Total number of processing sessions created",
	})
	analysesCompletedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_analyses_completed_total",
		Help: "Total number of sessions that completed analysis",
	})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_active_sessions",
		Help: "Number of sessions that have not reached the complete stage",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_errors_total",
		Help: "Total number of section failures and HTTP error responses",
	})

	registry.MustRegister(
		requestsTotal,
		extractionsTotal,
		fallbacksTotal,
		framesGeneratedTotal,
		sessionsCreatedTotal,
		analysesCompletedTotal,
		activeSessions,
		errorsTotal,
	)

	return &Metrics{
		registry:               registry,
		requestsTotal:          requestsTotal,
		extractionsTotal:       extractionsTotal,
		fallbacksTotal:         fallbacksTotal,
		framesGeneratedTotal:   framesGeneratedTotal,
		sessionsCreatedTotal:   sessionsCreatedTotal,
		analysesCompletedTotal: analysesCompletedTotal,
		activeSessions:         activeSessions,
		errorsTotal:            errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncExtractions increments the completed extraction counter.
func (m *Metrics) IncExtractions() {
	m.extractionsTotal.Inc()
}

// IncFallbacks increments the fallback resolution counter.
func (m *Metrics) IncFallbacks() {
	m.fallbacksTotal.Inc()
}

// AddFramesGenerated adds n to the generated frame counter.
func (m *Metrics) AddFramesGenerated(n int) {
	m.framesGeneratedTotal.Add(float64(n))
}

// IncSessionsCreated increments the session counter.
func (m *Metrics) IncSessionsCreated() {
	m.sessionsCreatedTotal.Inc()
}

// IncAnalysesCompleted increments the completed analysis counter.
func (m *Metrics) IncAnalysesCompleted() {
	m.analysesCompletedTotal.Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values
// (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
