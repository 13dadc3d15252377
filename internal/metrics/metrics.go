// Package metrics exposes Prometheus collectors for the analytics service.
// All recording methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered against one registry
type Metrics struct {
	analysesTotal       *prometheus.CounterVec
	analysisDuration    *prometheus.HistogramVec
	alertsCreated       *prometheus.CounterVec
	alertsSkipped       *prometheus.CounterVec
	externalCalls       *prometheus.CounterVec
	externalDuration    *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		analysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "health_analyses_total",
				Help: "Total number of analysis requests by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		analysisDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "health_analysis_duration_seconds",
				Help:    "Analysis computation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"type"},
		),
		alertsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "health_alerts_created_total",
				Help: "Total number of alerts created by type and priority",
			},
			[]string{"type", "priority"},
		),
		alertsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "health_alerts_deduplicated_total",
				Help: "Total number of findings skipped because an active alert already exists",
			},
			[]string{"type"},
		),
		externalCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "knowledge_requests_total",
				Help: "Total number of external knowledge and generation calls",
			},
			[]string{"operation", "status"},
		),
		externalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "knowledge_request_duration_seconds",
				Help:    "External knowledge and generation call duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler for the default gatherer
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a metrics handler for a specific gatherer
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordAnalysis records one analysis request
func (m *Metrics) RecordAnalysis(analysisType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(analysisType, outcome).Inc()
	if duration > 0 {
		m.analysisDuration.WithLabelValues(analysisType).Observe(duration.Seconds())
	}
}

// RecordAlertCreated records a persisted alert
func (m *Metrics) RecordAlertCreated(alertType, priority string) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(alertType, priority).Inc()
}

// RecordAlertSkipped records a finding dropped by deduplication
func (m *Metrics) RecordAlertSkipped(alertType string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.alertsSkipped.WithLabelValues(alertType).Add(float64(n))
}

// RecordExternalCall records one external knowledge or generation attempt
func (m *Metrics) RecordExternalCall(operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.externalCalls.WithLabelValues(operation, status).Inc()
	m.externalDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPRequest records a served HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
