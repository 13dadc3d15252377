package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordAnalysis("trends", "completed", 20*time.Millisecond)
	m.RecordAnalysis("trends", "reused", 0)
	m.RecordAlertCreated("anomaly", "high")
	m.RecordAlertSkipped("anomaly", 2)
	m.RecordExternalCall("lookup_interaction", "error", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.analysesTotal.WithLabelValues("trends", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analysesTotal.WithLabelValues("trends", "reused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertsCreated.WithLabelValues("anomaly", "high")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.alertsSkipped.WithLabelValues("anomaly")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.externalCalls.WithLabelValues("lookup_interaction", "error")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAnalysis("risk", "completed", time.Millisecond)
		m.RecordAlertCreated("refill", "low")
		m.RecordAlertSkipped("refill", 1)
		m.RecordExternalCall("generate", "ok", time.Millisecond)
		m.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
	})
}

func TestHandlerFor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/health",status="200"} 1`)
}
