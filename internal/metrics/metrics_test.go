package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveProviderCall("gemini", "ok", time.Second)
		m.IncGenerationAttempt("success")
		m.JobStarted()
		m.JobFinished("completed")
		m.JobReaped()
		m.ObserveRequest("audit", http.MethodGet, http.StatusOK, time.Millisecond)
	})
	assert.Nil(t, m.Registry())
}

func TestJobCounters(t *testing.T) {
	m := New()
	m.JobStarted()
	m.JobStarted()
	m.JobFinished("completed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveJobs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobOutcomes.WithLabelValues("completed")))

	m.JobReaped()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveJobs), "reaped jobs were never active here")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobOutcomes.WithLabelValues("stale")))
}

func TestInstancesDoNotShareRegistries(t *testing.T) {
	a := New()
	b := New()
	a.IncGenerationAttempt("success")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.GenerationAttempts.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.GenerationAttempts.WithLabelValues("success")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.IncGenerationAttempt("schema_error")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `bizaudit_generation_attempts_total{outcome="schema_error"} 1`))
}

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("audit.report", http.MethodGet, http.StatusConflict, 20*time.Millisecond)
	m.ObserveRequest("audit.report", http.MethodGet, http.StatusConflict, 30*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `bizaudit_http_request_duration_seconds_count{code="409",method="GET",route="audit.report"} 2`)
}
