package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bizaudit/internal/app"
	"github.com/ternarybob/bizaudit/internal/metrics"
)

func TestRouteOf(t *testing.T) {
	tests := []struct {
		path    string
		route   string
		auditID string
	}{
		{"/api/audits", "audits", ""},
		{"/api/audits/", "audits", ""},
		{"/api/audits/a1", "audit", "a1"},
		{"/api/audits/a1/view", "audit.view", "a1"},
		{"/api/audits/a1/report.pdf", "audit.report", "a1"},
		{"/api/audits/a1/unknown", "other", ""},
		{"/ws/audits/a1", "audit.stream", "a1"},
		{"/api/health", "api/health", ""},
		{"/metrics", "metrics", ""},
		{"/random/path", "other", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			route, id := routeOf(tt.path)
			assert.Equal(t, tt.route, route)
			assert.Equal(t, tt.auditID, id)
		})
	}
}

func TestMiddlewareRecoversAndRecords(t *testing.T) {
	m := metrics.New()
	s := &Server{app: &app.App{Logger: arbor.NewLogger(), Metrics: m}}

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	s.withConditionalMiddleware(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audits/a1/dashboard", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))
}

func TestStreamsBypassMiddleware(t *testing.T) {
	m := metrics.New()
	s := &Server{app: &app.App{Logger: arbor.NewLogger(), Metrics: m}}

	rec := httptest.NewRecorder()
	s.withConditionalMiddleware(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/audits/a1", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, 0, testutil.CollectAndCount(m.RequestDuration))
}
