package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bizaudit/internal/interfaces"
	"github.com/ternarybob/bizaudit/internal/models"
	"github.com/ternarybob/bizaudit/internal/services/audits"
	"github.com/ternarybob/bizaudit/internal/services/generator"
	"github.com/ternarybob/bizaudit/internal/services/viewer"
)

// fakeAudits is an in-memory AuditService
type fakeAudits struct {
	mu        sync.Mutex
	records   map[string]*models.AuditRecord
	running   map[string]bool
	submitErr error
}

func newFakeAudits() *fakeAudits {
	return &fakeAudits{records: map[string]*models.AuditRecord{}, running: map[string]bool{}}
}

func (f *fakeAudits) put(r *models.AuditRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[r.ID] = r
}

func (f *fakeAudits) Submit(_ context.Context, req models.AuditRequest) (*models.AuditRecord, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	r := models.NewAuditRecord(fmt.Sprintf("audit_%d", len(f.records)+1), req, time.Now())
	f.put(r)
	return r, nil
}

func (f *fakeAudits) Get(_ context.Context, id string) (*models.AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, interfaces.ErrAuditNotFound
	}
	return r, nil
}

func (f *fakeAudits) List(_ context.Context, limit int) ([]*models.AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.AuditRecord{}
	for _, r := range f.records {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeAudits) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return interfaces.ErrAuditNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeAudits) Cancel(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running[id] {
		return audits.ErrJobNotRunning
	}
	delete(f.running, id)
	return nil
}

// fakeWatcher replays a fixed list of views
type fakeWatcher struct {
	views []viewer.View
	err   error
}

func (w *fakeWatcher) Watch(ctx context.Context, id string) (<-chan viewer.View, error) {
	if w.err != nil {
		return nil, w.err
	}
	out := make(chan viewer.View, len(w.views))
	for _, v := range w.views {
		out <- v
	}
	close(out)
	return out, nil
}

func (w *fakeWatcher) Await(ctx context.Context, id string) (viewer.View, error) {
	if w.err != nil {
		return viewer.View{}, w.err
	}
	for _, v := range w.views {
		if v.Settled() {
			return v, nil
		}
	}
	return viewer.View{}, nil
}

type fakeFacts struct {
	facts []string
	err   error
}

func (f *fakeFacts) Generate(context.Context, models.AuditRequest) ([]string, error) {
	return f.facts, f.err
}

func completedRecord(t *testing.T) *models.AuditRecord {
	t.Helper()
	data, err := os.ReadFile("../services/report/testdata/report.json")
	require.NoError(t, err)

	r := models.NewAuditRecord("audit_done", models.AuditRequest{
		BusinessName:     "harbour coffee",
		BusinessDomain:   "hospitality",
		BusinessLocation: "Hobart, TAS",
		Description:      "Specialty coffee roaster and cafe",
	}, time.Now())
	r.Progress = models.ProgressCompleted
	r.Report = json.RawMessage(data)
	return r
}

func newTestHandler(svc *fakeAudits, watcher *fakeWatcher, facts *fakeFacts) *AuditHandler {
	if watcher == nil {
		watcher = &fakeWatcher{}
	}
	if facts == nil {
		facts = &fakeFacts{}
	}
	return NewAuditHandler(svc, watcher, facts, arbor.NewLogger())
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSubmitHandler_Accepted(t *testing.T) {
	svc := newFakeAudits()
	h := newTestHandler(svc, nil, nil)

	body := `{"businessName":" Acme Bakery ","businessDomain":"food","businessLocation":"Austin, TX","description":"small bakery"}`
	req := httptest.NewRequest(http.MethodPost, "/api/audits", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.SubmitHandler(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "Acme Bakery", got["businessName"])
	assert.EqualValues(t, 0, got["progress"])
	assert.NotEmpty(t, got["id"])
}

func TestSubmitHandler_InvalidRequest(t *testing.T) {
	h := newTestHandler(newFakeAudits(), nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/audits", strings.NewReader(`{"businessName":"Acme"}`))
	rec := httptest.NewRecorder()
	h.SubmitHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "error", got["status"])
	assert.Contains(t, got["error"], "businessDomain is required")
}

func TestSubmitHandler_MalformedBody(t *testing.T) {
	h := newTestHandler(newFakeAudits(), nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/audits", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	h.SubmitHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitHandler_StorageFailure(t *testing.T) {
	svc := newFakeAudits()
	svc.submitErr = errors.New("disk full")
	h := newTestHandler(svc, nil, nil)

	body := `{"businessName":"a","businessDomain":"b","businessLocation":"c","description":"d"}`
	req := httptest.NewRequest(http.MethodPost, "/api/audits", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.SubmitHandler(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk full")
}

func TestSubmitHandler_WrongMethod(t *testing.T) {
	h := newTestHandler(newFakeAudits(), nil, nil)

	rec := httptest.NewRecorder()
	h.SubmitHandler(rec, httptest.NewRequest(http.MethodGet, "/api/audits", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListHandler(t *testing.T) {
	svc := newFakeAudits()
	svc.put(completedRecord(t))
	h := newTestHandler(svc, nil, nil)

	rec := httptest.NewRecorder()
	h.ListHandler(rec, httptest.NewRequest(http.MethodGet, "/api/audits?limit=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.EqualValues(t, 1, got["count"])
}

func TestGetHandler(t *testing.T) {
	svc := newFakeAudits()
	svc.put(completedRecord(t))
	h := newTestHandler(svc, nil, nil)

	rec := httptest.NewRecorder()
	h.GetHandler(rec, httptest.NewRequest(http.MethodGet, "/api/audits/audit_done", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audit_done", decodeBody(t, rec)["id"])

	rec = httptest.NewRecorder()
	h.GetHandler(rec, httptest.NewRequest(http.MethodGet, "/api/audits/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteHandler(t *testing.T) {
	svc := newFakeAudits()
	svc.put(completedRecord(t))
	h := newTestHandler(svc, nil, nil)

	rec := httptest.NewRecorder()
	h.DeleteHandler(rec, httptest.NewRequest(http.MethodDelete, "/api/audits/audit_done", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.DeleteHandler(rec, httptest.NewRequest(http.MethodDelete, "/api/audits/audit_done", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelHandler(t *testing.T) {
	svc := newFakeAudits()
	r := models.NewAuditRecord("audit_run", models.AuditRequest{}, time.Now())
	svc.put(r)
	svc.running["audit_run"] = true
	h := newTestHandler(svc, nil, nil)

	rec := httptest.NewRecorder()
	h.CancelHandler(rec, httptest.NewRequest(http.MethodPost, "/api/audits/audit_run/cancel", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	h.CancelHandler(rec, httptest.NewRequest(http.MethodPost, "/api/audits/audit_run/cancel", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.CancelHandler(rec, httptest.NewRequest(http.MethodPost, "/api/audits/nope/cancel", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestViewHandler(t *testing.T) {
	watcher := &fakeWatcher{views: []viewer.View{
		{State: viewer.StateAwaitingResult, Progress: 40},
		{State: viewer.StateFailed, Progress: models.ProgressFailed, Message: viewer.NoDataMessage},
	}}
	h := newTestHandler(newFakeAudits(), watcher, nil)

	rec := httptest.NewRecorder()
	h.ViewHandler(rec, httptest.NewRequest(http.MethodGet, "/api/audits/audit_1/view", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, string(viewer.StateFailed), got["state"])
	assert.Equal(t, viewer.NoDataMessage, got["message"])
}

func TestViewHandler_NotFound(t *testing.T) {
	h := newTestHandler(newFakeAudits(), &fakeWatcher{err: interfaces.ErrAuditNotFound}, nil)

	rec := httptest.NewRecorder()
	h.ViewHandler(rec, httptest.NewRequest(http.MethodGet, "/api/audits/missing/view", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboardHandler(t *testing.T) {
	svc := newFakeAudits()
	svc.put(completedRecord(t))
	generating := models.NewAuditRecord("audit_gen", models.AuditRequest{BusinessName: "x"}, time.Now())
	svc.put(generating)
	h := newTestHandler(svc, nil, nil)

	rec := httptest.NewRecorder()
	h.DashboardHandler(rec, httptest.NewRequest(http.MethodGet, "/api/audits/audit_done/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody(t, rec)
	assert.Equal(t, "Harbour coffee Report", got["title"])

	rec = httptest.NewRecorder()
	h.DashboardHandler(rec, httptest.NewRequest(http.MethodGet, "/api/audits/audit_gen/dashboard", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDashboardHandler_UnreadableReport(t *testing.T) {
	svc := newFakeAudits()
	r := completedRecord(t)
	r.Report = json.RawMessage(`{"businessProfile":[1,2,3]}`)
	svc.put(r)
	h := newTestHandler(svc, nil, nil)

	rec := httptest.NewRecorder()
	h.DashboardHandler(rec, httptest.NewRequest(http.MethodGet, "/api/audits/audit_done/dashboard", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestReportHandler_Formats(t *testing.T) {
	svc := newFakeAudits()
	svc.put(completedRecord(t))
	h := newTestHandler(svc, nil, nil)

	tests := []struct {
		path        string
		contentType string
		prefix      []byte
	}{
		{"/api/audits/audit_done/report.md", "text/markdown; charset=utf-8", []byte("# ")},
		{"/api/audits/audit_done/report.html", "text/html; charset=utf-8", []byte("<!DOCTYPE html>")},
		{"/api/audits/audit_done/report.pdf", "application/pdf", []byte("%PDF")},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ReportHandler(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), tt.prefix), "unexpected body prefix for %s", tt.path)
		})
	}

	rec := httptest.NewRecorder()
	h.ReportHandler(rec, httptest.NewRequest(http.MethodGet, "/api/audits/audit_done/report.docx", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFactsHandler(t *testing.T) {
	svc := newFakeAudits()
	svc.put(completedRecord(t))

	h := newTestHandler(svc, nil, &fakeFacts{facts: []string{"Founded in 2012", "Roasts on site"}})
	rec := httptest.NewRecorder()
	h.FactsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/audits/audit_done/facts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["facts"], 2)

	failing := &fakeFacts{err: fmt.Errorf("%w: %v", generator.ErrFactsUnavailable, errors.New("bad json"))}
	h = newTestHandler(svc, nil, failing)
	rec = httptest.NewRecorder()
	h.FactsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/audits/audit_done/facts", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "failed to generate loader information", decodeBody(t, rec)["error"])
}

func TestAPIHandler(t *testing.T) {
	h := NewAPIHandler(arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	rec = httptest.NewRecorder()
	h.VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "go_version")

	rec = httptest.NewRecorder()
	h.NotFoundHandler(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPathSegmentAndQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/audits/abc/view?limit=7&bad=-1", nil)
	assert.Equal(t, "abc", PathSegment(r, 2))
	assert.Equal(t, "view", PathSegment(r, 3))
	assert.Equal(t, "", PathSegment(r, 9))
	assert.Equal(t, 7, QueryInt(r, "limit", 50))
	assert.Equal(t, 50, QueryInt(r, "bad", 50))
	assert.Equal(t, 50, QueryInt(r, "missing", 50))
}
