package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bizaudit/internal/interfaces"
	"github.com/ternarybob/bizaudit/internal/models"
	"github.com/ternarybob/bizaudit/internal/services/audits"
	"github.com/ternarybob/bizaudit/internal/services/generator"
	"github.com/ternarybob/bizaudit/internal/services/report"
)

const (
	defaultListLimit = 50
	maxRequestBytes  = 64 << 10
)

// AuditHandler serves the /api/audits endpoints
type AuditHandler struct {
	audits  AuditService
	watcher ViewWatcher
	facts   FactsSource
	logger  arbor.ILogger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audits AuditService, watcher ViewWatcher, facts FactsSource, logger arbor.ILogger) *AuditHandler {
	return &AuditHandler{
		audits:  audits,
		watcher: watcher,
		facts:   facts,
		logger:  logger,
	}
}

// SubmitHandler creates a record and starts its generation job
// POST /api/audits
func (h *AuditHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.AuditRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	record, err := h.audits.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidRequest) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Failed to submit audit")
		WriteError(w, http.StatusInternalServerError, "Failed to submit audit")
		return
	}

	WriteJSON(w, http.StatusAccepted, record)
}

// ListHandler returns records newest first
// GET /api/audits?limit=50
func (h *AuditHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := QueryInt(r, "limit", defaultListLimit)
	records, err := h.audits.List(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list audits")
		WriteError(w, http.StatusInternalServerError, "Failed to list audits")
		return
	}
	if records == nil {
		records = []*models.AuditRecord{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"audits": records,
		"count":  len(records),
	})
}

// GetHandler returns the current record snapshot
// GET /api/audits/{id}
func (h *AuditHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	record, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, record)
}

// DeleteHandler stops any running job and removes the record
// DELETE /api/audits/{id}
func (h *AuditHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	id := PathSegment(r, 2)
	if err := h.audits.Delete(r.Context(), id); err != nil {
		h.writeLookupError(w, id, err)
		return
	}
	WriteSuccess(w, "Audit deleted")
}

// CancelHandler stops the running generation job
// POST /api/audits/{id}/cancel
func (h *AuditHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	id := PathSegment(r, 2)
	if _, err := h.audits.Get(r.Context(), id); err != nil {
		h.writeLookupError(w, id, err)
		return
	}
	if err := h.audits.Cancel(id); err != nil {
		if errors.Is(err, audits.ErrJobNotRunning) {
			WriteError(w, http.StatusConflict, "Audit is not generating")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to cancel audit")
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":  "cancelling",
		"message": "Cancellation requested",
	})
}

// ViewHandler blocks until the viewer state settles or the viewer timeout
// passes and returns that state
// GET /api/audits/{id}/view
func (h *AuditHandler) ViewHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := PathSegment(r, 2)
	view, err := h.watcher.Await(r.Context(), id)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		h.writeLookupError(w, id, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// DashboardHandler returns the report reshaped for charts and tabs
// GET /api/audits/{id}/dashboard
func (h *AuditHandler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	dashboard, ok := h.loadDashboard(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, dashboard)
}

// ReportHandler renders the report as Markdown, HTML or PDF by path suffix
// GET /api/audits/{id}/report.md|report.html|report.pdf
func (h *AuditHandler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	format := PathSegment(r, 3)
	switch format {
	case "report.md", "report.html", "report.pdf":
	default:
		WriteError(w, http.StatusNotFound, "Unknown report format")
		return
	}

	dashboard, ok := h.loadDashboard(w, r)
	if !ok {
		return
	}

	var (
		body        []byte
		contentType string
		err         error
	)
	switch format {
	case "report.md":
		body, contentType = []byte(report.Markdown(dashboard)), "text/markdown; charset=utf-8"
	case "report.html":
		body, err = report.HTML(dashboard)
		contentType = "text/html; charset=utf-8"
	case "report.pdf":
		body, err = report.PDF(dashboard)
		contentType = "application/pdf"
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"audit-%s.pdf\"", dashboard.ID))
	}
	if err != nil {
		h.logger.Error().Err(err).Str("audit_id", dashboard.ID).Str("format", format).Msg("Failed to render report")
		WriteError(w, http.StatusInternalServerError, "Failed to render report")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// FactsHandler returns loader facts about the record's business
// GET /api/audits/{id}/facts
func (h *AuditHandler) FactsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	record, ok := h.loadRecord(w, r)
	if !ok {
		return
	}

	facts, err := h.facts.Generate(r.Context(), record.Request())
	if err != nil {
		if errors.Is(err, generator.ErrFactsUnavailable) {
			WriteError(w, http.StatusBadGateway, generator.ErrFactsUnavailable.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"facts": facts,
	})
}

func (h *AuditHandler) loadRecord(w http.ResponseWriter, r *http.Request) (*models.AuditRecord, bool) {
	id := PathSegment(r, 2)
	record, err := h.audits.Get(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, id, err)
		return nil, false
	}
	return record, true
}

func (h *AuditHandler) loadDashboard(w http.ResponseWriter, r *http.Request) (*report.Dashboard, bool) {
	record, ok := h.loadRecord(w, r)
	if !ok {
		return nil, false
	}
	if !record.HasReport() {
		WriteError(w, http.StatusConflict, "Audit report is not ready")
		return nil, false
	}

	dashboard, err := report.BuildDashboard(record)
	if err != nil {
		h.logger.Warn().Err(err).Str("audit_id", record.ID).Msg("Stored report could not be decoded")
		WriteError(w, http.StatusUnprocessableEntity, "Stored report could not be read")
		return nil, false
	}
	return dashboard, true
}

func (h *AuditHandler) writeLookupError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, interfaces.ErrAuditNotFound) {
		WriteError(w, http.StatusNotFound, "Audit not found")
		return
	}
	h.logger.Error().Err(err).Str("audit_id", id).Msg("Audit lookup failed")
	WriteError(w, http.StatusInternalServerError, "Failed to load audit")
}
