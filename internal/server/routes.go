package server

import (
	"net/http"
	"strings"
)

const auditsPrefix = "/api/audits/"

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws/audits/", s.app.WSHandler.HandleAuditStream)

	// API routes - Audits
	mux.HandleFunc("/api/audits", s.handleAuditsRoute) // GET (list), POST (submit)
	mux.HandleFunc(auditsPrefix, s.handleAuditRoutes)  // /{id} and subpaths

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// Prometheus scrape endpoint
	mux.Handle("/metrics", s.app.Metrics.Handler())

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleAuditsRoute routes /api/audits requests (list and submit)
func (s *Server) handleAuditsRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r, s.app.AuditHandler.ListHandler, s.app.AuditHandler.SubmitHandler)
}

// handleAuditRoutes routes /api/audits/{id} and its subresources
func (s *Server) handleAuditRoutes(w http.ResponseWriter, r *http.Request) {
	suffix := strings.Trim(r.URL.Path[len(auditsPrefix):], "/")
	if suffix == "" {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}

	// /api/audits/{id}
	if !strings.Contains(suffix, "/") {
		RouteByMethod(w, r, MethodRouter{
			http.MethodGet:    s.app.AuditHandler.GetHandler,
			http.MethodDelete: s.app.AuditHandler.DeleteHandler,
		})
		return
	}

	h := s.app.AuditHandler
	handled := RouteByPathSuffix(w, r, auditsPrefix, []PathSuffixRouter{
		{Suffix: "/cancel", Handler: h.CancelHandler},
		{Suffix: "/view", Handler: h.ViewHandler},
		{Suffix: "/dashboard", Handler: h.DashboardHandler},
		{Suffix: "/facts", Handler: h.FactsHandler},
		{Suffix: "/report.md", Handler: h.ReportHandler},
		{Suffix: "/report.html", Handler: h.ReportHandler},
		{Suffix: "/report.pdf", Handler: h.ReportHandler},
	})
	if !handled {
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}
