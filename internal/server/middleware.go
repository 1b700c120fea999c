package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/bizaudit/internal/handlers"
)

// auditSubroutes maps /api/audits/{id}/{suffix} to a route label
var auditSubroutes = map[string]string{
	"cancel":      "audit.cancel",
	"view":        "audit.view",
	"dashboard":   "audit.dashboard",
	"facts":       "audit.facts",
	"report.md":   "audit.report",
	"report.html": "audit.report",
	"report.pdf":  "audit.report",
}

// routeOf returns a bounded route label for the request path and the audit
// id it addresses, if any
func routeOf(path string) (route, auditID string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "api" && parts[1] == "audits":
		return "audits", ""
	case len(parts) == 3 && parts[0] == "api" && parts[1] == "audits":
		return "audit", parts[2]
	case len(parts) == 4 && parts[0] == "api" && parts[1] == "audits":
		if route, ok := auditSubroutes[parts[3]]; ok {
			return route, parts[2]
		}
	case len(parts) == 3 && parts[0] == "ws" && parts[1] == "audits":
		return "audit.stream", parts[2]
	case path == "/api/health", path == "/api/version", path == "/metrics":
		return strings.TrimPrefix(path, "/"), ""
	}
	return "other", ""
}

// setCORSHeaders allows browser clients on any origin to call the API
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// withMiddleware wraps the router; the last wrapper runs first
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	handler = s.recoveryMiddleware(handler)
	handler = s.corsMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	return handler
}

// withConditionalMiddleware skips the chain for audit streams. The upgrade
// needs the raw connection and the stream handler logs its own lifecycle.
func (s *Server) withConditionalMiddleware(handler http.Handler) http.Handler {
	wrapped := s.withMiddleware(handler)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/ws/") {
			setCORSHeaders(w)
			handler.ServeHTTP(w, r)
			return
		}
		wrapped.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request with its route and audit id and
// records its duration
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route, auditID := routeOf(r.URL.Path)

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		s.app.Metrics.ObserveRequest(route, r.Method, rw.status, duration)

		event := s.app.Logger.Debug()
		if rw.status >= http.StatusInternalServerError {
			event = s.app.Logger.Warn()
		}
		event = event.
			Str("method", r.Method).
			Str("route", route).
			Int("status", rw.status).
			Dur("duration", duration)
		if auditID != "" {
			event = event.Str("audit_id", auditID)
		}
		if route == "other" {
			event = event.Str("path", r.URL.Path)
		}
		event.Msg("Audit API request served")
	})
}

// corsMiddleware sets CORS headers and answers preflight requests
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware turns a handler panic into a JSON 500
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				route, auditID := routeOf(r.URL.Path)
				s.app.Logger.Error().
					Str("panic", fmt.Sprintf("%v", rec)).
					Str("route", route).
					Str("audit_id", auditID).
					Msg("Audit API handler panicked")

				handlers.WriteError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets long-lived responses such as /view reach the client promptly
func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
