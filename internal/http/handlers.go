package http

import (
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleReady reports whether the dashboard can serve pages. A failed last
// refresh degrades the status but keeps the instance ready, since stored
// rollups are still served.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	code := http.StatusOK
	checks := map[string]any{}

	if s.templates == nil {
		checks["templates"] = "not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.refresher == nil && s.publisher == nil:
		checks["refresh"] = "not_configured"
	case s.refresher != nil:
		if rep, ok := s.refresher.LastReport(); ok {
			checks["refresh"] = rep.Outcome.String()
			checks["last_refresh"] = rep.FinishedAt.UTC().Format(time.RFC3339)
			if !rep.Outcome.OK && code == http.StatusOK {
				status = "degraded"
			}
		} else {
			checks["refresh"] = "pending"
		}
	}
	if s.publisher != nil {
		checks["broker"] = "configured"
	}
	checks["rate_limited"] = s.limiter.Hits()
	checks["suspicious_requests"] = s.detector.SuspiciousRequests()

	writeJSON(w, r, code, map[string]any{"status": status, "checks": checks})
}
