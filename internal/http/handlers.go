package http

import (
	"context"
	"net/http"
	"time"

	"ledger/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports 503 until storage answers a ping
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, httpStatus := "ready", http.StatusOK
	checks := map[string]any{}

	if err := s.ledger.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed",
			log.FieldComponent, log.ComponentStorage,
			log.FieldError, err)
		checks["storage"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	if s.rateLimiter != nil {
		checks["rate_limiter"] = map[string]any{
			"active_clients": s.rateLimiter.ActiveClients(),
			"status":         "ok",
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics exposes request, rate-limit and security counters
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.traceMiddleware.GetMetrics()
	metrics := map[string]any{
		"http_requests_total":       traceMetrics.TotalRequests,
		"http_avg_response_time_us": traceMetrics.AverageResponseTime,
		"suspicious_requests_total": s.detector.GetMetrics().SuspiciousRequests,
		"uptime_seconds":            int64(time.Since(s.started).Seconds()),
		"rate_limit_hits_total":     int64(0),
		"active_rate_limit_clients": int64(0),
	}
	if s.rateLimiter != nil {
		rl := s.rateLimiter.GetMetrics()
		metrics["rate_limit_hits_total"] = rl.TotalHits
		metrics["active_rate_limit_clients"] = rl.ClientCount
	}

	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, retry later"})
}
