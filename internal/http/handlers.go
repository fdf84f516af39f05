package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// appMetrics counts application events for /metrics.
type appMetrics struct {
	uptime            time.Time
	entriesRecorded   atomic.Int64
	monthsAllocated   atomic.Int64
	idempotentReplays atomic.Int64
	feedClients       atomic.Int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{uptime: time.Now()}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if _, err := s.reports.Balances(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if s.hub != nil {
		select {
		case <-s.hub.Ready():
			checks["feed"] = map[string]any{"status": "ok", "subscribers": s.hub.Len()}
		default:
			checks["feed"] = "starting"
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		}
	} else {
		checks["feed"] = "not_configured"
	}

	// export runs on a timer, so a stopped exporter does not fail readiness
	switch {
	case s.exporter == nil:
		checks["report_export"] = "not_configured"
	case s.exporter.IsRunning():
		checks["report_export"] = "running"
	default:
		checks["report_export"] = "stopped"
	}

	checks["idempotency_cache"] = map[string]any{
		"entries": s.idempotency.Size(),
		"status":  "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	NewJSONResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	limitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	m := s.appMetrics

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Requests answered with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP http_response_time_avg_microseconds Mean response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_avg_microseconds gauge\n")
	fmt.Fprintf(w, "http_response_time_avg_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP ledger_entries_recorded_total Single entries recorded through the API\n")
	fmt.Fprintf(w, "# TYPE ledger_entries_recorded_total counter\n")
	fmt.Fprintf(w, "ledger_entries_recorded_total %d\n\n", m.entriesRecorded.Load())

	fmt.Fprintf(w, "# HELP subscription_months_allocated_total Subscription months written by allocations\n")
	fmt.Fprintf(w, "# TYPE subscription_months_allocated_total counter\n")
	fmt.Fprintf(w, "subscription_months_allocated_total %d\n\n", m.monthsAllocated.Load())

	fmt.Fprintf(w, "# HELP idempotent_replays_total Allocations answered from the idempotency cache\n")
	fmt.Fprintf(w, "# TYPE idempotent_replays_total counter\n")
	fmt.Fprintf(w, "idempotent_replays_total %d\n\n", m.idempotentReplays.Load())

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", limitMetrics.Hits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP invalid_forwarded_ip_total Forwarded client addresses that failed to parse\n")
	fmt.Fprintf(w, "# TYPE invalid_forwarded_ip_total counter\n")
	fmt.Fprintf(w, "invalid_forwarded_ip_total %d\n\n", securityMetrics.InvalidIPAttempts)

	fmt.Fprintf(w, "# HELP ledger_feed_clients Connected live feed clients\n")
	fmt.Fprintf(w, "# TYPE ledger_feed_clients gauge\n")
	fmt.Fprintf(w, "ledger_feed_clients %d\n\n", m.feedClients.Load())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(m.uptime).Seconds())
}
