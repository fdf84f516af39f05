package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rwa/internal/cache"
	"rwa/internal/feed"
	"rwa/internal/log"
	"rwa/internal/middleware/ratelimit"
	"rwa/internal/middleware/security"
	"rwa/internal/middleware/trace"
	"rwa/internal/services"
)

// Options tune the HTTP surface.
type Options struct {
	RateLimitPerMinute int
	// IdempotencyTTL is how long a completed allocation is replayed for a
	// repeated Idempotency-Key.
	IdempotencyTTL time.Duration
	// TrustedProxies are extra CIDRs whose forwarded headers are believed.
	TrustedProxies []string
	// Exporter, when set, is reported by /readyz.
	Exporter BackgroundJob
}

// BackgroundJob is a loop started next to the server.
type BackgroundJob interface {
	IsRunning() bool
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		RateLimitPerMinute: 60,
		IdempotencyTTL:     24 * time.Hour,
	}
}

type Server struct {
	http.Server
	ledger  *services.LedgerService
	reports *services.ReportService
	hub     *feed.Hub
	logger  *log.Logger
	// nil when report export is disabled
	exporter BackgroundJob

	idempotency  *cache.LRUCache[idempotentResponse]
	cacheManager *cache.Manager

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	headers          *security.HeadersMiddleware
	upgrader         websocket.Upgrader

	appMetrics *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. hub may be nil, in which case /ws/ledger answers 503.
func NewServer(addr string, ledger *services.LedgerService, reports *services.ReportService, hub *feed.Hub, opts Options) *Server {
	defaults := DefaultOptions()
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = defaults.RateLimitPerMinute
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = defaults.IdempotencyTTL
	}

	logger := log.Default(log.ComponentHTTP)
	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ledger:           ledger,
		reports:          reports,
		hub:              hub,
		logger:           logger,
		exporter:         opts.Exporter,
		idempotency:      cache.NewLRUCache[idempotentResponse](1000, opts.IdempotencyTTL),
		cacheManager:     cache.NewManager(),
		rateLimiter:      newLimiter(opts.RateLimitPerMinute),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
		headers:          security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		appMetrics: newAppMetrics(),
	}

	s.cacheManager.Register("idempotency", s.idempotency)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	s.routes(mux)

	// innermost first; trace runs outermost so the request ID is set
	var h http.Handler = mux
	h = s.limitWrites(h)
	h = s.detectSuspicious(h)
	h = s.headers.Middleware(h)
	h = log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(h)
	h = log.Middleware(s.logger)(h)
	h = s.traceMiddleware.Middleware(h)
	s.Handler = h

	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("POST /api/subscriptions", s.handleAllocate)
	mux.HandleFunc("GET /api/subscriptions/status", s.handleSubscriptionStatus)

	mux.HandleFunc("GET /api/balances", s.handleBalances)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/reports/monthly", s.handleMonthlySummary)
	mux.HandleFunc("GET /api/reports/financial-year", s.handleFinancialYear)
	mux.HandleFunc("GET /api/export/transactions.csv", s.handleExportTransactions)

	mux.HandleFunc("GET /api/residents", s.handleListResidents)
	mux.HandleFunc("POST /api/residents", s.handleRegisterResident)
	mux.HandleFunc("GET /api/residents/{id}/transactions", s.handleResidentHistory)

	mux.HandleFunc("GET /ws/ledger", s.handleLedgerFeed)
}

// limitWrites applies the per-client rate limit. The limiter counts only
// methods that change the ledger.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	return s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request, retry time.Duration) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").
			Header("Retry-After", ratelimit.RetryAfter(retry)).
			Write(w)
	})(next)
}

// detectSuspicious logs requests that look like probes. They are still served.
func (s *Server) detectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := s.securityDetector.Inspect(r); reason != "" {
			log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				log.FieldPath, r.URL.Path,
				"reason", reason)
		}
		next.ServeHTTP(w, r)
	})
}

func newLimiter(perMinute int) *ratelimit.Limiter {
	cfg := ratelimit.DefaultConfig()
	cfg.RequestsPerMinute = perMinute
	return ratelimit.NewLimiter(cfg)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
