package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
)

// Ledger is what the HTTP layer needs from the service.
type Ledger interface {
	CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	Summary(ctx context.Context) (core.Summary, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	Ping(ctx context.Context) error
}

// Options tunes the middleware stack.
type Options struct {
	Logger *log.Logger
	// RateLimitRPM caps mutating requests per client per minute; 0 disables limiting.
	RateLimitRPM int
	// TrustedProxies are CIDRs, added to the loopback and private defaults, whose
	// forwarding headers identify the client.
	TrustedProxies []string
}

type Server struct {
	http.Server
	ledger Ledger
	logger *log.Logger

	detector        *security.Detector
	traceMiddleware *trace.Middleware
	rateLimiter     *ratelimit.Limiter
	started         time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, ledger Ledger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		ledger:   ledger,
		logger:   logger.WithComponent(log.ComponentHTTP),
		detector: security.NewDetector(),
		started:  time.Now(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.traceMiddleware = trace.NewMiddleware(s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("GET /transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.HandleFunc("GET /categories", s.handleListCategories)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var handler http.Handler = jsonFallback(mux)
	if opts.RateLimitRPM > 0 {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM})
		handler = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited,
			http.MethodPost, http.MethodPut, http.MethodDelete)(handler)
	}
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = log.Middleware(s.logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Shutdown stops background work and gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// jsonFallback rewrites the mux's own 404 and 405 replies as JSON error bodies.
func jsonFallback(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, pattern := mux.Handler(r); pattern != "" {
			mux.ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(&fallbackWriter{ResponseWriter: w}, r)
	})
}

type fallbackWriter struct {
	http.ResponseWriter
	replaced bool
}

func (w *fallbackWriter) WriteHeader(code int) {
	if code != http.StatusNotFound && code != http.StatusMethodNotAllowed {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	w.replaced = true
	writeJSON(w.ResponseWriter, code, errorResponse{Error: statusMessage(code)})
}

func (w *fallbackWriter) Write(b []byte) (int, error) {
	if w.replaced {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}
