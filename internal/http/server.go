// Package http exposes the finance tracker as a JSON API under /api.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"fintrack/internal/auth"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/query"
	"fintrack/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Transactions *services.TransactionService
	Dashboard    *services.DashboardService
	Auth         *auth.Service
	Store        Pinger
	Logger       *log.Logger

	Location           *time.Location
	CORSOrigins        []string
	RateLimitPerMinute int
	RequestTimeout     time.Duration
}

type Server struct {
	http.Server

	tx      *services.TransactionService
	dash    *services.DashboardService
	auth    *auth.Service
	store   Pinger
	logger  *log.Logger
	loc     *time.Location
	builder query.Builder

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = log.Discard()
	}
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 7 * time.Second
	}

	s := &Server{
		tx:      d.Transactions,
		dash:    d.Dashboard,
		auth:    d.Auth,
		store:   d.Store,
		logger:  logger.WithComponent(log.ComponentHTTP),
		loc:     loc,
		builder: query.NewBuilder(loc),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: d.RateLimitPerMinute,
		}),
		detector: security.NewDetector(logger),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	handler := chain(s.routes(),
		log.Middleware(logger),
		s.tracer.Middleware,
		log.RequestIDMiddleware(func(r *http.Request) string { return trace.RequestID(r.Context()) }),
		s.detector.Middleware,
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
		security.CORS(d.CORSOrigins),
		s.limiter.Middleware(s.detector.ExtractClientIP, s.rateLimited),
		withTimeout(timeout),
	)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	restricted := api.NewRoute().Subrouter()
	restricted.Use(s.requireAuth)
	restricted.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)
	restricted.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	restricted.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	restricted.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	// Must precede /transactions/{id}.
	restricted.HandleFunc("/transactions/meta/categories", s.handleCategories).Methods(http.MethodGet)
	restricted.HandleFunc("/transactions/{id}", s.handleGetTransaction).Methods(http.MethodGet)
	restricted.HandleFunc("/transactions/{id}", s.handleUpdateTransaction).Methods(http.MethodPut)
	restricted.HandleFunc("/transactions/{id}", s.handleDeleteTransaction).Methods(http.MethodDelete)

	return r
}

// chain applies middleware so that the first one listed runs first.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// withTimeout bounds the storage work a single request may do.
func withTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Shutdown stops background goroutines and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)

		m := s.tracer.GetMetrics()
		s.logger.InfoContext(ctx, "HTTP server stopped",
			"total_requests", m.TotalRequests,
			"average_latency_ms", m.AverageLatency.Milliseconds(),
			"rate_limited", s.limiter.GetMetrics().Rejected,
			"suspicious_requests", s.detector.SuspiciousCount())
	})
	return err
}
