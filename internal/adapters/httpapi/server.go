package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/mikey/mail-risk-analyzer/internal/notifier"
	"go.uber.org/zap"
)

// Service is the analyzer surface exposed over HTTP
type Service interface {
	Analyze(ctx context.Context, limit int) ([]core.MessageReport, error)
	ModifySubject(ctx context.Context, id string, level string) (*core.SubjectChange, error)
	Health(ctx context.Context) *core.HealthReport
	Stats() core.Stats
}

// Subscriber runs one change notification loop
type Subscriber interface {
	Run(ctx context.Context, emit notifier.EmitFunc) error
}

// RateLimiter gates requests per client
type RateLimiter interface {
	Allow(client string) bool
	Remaining(client string) int
	ResetAt(client string) time.Time
	MaxRequests() int
}

// Observer receives request metrics
type Observer interface {
	ObserveRequest(route string, status int, elapsed time.Duration)
	ObserveRateLimited()
}

// Options configures the HTTP frontend
type Options struct {
	ListenAddress  string
	CORSOrigins    []string
	AnalyzeLimit   int
	RequestTimeout time.Duration
	MetricsHandler http.Handler
}

// Server is the HTTP and SSE frontend of the analyzer
type Server struct {
	service  Service
	notifier Subscriber
	limiter  RateLimiter
	audit    core.AuditLog
	observer Observer
	logger   *zap.Logger
	opts     Options
	server   *http.Server
}

// NewServer creates the HTTP frontend. limiter, audit and observer may be nil.
func NewServer(
	service Service,
	subscriber Subscriber,
	limiter RateLimiter,
	audit core.AuditLog,
	observer Observer,
	logger *zap.Logger,
	opts Options,
) *Server {
	if opts.AnalyzeLimit <= 0 {
		opts.AnalyzeLimit = 3
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 120 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{
		service:  service,
		notifier: subscriber,
		limiter:  limiter,
		audit:    audit,
		observer: observer,
		logger:   logger,
		opts:     opts,
	}
}

// Router builds the chi router with all routes and middleware
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(s.requestLogger)
	router.Use(middleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	if s.opts.MetricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", s.opts.MetricsHandler)
	}

	router.Route("/api", func(api chi.Router) {
		if s.limiter != nil {
			api.Use(s.rateLimit)
		}

		api.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))
			r.Get("/analyze", s.handleAnalyze)
			r.Post("/modify-subject", s.handleModifySubject)
			r.Get("/health", s.handleHealth)
			r.Get("/stats", s.handleStats)
		})

		// Streams stay open past the request timeout
		api.Get("/events", s.handleEvents)
	})

	return router
}

// Start starts listening in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.ListenAddress, err)
	}

	s.server = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("HTTP API started", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
