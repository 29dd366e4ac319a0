package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/terra-clan/bounty-board/internal/auth"
	"github.com/terra-clan/bounty-board/internal/bounty"
	"github.com/terra-clan/bounty-board/internal/config"
	"github.com/terra-clan/bounty-board/internal/events"
	"github.com/terra-clan/bounty-board/internal/metrics"
)

// Pinger reports storage readiness
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the optional parts of the server
type Options struct {
	// Verifier checks bearer tokens. Nil disables token identity.
	Verifier *auth.TokenVerifier
	// InsecureWalletHeader trusts X-Wallet-Address as the caller identity
	InsecureWalletHeader bool
	// SubmissionsPerMinute limits submission writes per client IP. Zero disables it.
	SubmissionsPerMinute int
	Burst                int
	Metrics              bool
}

// Server represents the HTTP API server
type Server struct {
	config   config.ServerConfig
	router   *chi.Mux
	bounties *bounty.Service
	hub      *events.Hub
	pinger   Pinger
	identity *IdentityMiddleware
	limiter  *IPRateLimiter
	metrics  bool
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	svc *bounty.Service,
	hub *events.Hub,
	pinger Pinger,
	opts Options,
) *Server {
	s := &Server{
		config:   cfg,
		bounties: svc,
		hub:      hub,
		pinger:   pinger,
		identity: NewIdentityMiddleware(opts.Verifier, opts.InsecureWalletHeader),
		metrics:  opts.Metrics,
	}
	if opts.SubmissionsPerMinute > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = NewIPRateLimiter(rate.Limit(float64(opts.SubmissionsPerMinute)/60), burst)
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", walletHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	if s.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.identity.Identify)

		// Websocket connections outlive the request timeout
		r.Get("/bounties/{id}/live", s.handleLiveWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/categories", s.handleListCategories)

			r.Route("/bounties", func(r chi.Router) {
				r.Get("/", s.handleListBounties)
				r.With(RequireWallet).Post("/", s.handleCreateBounty)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetBounty)
					r.With(RequireWallet).Delete("/", s.handleDeleteBounty)

					r.With(RequireWallet).Get("/submission", s.handleGetOwnSubmission)
					r.With(RequireWallet, s.rateLimit).Post("/submission", s.handleSubmitEntry)
					r.With(RequireWallet, s.rateLimit).Put("/submission", s.handleSubmitEntry)
					r.With(RequireWallet).Get("/submissions", s.handleListSubmissions)
					r.With(RequireWallet).Post("/winners", s.handleAnnounceWinners)
				})
			})

			r.With(RequireWallet).Get("/me", s.handleMe)

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireWallet)
				r.Get("/wallets", s.handleListAdminWallets)
				r.Get("/bounties/{id}/export.xlsx", s.handleExportBounty)
			})
		})
	})

	s.router = r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return RateLimitMiddleware(s.limiter)(next)
}

// loggingMiddleware logs HTTP requests using slog and records request latency
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			elapsed := time.Since(start)
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(ww.Status()), elapsed.Seconds())
		}()

		next.ServeHTTP(ww, r)
	})
}
