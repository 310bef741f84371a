package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sa1dev/regeester/internal/forms"
	"github.com/sa1dev/regeester/pkg/metrics"
	"github.com/sa1dev/regeester/pkg/passkey"
	"github.com/sa1dev/regeester/pkg/ratelimit"
	"github.com/sa1dev/regeester/pkg/requestid"
)

// Config contains the server dependencies and settings.
type Config struct {
	Passkeys *passkey.Service
	Forms    *forms.Service

	Host string
	Port int

	// SecureCookies marks session cookies Secure.
	SecureCookies bool

	// MetricsEnabled exposes /metrics.
	MetricsEnabled bool

	// Limiter rate-limits the unauthenticated endpoints when set.
	Limiter *ratelimit.Limiter

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the HTTP API server.
type Server struct {
	passkeys       *passkey.Service
	forms          *forms.Service
	logger         *slog.Logger
	secureCookies  bool
	metricsEnabled bool
	limiter        *ratelimit.Limiter
	server         *http.Server
}

// New creates a Server with its router configured.
func New(cfg Config) (*Server, error) {
	if cfg.Passkeys == nil {
		return nil, fmt.Errorf("passkey service is required")
	}
	if cfg.Forms == nil {
		return nil, fmt.Errorf("forms service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		passkeys:       cfg.Passkeys,
		forms:          cfg.Forms,
		logger:         logger,
		secureCookies:  cfg.SecureCookies,
		metricsEnabled: cfg.MetricsEnabled,
		limiter:        cfg.Limiter,
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 30 * time.Second
	}
	idleTimeout := cfg.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = 120 * time.Second
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.setupRouter(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(requestid.Middleware)
	r.Use(s.RecoveryMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)

	limit := func(r chi.Router) {
		if s.limiter != nil && s.limiter.IsEnabled() {
			r.Use(ratelimit.Middleware(s.limiter))
		}
	}

	r.Get("/healthz", s.Health)
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			limit(r)
			r.Post("/registration/options", s.RegistrationOptions)
			r.Post("/registration/verify", s.RegistrationVerify)
			r.Post("/authentication/options", s.AuthenticationOptions)
			r.Post("/authentication/verify", s.AuthenticationVerify)
			r.Post("/logout", s.Logout)

			r.Group(func(r chi.Router) {
				r.Use(s.SessionMiddleware())
				r.Get("/me", s.Me)
			})
		})

		// Public endpoints: no session required.
		r.Route("/public/forms/{formID}", func(r chi.Router) {
			limit(r)
			r.Get("/", s.PublicForm)
			r.Post("/submissions", s.SubmitForm)
		})

		// Owner endpoints.
		r.Group(func(r chi.Router) {
			r.Use(s.SessionMiddleware())

			r.Get("/dashboard", s.Dashboard)

			r.Route("/forms", func(r chi.Router) {
				r.Get("/", s.ListForms)
				r.Post("/", s.CreateForm)

				r.Route("/{formID}", func(r chi.Router) {
					r.Get("/", s.GetForm)
					r.Put("/", s.UpdateForm)
					r.Delete("/", s.DeleteForm)
					r.Post("/publish", s.PublishForm)
					r.Get("/responses", s.FormResponses)
					r.Get("/export", s.ExportResponses)
				})
			})
		})
	})

	return r
}

// Health handles GET /healthz
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok"}, http.StatusOK)
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start http server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
