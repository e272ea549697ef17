package server

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/auth"
	apperrors "github.com/hunterino/MiniKeybaord/internal/errors"
	"github.com/hunterino/MiniKeybaord/internal/observability"
	"github.com/hunterino/MiniKeybaord/internal/ratelimit"
	"github.com/hunterino/MiniKeybaord/internal/server/handlers"
	servermw "github.com/hunterino/MiniKeybaord/internal/server/middleware"
)

// Config holds listener settings. Zero timeouts fall back to defaults.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// TrustedProxies may set the client address through forwarding
	// headers. Everyone else is keyed by socket address.
	TrustedProxies []netip.Prefix
}

// Deps are the components behind the routes. Agent may be nil when no
// agent transport is configured.
type Deps struct {
	API     *handlers.KeyboardAPI
	Health  *handlers.HealthManager
	Auth    *auth.Authenticator
	Limiter *ratelimit.Limiter
	Agent   http.Handler
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    Config
	deps   Deps
}

// New creates a new HTTP server instance
func New(cfg Config, deps Deps) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 120 * time.Second
	}

	r := chi.NewRouter()

	r.Use(servermw.TrustedRealIP(cfg.TrustedProxies))

	// RequestID → Metrics → Recovery
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router: r,
		cfg:    cfg,
		deps:   deps,
	}

	handlers.SetHTTPErrorResponder(HandleError)

	s.registerRoutes()

	return s
}

// Start listens and serves until Shutdown.
func (s *Server) Start() error {
	addr := s.Addr()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server",
			zap.String("host", s.cfg.Host),
			zap.Int("port", s.cfg.Port),
			zap.String("addr", addr))
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.cfg.Port
}
