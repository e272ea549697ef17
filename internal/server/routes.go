package server

import (
	"context"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/appid"
	"github.com/hunterino/MiniKeybaord/internal/observability"
	"github.com/hunterino/MiniKeybaord/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	api := s.deps.API
	if api != nil {
		s.router.Get("/", api.Root)
		s.router.Get("/status", api.Status)
	}

	if hm := s.deps.Health; hm != nil {
		s.router.Get("/health", hm.HealthHandler)
		s.router.Get("/health/live", hm.LivenessHandler)
		s.router.Get("/health/ready", hm.ReadinessHandler)
		s.router.Get("/health/startup", hm.StartupHandler)
	}

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)

	// Commands: auth, then rate limit.
	if api != nil {
		s.router.Group(func(r chi.Router) {
			if s.deps.Auth != nil {
				r.Use(s.deps.Auth.Middleware)
			}
			if s.deps.Limiter != nil {
				r.Use(RateLimit(s.deps.Limiter))
			}
			r.Post("/ctrlaltdel", api.CtrlAltDel)
			r.Post("/sleep", api.Sleep)
			r.Post("/led/toggle", api.ToggleLED)
			r.Post("/type", api.Type)
		})
	}

	if s.deps.Agent != nil {
		s.router.Group(func(r chi.Router) {
			if s.deps.Auth != nil {
				r.Use(s.deps.Auth.Middleware)
			}
			r.Get("/keyboard/agent", s.deps.Agent.ServeHTTP)
		})
	}

	s.registerAdminEndpoint()
}

// registerAdminEndpoint exposes POST /admin/signal when
// {ENV_PREFIX}ADMIN_TOKEN is set.
func (s *Server) registerAdminEndpoint() {
	envPrefix := appid.EnvPrefix(context.Background())

	adminToken := os.Getenv(envPrefix + "ADMIN_TOKEN")
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + envPrefix + "ADMIN_TOKEN set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,
		RateBurst: 5,
		Manager:   nil,
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
	}
}
