package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/auth"
	"github.com/hunterino/MiniKeybaord/internal/config"
	errwrap "github.com/hunterino/MiniKeybaord/internal/errors"
	"github.com/hunterino/MiniKeybaord/internal/indicator"
	"github.com/hunterino/MiniKeybaord/internal/keyboard"
	"github.com/hunterino/MiniKeybaord/internal/linkmon"
	"github.com/hunterino/MiniKeybaord/internal/loop"
	"github.com/hunterino/MiniKeybaord/internal/metrics"
	"github.com/hunterino/MiniKeybaord/internal/observability"
	"github.com/hunterino/MiniKeybaord/internal/ratelimit"
	"github.com/hunterino/MiniKeybaord/internal/server"
	"github.com/hunterino/MiniKeybaord/internal/server/handlers"
	"github.com/hunterino/MiniKeybaord/internal/timeutil"
)

// gaugeInterval spaces the periodic gauge updates.
const gaugeInterval timeutil.Duration = 1000

// service is the assembled keyboard server.
type service struct {
	clock     timeutil.Clock
	channel   keyboard.Channel
	agent     *keyboard.WebSocketChannel
	keyboard  *keyboard.Manager
	indicator *indicator.Indicator
	link      *linkmon.Monitor
	limiter   *ratelimit.Limiter
	auth      *auth.Authenticator
	loop      *loop.Loop
	health    *handlers.HealthManager
	server    *server.Server
	startedAt time.Time
}

// newService wires every component from cfg. Nothing runs until the
// loop and server are started.
func newService(cfg *config.Config, clk timeutil.Clock, identity *appidentity.Identity, log *logging.Logger) *service {
	s := &service{clock: clk, startedAt: time.Now()}

	switch cfg.Keyboard.Mode {
	case config.KeyboardModeStub:
		s.channel = keyboard.NewStubChannel()
	default:
		s.agent = keyboard.NewWebSocketChannel(cfg.Keyboard.WebSocket(), log)
		s.channel = s.agent
	}

	s.keyboard = keyboard.NewManager(clk, s.channel, cfg.Keyboard.Manager(), log)
	s.keyboard.Queue().SetObserver(metrics.QueueObserver{})

	s.indicator = indicator.New(clk, cfg.Indicator.FlashMillis(), log)
	s.link = linkmon.New(clk, "keyboard_agent", s.channel.Ready, cfg.Link.Monitor(), log)
	s.limiter = ratelimit.New(clk, cfg.RateLimit.Limiter(), log)
	s.auth = auth.New(cfg.Auth.APIKey, log)

	s.loop = loop.New(cfg.Loop.Tick, log)
	s.loop.Register("keyboard", s.keyboard)
	s.loop.Register("link", s.link)
	s.loop.Register("outage_flash", loop.FlashOnOutage(s.link, s.indicator))
	s.loop.Register("indicator", s.indicator)
	s.loop.Register("ratelimit_cleanup", loop.Every(clk, config.Millis(cfg.RateLimit.CleanupInterval), func() {
		s.limiter.Cleanup()
		metrics.SetRateLimitTrackedClients(s.limiter.TrackedClientCount())
	}))
	s.loop.Register("gauges", loop.Every(clk, gaugeInterval, func() {
		metrics.SetKeyboardAgentConnected(s.keyboard.IsConnected())
		metrics.SetServerUptime(int64(time.Since(s.startedAt).Seconds()))
	}))

	version := versionInfo.Version
	if version == "" {
		version = "dev"
	}
	s.health = handlers.NewHealthManager(version)
	s.health.RegisterChecker("app_identity", identityHealthChecker{identity: identity})
	s.health.RegisterChecker("keyboard_agent", handlers.CheckFunc(func(ctx context.Context) error {
		if s.keyboard.IsConnected() {
			return nil
		}
		return fmt.Errorf("%w: %s", handlers.ErrDegraded, s.link.StatusString())
	}))
	if cfg.Metrics.Enabled {
		s.health.RegisterChecker("telemetry", telemetryHealthChecker{})
	}

	deps := server.Deps{
		API: &handlers.KeyboardAPI{
			Keyboard:         s.keyboard,
			Indicator:        s.indicator,
			Link:             s.link,
			Limiter:          s.limiter,
			StartedAt:        s.startedAt,
			MaxMessageLength: cfg.Keyboard.MaxMessageLength,
			Log:              log,
		},
		Health:  s.health,
		Auth:    s.auth,
		Limiter: s.limiter,
	}
	if s.agent != nil {
		deps.Agent = s.agent
	}
	s.server = server.New(server.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,

		TrustedProxies: cfg.Server.Proxies(),
	}, deps)

	return s
}

// close drops the agent connection, if any.
func (s *service) close() error {
	if s.agent == nil {
		return nil
	}
	return s.agent.Close()
}

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	identity *appidentity.Identity
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.identity == nil:
		return errwrap.NewConfigInvalidError("app identity not loaded")
	case i.identity.BinaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.identity.EnvPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.identity.ConfigName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}

func logStartup(log *logging.Logger, cfg *config.Config, s *service) {
	if log == nil {
		return
	}
	log.Info("Keyboard server configured",
		zap.String("keyboard_mode", cfg.Keyboard.Mode),
		zap.String("device", cfg.Keyboard.DeviceName),
		zap.Int("chunk_size", cfg.Keyboard.ChunkSize),
		zap.Duration("chunk_delay", cfg.Keyboard.ChunkDelay),
		zap.Duration("rate_window", cfg.RateLimit.Window),
		zap.Int("rate_max", cfg.RateLimit.MaxRequests),
		zap.Bool("auth_enabled", s.auth.Enabled()))
	if !s.auth.Enabled() {
		log.Warn("No API key configured; command endpoints will reject every request")
	}
}
