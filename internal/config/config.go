package config

import (
	"fmt"
	"math"
	"net/netip"
	"strings"
	"time"

	"github.com/hunterino/MiniKeybaord/internal/indicator"
	"github.com/hunterino/MiniKeybaord/internal/keyboard"
	"github.com/hunterino/MiniKeybaord/internal/linkmon"
	"github.com/hunterino/MiniKeybaord/internal/observability"
	"github.com/hunterino/MiniKeybaord/internal/ratelimit"
	"github.com/hunterino/MiniKeybaord/internal/sendqueue"
	servermw "github.com/hunterino/MiniKeybaord/internal/server/middleware"
	"github.com/hunterino/MiniKeybaord/internal/timeutil"
)

// Keyboard modes.
const (
	KeyboardModeWebSocket = "websocket"
	KeyboardModeStub      = "stub"
)

// Config represents the complete application configuration.
// Sources, lowest precedence first: defaults, config file, environment
// ({PREFIX}SECTION_KEY), command-line flags.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Health    HealthConfig    `mapstructure:"health" yaml:"health"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Keyboard  KeyboardConfig  `mapstructure:"keyboard" yaml:"keyboard"`
	Indicator IndicatorConfig `mapstructure:"indicator" yaml:"indicator"`
	Link      LinkConfig      `mapstructure:"link" yaml:"link"`
	Loop      LoopConfig      `mapstructure:"loop" yaml:"loop"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// TrustedProxies lists proxy addresses or CIDR ranges whose
	// X-Forwarded-For and X-Real-IP headers are believed.
	TrustedProxies []string `mapstructure:"trusted_proxies" yaml:"trusted_proxies"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`

	// Profile selects structured JSON or simple console output.
	// Valid values: structured, simple
	Profile string `mapstructure:"profile" yaml:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the dedicated exporter port; /metrics on the main server proxies it.
	Port int `mapstructure:"port" yaml:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// AuthConfig holds the shared API key. An empty key disables every
// command endpoint.
type AuthConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// RateLimitConfig configures per-client admission.
type RateLimitConfig struct {
	Window          time.Duration `mapstructure:"window" yaml:"window"`
	MaxRequests     int           `mapstructure:"max_requests" yaml:"max_requests"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// KeyboardConfig configures the keyboard channel and send pacing.
type KeyboardConfig struct {
	Mode             string        `mapstructure:"mode" yaml:"mode"`
	DeviceName       string        `mapstructure:"device_name" yaml:"device_name"`
	ChunkSize        int           `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkDelay       time.Duration `mapstructure:"chunk_delay" yaml:"chunk_delay"`
	MaxMessageLength int           `mapstructure:"max_message_length" yaml:"max_message_length"`
	MaxInFlight      time.Duration `mapstructure:"max_in_flight" yaml:"max_in_flight"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// IndicatorConfig configures the status light.
type IndicatorConfig struct {
	FlashInterval time.Duration `mapstructure:"flash_interval" yaml:"flash_interval"`
}

// LinkConfig configures the agent link monitor.
type LinkConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval" yaml:"check_interval"`
	AlertAfter    time.Duration `mapstructure:"alert_after" yaml:"alert_after"`
}

// LoopConfig configures the update loop.
type LoopConfig struct {
	Tick time.Duration `mapstructure:"tick" yaml:"tick"`
	// ClockStart is the initial millisecond counter value. Values close to
	// 4294967295 make the counter wrap shortly after startup.
	ClockStart uint32 `mapstructure:"clock_start" yaml:"clock_start"`
}

// maxInterval is the longest duration the wrapping clock compares reliably.
const maxInterval = time.Duration(math.MaxInt32) * time.Millisecond

// Millis converts d to the wrapping clock's unit, truncating below 1 ms.
func Millis(d time.Duration) timeutil.Duration {
	if d <= 0 {
		return 0
	}
	if d > maxInterval {
		d = maxInterval
	}
	return timeutil.Duration(d / time.Millisecond)
}

// Limiter returns the rate limiter settings.
func (c RateLimitConfig) Limiter() ratelimit.Config {
	return ratelimit.Config{
		Window:      Millis(c.Window),
		MaxRequests: c.MaxRequests,
	}
}

// Manager returns the keyboard manager settings.
func (c KeyboardConfig) Manager() keyboard.Config {
	return keyboard.Config{
		DeviceName: c.DeviceName,
		Queue: sendqueue.Config{
			ChunkSize:        c.ChunkSize,
			ChunkDelay:       Millis(c.ChunkDelay),
			MaxPayloadLength: c.MaxMessageLength,
			MaxInFlight:      Millis(c.MaxInFlight),
		},
	}
}

// WebSocket returns the agent endpoint settings.
func (c KeyboardConfig) WebSocket() keyboard.WebSocketConfig {
	return keyboard.WebSocketConfig{
		DeviceName:     c.DeviceName,
		WriteTimeout:   c.WriteTimeout,
		AllowedOrigins: c.AllowedOrigins,
	}
}

// Monitor returns the link monitor settings.
func (c LinkConfig) Monitor() linkmon.Config {
	return linkmon.Config{
		CheckInterval: Millis(c.CheckInterval),
		AlertAfter:    Millis(c.AlertAfter),
	}
}

// Proxies returns the parsed trusted proxy list. Validate rejects bad
// entries, so parse errors leave the list empty here.
func (c ServerConfig) Proxies() []netip.Prefix {
	prefixes, err := servermw.ParseTrustedProxies(c.TrustedProxies)
	if err != nil {
		return nil
	}
	return prefixes
}

// FlashMillis returns the flash interval in clock units.
func (c IndicatorConfig) FlashMillis() timeutil.Duration {
	if c.FlashInterval <= 0 {
		return indicator.DefaultFlashInterval
	}
	return Millis(c.FlashInterval)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		add("server.port %d out of range", c.Server.Port)
	}
	if _, err := servermw.ParseTrustedProxies(c.Server.TrustedProxies); err != nil {
		add("server.trusted_proxies: %v", err)
	}

	switch strings.ToLower(c.Logging.Profile) {
	case "", observability.ProfileStructured, observability.ProfileSimple:
	default:
		add("logging.profile %q must be %s or %s", c.Logging.Profile, observability.ProfileStructured, observability.ProfileSimple)
	}
	if _, ok := observability.ParseLevel(c.Logging.Level); !ok {
		add("logging.level %q must be trace, debug, info, warn or error", c.Logging.Level)
	}

	if c.RateLimit.Window < time.Millisecond {
		add("rate_limit.window must be at least 1ms")
	}
	// Eviction compares against ten windows on the wrapping clock.
	if c.RateLimit.Window*ratelimit.RetentionWindows > maxInterval {
		add("rate_limit.window %s too long", c.RateLimit.Window)
	}
	if c.RateLimit.MaxRequests < 1 || c.RateLimit.MaxRequests > 255 {
		add("rate_limit.max_requests must be between 1 and 255")
	}
	if c.RateLimit.CleanupInterval < 0 || c.RateLimit.CleanupInterval > maxInterval {
		add("rate_limit.cleanup_interval out of range")
	}

	switch c.Keyboard.Mode {
	case KeyboardModeWebSocket, KeyboardModeStub:
	default:
		add("keyboard.mode %q must be %s or %s", c.Keyboard.Mode, KeyboardModeWebSocket, KeyboardModeStub)
	}
	if c.Keyboard.ChunkSize < 1 {
		add("keyboard.chunk_size must be positive")
	}
	if c.Keyboard.MaxMessageLength < 1 {
		add("keyboard.max_message_length must be positive")
	}
	for name, d := range map[string]time.Duration{
		"keyboard.chunk_delay":     c.Keyboard.ChunkDelay,
		"keyboard.max_in_flight":   c.Keyboard.MaxInFlight,
		"indicator.flash_interval": c.Indicator.FlashInterval,
		"link.check_interval":      c.Link.CheckInterval,
		"link.alert_after":         c.Link.AlertAfter,
	} {
		if d < 0 || d > maxInterval {
			add("%s out of range", name)
		}
	}

	if c.Loop.Tick <= 0 {
		add("loop.tick must be positive")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}
