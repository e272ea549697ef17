package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunterino/MiniKeybaord/internal/timeutil"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.CleanupInterval)

	assert.Equal(t, KeyboardModeWebSocket, cfg.Keyboard.Mode)
	assert.Equal(t, 4, cfg.Keyboard.ChunkSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Keyboard.ChunkDelay)
	assert.Equal(t, 1000, cfg.Keyboard.MaxMessageLength)
	assert.Equal(t, time.Duration(0), cfg.Keyboard.MaxInFlight)

	assert.Equal(t, 5*time.Second, cfg.Indicator.FlashInterval)
	assert.Equal(t, time.Second, cfg.Link.CheckInterval)
	assert.Equal(t, time.Minute, cfg.Link.AlertAfter)
	assert.Equal(t, 10*time.Millisecond, cfg.Loop.Tick)

	assert.Same(t, cfg, GetConfig())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
auth:
  api_key: s3cret
rate_limit:
  window: 2s
  max_requests: 3
keyboard:
  mode: stub
  chunk_delay: 50ms
  allowed_origins: [http://a.example, http://b.example]
loop:
  clock_start: 4294960000
`), 0o600))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.APIKey)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, KeyboardModeStub, cfg.Keyboard.Mode)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Keyboard.AllowedOrigins)
	assert.Equal(t, uint32(4294960000), cfg.Loop.ClockStart)

	lim := cfg.RateLimit.Limiter()
	assert.Equal(t, timeutil.Duration(2000), lim.Window)
	assert.Equal(t, 3, lim.MaxRequests)

	kb := cfg.Keyboard.Manager()
	assert.Equal(t, timeutil.Duration(50), kb.Queue.ChunkDelay)
	assert.Equal(t, 1000, kb.Queue.MaxPayloadLength)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("MINIKEYBOARD_AUTH_API_KEY", "from-env")
	t.Setenv("MINIKEYBOARD_RATE_LIMIT_MAX_REQUESTS", "9")
	t.Setenv("MINIKEYBOARD_KEYBOARD_CHUNK_DELAY", "250ms")

	v := newViper()
	BindEnv(v, "MINIKEYBOARD_")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.APIKey)
	assert.Equal(t, 9, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 250*time.Millisecond, cfg.Keyboard.ChunkDelay)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
		want string
	}{
		{"zero window", "rate_limit.window", "0s", "rate_limit.window"},
		{"too many requests", "rate_limit.max_requests", 300, "rate_limit.max_requests"},
		{"window beyond clock range", "rate_limit.window", "72h", "too long"},
		{"unknown mode", "keyboard.mode", "bluetooth", "keyboard.mode"},
		{"zero chunk", "keyboard.chunk_size", 0, "keyboard.chunk_size"},
		{"bad port", "server.port", 70000, "server.port"},
		{"bad profile", "logging.profile", "enterprise", "logging.profile"},
		{"bad level", "logging.level", "verbose", "logging.level"},
		{"bad trusted proxy", "server.trusted_proxies", []string{"proxy.internal"}, "server.trusted_proxies"},
		{"zero tick", "loop.tick", "0s", "loop.tick"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.val)
			_, err := Load(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			var env *gferrors.ErrorEnvelope
			require.ErrorAs(t, err, &env)
			assert.Equal(t, "CONFIG_INVALID", env.Code)
		})
	}
}

func TestDecodeLeavesCurrentConfig(t *testing.T) {
	loaded, err := Load(newViper())
	require.NoError(t, err)

	v := newViper()
	v.Set("server.port", 9999)
	decoded, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, 9999, decoded.Server.Port)
	assert.Same(t, loaded, GetConfig())
}

func TestMillisClamps(t *testing.T) {
	assert.Equal(t, timeutil.Duration(0), Millis(-time.Second))
	assert.Equal(t, timeutil.Duration(1500), Millis(1500*time.Millisecond))
	assert.Equal(t, timeutil.Duration(1<<31-1), Millis(1000*time.Hour))
}

func TestFlashMillisDefault(t *testing.T) {
	assert.Equal(t, timeutil.Duration(5000), IndicatorConfig{}.FlashMillis())
	assert.Equal(t, timeutil.Duration(250), IndicatorConfig{FlashInterval: 250 * time.Millisecond}.FlashMillis())
}
