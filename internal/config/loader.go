// Package config provides centralized configuration management.
// Values are layered by viper (defaults, config file, environment, flags)
// and decoded into a typed Config with mapstructure hooks.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/hunterino/MiniKeybaord/internal/appid"
	apperrors "github.com/hunterino/MiniKeybaord/internal/errors"
)

var (
	// appConfig holds the current application configuration
	appConfig   *Config
	configMu    sync.RWMutex
	appIdentity *appidentity.Identity
)

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)

	v.SetDefault("auth.api_key", "")

	v.SetDefault("rate_limit.window", "1s")
	v.SetDefault("rate_limit.max_requests", 5)
	v.SetDefault("rate_limit.cleanup_interval", "60s")

	v.SetDefault("keyboard.mode", KeyboardModeWebSocket)
	v.SetDefault("keyboard.device_name", "MiniKeyboard")
	v.SetDefault("keyboard.chunk_size", 4)
	v.SetDefault("keyboard.chunk_delay", "100ms")
	v.SetDefault("keyboard.max_message_length", 1000)
	v.SetDefault("keyboard.max_in_flight", "0s")
	v.SetDefault("keyboard.write_timeout", "2s")
	v.SetDefault("keyboard.allowed_origins", []string{})

	v.SetDefault("indicator.flash_interval", "5s")

	v.SetDefault("link.check_interval", "1s")
	v.SetDefault("link.alert_after", "60s")

	v.SetDefault("loop.tick", "10ms")
	v.SetDefault("loop.clock_start", 0)
}

// BindEnv makes every known key overridable as {prefix}SECTION_KEY.
func BindEnv(v *viper.Viper, prefix string) {
	prefix = strings.TrimSuffix(prefix, "_")
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only consults keys viper already knows about; defaults
	// register all of them, but Unmarshal needs explicit binds.
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key)
	}
}

// Load decodes v into a validated Config and makes it current.
func Load(v *viper.Viper) (*Config, error) {
	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}
	setConfig(cfg)
	return cfg, nil
}

// Decode builds a validated Config from v without making it current.
func Decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewConfigInvalidError(err.Error())
	}
	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// appNamesForPaths returns the config name from app identity,
// falling back to "minikeyboard" if not set.
func appNamesForPaths(ctx context.Context) string {
	if appIdentity == nil {
		if identity, err := appid.Get(ctx); err == nil {
			appIdentity = identity
		}
	}
	if appIdentity != nil && strings.TrimSpace(appIdentity.ConfigName) != "" {
		return appIdentity.ConfigName
	}
	return "minikeyboard"
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(appNamesForPaths(context.Background()))
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}
