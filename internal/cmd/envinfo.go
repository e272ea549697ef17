package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/config"
	"github.com/hunterino/MiniKeybaord/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()
		identity := GetAppIdentity()

		log.Info("=== " + identity.BinaryName + " Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("  Env prefix: " + identity.EnvPrefix)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadConfig()
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			configFile = config.DefaultConfigPath() + " (not present)"
		}

		log.Info("Configuration:")
		log.Info("  Config File:    " + configFile)
		log.Info(fmt.Sprintf("  Listen:         %s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info("  Log Level:      " + cfg.Logging.Level)
		log.Info("  Log Profile:    " + cfg.Logging.Profile)
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port))
		log.Info(fmt.Sprintf("  API Key:        %s", setOrNot(cfg.Auth.APIKey != "")))
		log.Info("")

		log.Info("Keyboard:")
		log.Info("  Mode:           " + cfg.Keyboard.Mode)
		log.Info("  Device:         " + cfg.Keyboard.DeviceName)
		log.Info(fmt.Sprintf("  Chunking:       %d bytes every %s", cfg.Keyboard.ChunkSize, cfg.Keyboard.ChunkDelay))
		log.Info(fmt.Sprintf("  Max Message:    %d bytes", cfg.Keyboard.MaxMessageLength))
		log.Info(fmt.Sprintf("  Rate Limit:     %d per %s", cfg.RateLimit.MaxRequests, cfg.RateLimit.Window))
		log.Info(fmt.Sprintf("  Link Alert:     after %s", cfg.Link.AlertAfter))
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func setOrNot(set bool) string {
	if set {
		return "(set)"
	}
	return "(not set)"
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
