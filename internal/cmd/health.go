package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/hunterino/MiniKeybaord/internal/errors"
	"github.com/hunterino/MiniKeybaord/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run a self-health check, or check a running server",
	Long: `Without --remote, verify that this binary can start: version info,
logger and configuration. With --remote, query GET /health on a running
server and list every check.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if remote, _ := cmd.Flags().GetBool("remote"); remote {
			return remoteHealth(cmd)
		}

		log := observability.CLILogger
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			return errwrap.NewConfigInvalidError("version information missing")
		}
		log.Debug("Version check passed", zap.String("version", versionInfo.Version))
		log.Info("✅ Version information available")
		log.Info("✅ Logger initialized")

		cfg, err := loadConfig()
		if err != nil {
			log.Error("❌ Configuration invalid", zap.Error(err))
			return err
		}
		log.Info("✅ Configuration valid", zap.String("keyboard_mode", cfg.Keyboard.Mode))
		if cfg.Auth.APIKey == "" {
			log.Warn("⚠️  No API key configured; command endpoints will reject every request")
		}

		log.Info("")
		log.Info("✅ All health checks passed")
		return nil
	},
}

func remoteHealth(cmd *cobra.Command) error {
	c, err := newRemoteClient(cmd)
	if err != nil {
		return err
	}
	health, err := c.Health(cmd.Context())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "%s: %s (version %s)\n", c.BaseURL(), health.Status, health.Version)
	names := make([]string, 0, len(health.Checks))
	for name := range health.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "  %-16s %s\n", name, health.Checks[name])
	}
	return nil
}

func init() {
	rootCmd.AddCommand(healthCmd)
	addRemoteFlags(healthCmd)
	healthCmd.Flags().Bool("remote", false, "check a running server instead of this binary")
}
