package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hunterino/MiniKeybaord/internal/config"
	"github.com/hunterino/MiniKeybaord/internal/observability"
)

const redacted = "(set)"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and initialize configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after defaults, config file, environment and
flags have been applied. The API key is masked unless --show-secrets is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		showSecrets, _ := cmd.Flags().GetBool("show-secrets")
		data, err := renderConfig(cfg, showSecrets)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		if strings.TrimSpace(path) == "" {
			path = config.DefaultConfigPath()
		}
		if path == "" {
			return fmt.Errorf("config path not resolved")
		}

		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}

		data, err := defaultConfigYAML()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		// The file will hold the API key once edited.
		if err := os.WriteFile(path, data, 0600); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", path))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		source := viper.ConfigFileUsed()
		if source == "" {
			source = "defaults and environment"
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration valid (%s)\n", source)
		return nil
	},
}

// renderConfig marshals cfg, masking the API key unless showSecrets.
func renderConfig(cfg *config.Config, showSecrets bool) ([]byte, error) {
	out := *cfg
	if !showSecrets && out.Auth.APIKey != "" {
		out.Auth.APIKey = redacted
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return data, nil
}

// defaultConfigYAML renders the built-in defaults, ignoring any file or
// environment overrides.
func defaultConfigYAML() ([]byte, error) {
	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.Decode(v)
	if err != nil {
		return nil, err
	}
	return renderConfig(cfg, true)
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configShowCmd.Flags().Bool("show-secrets", false, "print the API key instead of masking it")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing config file")
	configInitCmd.Flags().String("path", "", "write to this path instead of the default location")
}
