package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/appid"
	"github.com/hunterino/MiniKeybaord/internal/config"
	"github.com/hunterino/MiniKeybaord/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// App identity loaded from .fulmen/app.yaml
	appIdentity *appidentity.Identity

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the loaded app identity (only valid after initConfig)
func GetAppIdentity() *appidentity.Identity {
	return appIdentity
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	// NOTE: initConfig() overwrites these from app identity.
	Use:   filepath.Base(os.Args[0]),
	Short: "Remote keyboard server",
	Long: `Remote keyboard server.

Run "serve" on the machine attached to the keyboard agent, then drive it
with "status", "type", "combo" and "led" from anywhere on the network.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early to prevent config loading from emitting
	// metrics to stdout. Server mode will initialize proper telemetry later.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	// Load app identity early for help text (before cobra processes --help)
	if identity, err := appid.Get(context.Background()); err == nil && identity != nil {
		appIdentity = identity
		applyIdentityToHelp(identity)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; defaults to app identity config path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func applyIdentityToHelp(identity *appidentity.Identity) {
	if identity.BinaryName != "" {
		rootCmd.Use = identity.BinaryName
	}
	if identity.Description != "" {
		rootCmd.Short = identity.Description
		rootCmd.Long = fmt.Sprintf("%s - %s\n\nUse the subcommands to perform specific operations.", identity.BinaryName, identity.Description)
	}
	if f := rootCmd.PersistentFlags().Lookup("config"); f != nil && identity.ConfigName != "" {
		f.Usage = fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	identity, err := appid.Get(context.Background())
	if err != nil {
		ExitWithCodeStderr(foundry.ExitFileNotFound, "Failed to load app identity from .fulmen/app.yaml", err)
	}
	appIdentity = identity
	applyIdentityToHelp(identity)

	observability.InitCLILogger(appIdentity.BinaryName, verbose)

	v := viper.GetViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		appConfigDir := gfconfig.GetAppConfigDir(appIdentity.ConfigName)
		if appConfigDir == "" {
			if verbose {
				observability.CLILogger.Warn("Could not resolve XDG config directory, falling back to home directory")
			}
			home, err := os.UserHomeDir()
			if err != nil {
				ExitWithCode(observability.CLILogger, foundry.ExitFileNotFound, "Could not find home directory", err)
			}
			v.AddConfigPath(home)
			v.SetConfigName("." + appIdentity.ConfigName)
		} else {
			v.AddConfigPath(appConfigDir)
			v.SetConfigName("config")
		}

		v.AddConfigPath("./config")
		v.SetConfigType("yaml")
	}

	config.SetDefaults(v)
	config.BindEnv(v, appIdentity.EnvPrefix)

	if err := v.ReadInConfig(); err == nil {
		observability.CLILogger.Debug("Using config file", zap.String("path", v.ConfigFileUsed()))
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		observability.CLILogger.Debug("No config file found, using defaults and environment variables")
	} else if cfgFile != "" {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to read config file", err)
	} else {
		observability.CLILogger.Warn("Error reading config file", zap.Error(err))
	}
}

// loadConfig decodes and validates the effective configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}
