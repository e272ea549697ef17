package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	errwrap "github.com/hunterino/MiniKeybaord/internal/errors"
	"github.com/hunterino/MiniKeybaord/internal/metrics"
	"github.com/hunterino/MiniKeybaord/internal/observability"
	"github.com/hunterino/MiniKeybaord/internal/server/handlers"
	"github.com/hunterino/MiniKeybaord/internal/timeutil"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the keyboard server",
	Long: `Start the keyboard server: the HTTP API, the agent endpoint and the
update loop that paces typing.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config file re-read (restart to apply)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration invalid")
		}

		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, cfg.Logging.Profile, namespace)
		log := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
				log.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		}

		handlers.SetAppIdentity(identity)
		handlers.SetDeviceName(cfg.Keyboard.DeviceName)

		svc := newService(cfg, timeutil.NewSystemClockAt(timeutil.Instant(cfg.Loop.ClockStart)), identity, log)
		metrics.SetServerStartTime(svc.startedAt.Unix())

		log.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("addr", svc.server.Addr()),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
			zap.Int("metrics_port", observability.GetMetricsPort()))
		logStartup(log, cfg, svc)

		loopCtx, stopLoop := context.WithCancel(context.Background())
		defer stopLoop()

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO.
		signals.OnShutdown(func(ctx context.Context) error {
			log.Info("Flushing logger...")
			if err := log.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				log.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.StopMetrics(); err != nil {
				log.Warn("Stopping metrics exporter failed", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			stopLoop()
			if err := svc.close(); err != nil {
				log.Warn("Closing agent connection failed", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			log.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := svc.server.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			log.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			log.Info("Received SIGHUP: re-reading config file")

			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					log.Info("No config file found - using defaults and environment variables")
					return nil
				}
				log.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}
			if _, err := loadConfig(); err != nil {
				log.Error("Reloaded config is invalid", zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			// Components hold their settings from startup.
			log.Info("Configuration re-read; restart to apply changes",
				zap.String("file", viper.ConfigFileUsed()))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			log.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 3)

		go func() {
			if err := svc.loop.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
				errChan <- err
			}
		}()

		go func() {
			if err := svc.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		go func() {
			err := signals.Listen(cmd.Context())
			if err != nil {
				log.Error("Signal handler error", zap.Error(err))
			}
			errChan <- err
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("api-key", "", "shared API key for command endpoints")
	serveCmd.Flags().String("keyboard-mode", "websocket", "keyboard transport: websocket or stub")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("auth.api_key", serveCmd.Flags().Lookup("api-key"))
	_ = viper.BindPFlag("keyboard.mode", serveCmd.Flags().Lookup("keyboard-mode"))
}
