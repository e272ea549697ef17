package observability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/observability"
)

func TestInitCLILogger(t *testing.T) {
	observability.InitCLILogger("minikeyboard-test", true)
	require.NotNil(t, observability.CLILogger)

	observability.CLILogger.Debug("verbose CLI message", zap.String("test", "value"))
}

func TestServerLoggerProfiles(t *testing.T) {
	for _, profile := range []string{"structured", "simple", ""} {
		t.Run("profile="+profile, func(t *testing.T) {
			logger, err := observability.NewServerLogger("minikeyboard-test", "debug", profile, "minikeyboard")
			require.NoError(t, err)
			require.NotNil(t, logger)

			logger.Info("component message",
				zap.String("component", "test"),
				zap.Int("tracked", 3))
		})
	}
}

func TestInitServerLoggerInstallsGlobal(t *testing.T) {
	original := observability.ServerLogger
	t.Cleanup(func() { observability.ServerLogger = original })

	observability.InitServerLogger("minikeyboard-test", "warn", "structured")
	assert.NotNil(t, observability.ServerLogger)
}

func TestMetricsURLUsesLoopback(t *testing.T) {
	assert.Contains(t, observability.MetricsURL(), "http://127.0.0.1:")
	assert.Contains(t, observability.MetricsURL(), "/metrics")
}

func TestStopMetricsWithoutExporter(t *testing.T) {
	exporter, system := observability.PrometheusExporter, observability.TelemetrySystem
	t.Cleanup(func() {
		observability.PrometheusExporter, observability.TelemetrySystem = exporter, system
	})

	observability.PrometheusExporter = nil
	assert.NoError(t, observability.StopMetrics())
	assert.Nil(t, observability.TelemetrySystem)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]string{"debug": "DEBUG", "WARNING": "WARN", " error ": "ERROR", "": "INFO"} {
		got, ok := observability.ParseLevel(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	got, ok := observability.ParseLevel("chatty")
	assert.False(t, ok)
	assert.Equal(t, "INFO", got)
}
