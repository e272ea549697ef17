package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunterino/MiniKeybaord/internal/appid"
	"github.com/hunterino/MiniKeybaord/internal/auth"
	"github.com/hunterino/MiniKeybaord/internal/config"
	apperrors "github.com/hunterino/MiniKeybaord/internal/errors"
	"github.com/hunterino/MiniKeybaord/internal/keyboard"
	"github.com/hunterino/MiniKeybaord/internal/server/handlers"
	"github.com/hunterino/MiniKeybaord/internal/timeutil"
)

const testKey = "cmd-test-key"

func testConfig(t *testing.T, overrides map[string]any) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("auth.api_key", testKey)
	v.Set("metrics.enabled", false)
	for k, val := range overrides {
		v.Set(k, val)
	}
	cfg, err := config.Decode(v)
	require.NoError(t, err)
	return cfg
}

func newStubService(t *testing.T) (*service, *timeutil.ManualClock, *keyboard.StubChannel) {
	t.Helper()
	identity, err := appid.Get(context.Background())
	require.NoError(t, err)

	clk := timeutil.NewManualClock(0)
	svc := newService(testConfig(t, map[string]any{"keyboard.mode": config.KeyboardModeStub}), clk, identity, nil)
	stub, ok := svc.channel.(*keyboard.StubChannel)
	require.True(t, ok)
	return svc, clk, stub
}

func serve(svc *service, method, target, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if key != "" {
		req.Header.Set(auth.HeaderName, key)
	}
	rec := httptest.NewRecorder()
	svc.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServiceTypesThroughLoop(t *testing.T) {
	svc, clk, stub := newStubService(t)
	assert.Nil(t, svc.agent)

	rec := serve(svc, http.MethodPost, "/type?msg=hello%20world", testKey)
	require.Equal(t, http.StatusAccepted, rec.Code)

	for i := 0; i < 10; i++ {
		svc.loop.Step()
		clk.Advance(100)
	}

	assert.Equal(t, "hello world", stub.Typed())
	assert.False(t, svc.keyboard.IsBusy())
	assert.True(t, svc.link.IsConnected())
}

func TestServiceFlashesOnLongOutage(t *testing.T) {
	svc, clk, stub := newStubService(t)

	svc.loop.Step()
	stub.SetReady(false)
	for i := 0; i <= 61; i++ {
		clk.Advance(1000)
		svc.loop.Step()
	}
	assert.True(t, svc.link.IsDisconnectedLongTerm())
	assert.True(t, svc.indicator.IsFlashing())

	stub.SetReady(true)
	clk.Advance(1000)
	svc.loop.Step()
	assert.False(t, svc.indicator.IsFlashing())
}

func TestServiceHealth(t *testing.T) {
	svc, _, stub := newStubService(t)

	rec := serve(svc, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health handlers.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, handlers.CheckHealthy, health.Status)
	assert.Equal(t, handlers.CheckHealthy, health.Checks["app_identity"])
	assert.Equal(t, handlers.CheckHealthy, health.Checks["keyboard_agent"])
	assert.NotContains(t, health.Checks, "telemetry", "metrics are disabled")

	stub.SetReady(false)
	rec = serve(svc, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code, "a missing agent degrades but does not fail")
	assert.Contains(t, rec.Body.String(), handlers.CheckDegraded)
}

func TestServiceWebSocketMode(t *testing.T) {
	identity, err := appid.Get(context.Background())
	require.NoError(t, err)
	svc := newService(testConfig(t, nil), timeutil.NewManualClock(0), identity, nil)
	t.Cleanup(func() { _ = svc.close() })

	require.NotNil(t, svc.agent)
	assert.False(t, svc.keyboard.IsConnected())

	rec := serve(svc, http.MethodGet, "/keyboard/agent", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(svc, http.MethodPost, "/ctrlaltdel", testKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), apperrors.CodeKeyboardNotConnected)
}

func TestIdentityHealthChecker(t *testing.T) {
	assert.Error(t, identityHealthChecker{}.CheckHealth(context.Background()))

	identity, err := appid.Get(context.Background())
	require.NoError(t, err)
	assert.NoError(t, identityHealthChecker{identity: identity}.CheckHealth(context.Background()))
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, foundry.ExitFailure, ExitCodeFor(fmt.Errorf("boom")))
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(apperrors.NewConfigInvalidError("bad")))

	unavailable := apperrors.WrapServiceUnavailable(context.Background(), fmt.Errorf("refused"), "down")
	assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCodeFor(fmt.Errorf("status: %w", unavailable)))
}

func TestServerURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080", serverURL("", 0))
	assert.Equal(t, "http://localhost:9000", serverURL("0.0.0.0", 9000))
	assert.Equal(t, "http://kbd.lan:8080", serverURL(" kbd.lan ", 8080))
	assert.Equal(t, "http://[::1]:8080", serverURL("::1", 8080))
}

func TestTypeInput(t *testing.T) {
	newCmd := func(stdin string) *cobra.Command {
		c := &cobra.Command{}
		c.Flags().Bool("stdin", false, "")
		c.SetIn(strings.NewReader(stdin))
		return c
	}

	text, err := typeInput(newCmd(""), []string{"hello", "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	_, err = typeInput(newCmd(""), nil)
	assert.Error(t, err)

	c := newCmd("line one\nline two")
	require.NoError(t, c.Flags().Set("stdin", "true"))
	text, err = typeInput(c, nil)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", text)

	_, err = typeInput(c, []string{"extra"})
	assert.Error(t, err)
}

func TestRenderConfigMasksKey(t *testing.T) {
	cfg := testConfig(t, nil)

	masked, err := renderConfig(cfg, false)
	require.NoError(t, err)
	assert.Contains(t, string(masked), redacted)
	assert.NotContains(t, string(masked), testKey)
	assert.Equal(t, testKey, cfg.Auth.APIKey, "masking works on a copy")

	shown, err := renderConfig(cfg, true)
	require.NoError(t, err)
	assert.Contains(t, string(shown), testKey)
}

func TestDefaultConfigYAMLRoundTrips(t *testing.T) {
	data, err := defaultConfigYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "chunk_delay: 100ms")

	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(data)))
	cfg, err := config.Decode(v)
	require.NoError(t, err)

	assert.Equal(t, 100*time.Millisecond, cfg.Keyboard.ChunkDelay)
	assert.Equal(t, time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
	assert.Equal(t, config.KeyboardModeWebSocket, cfg.Keyboard.Mode)
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRemoteCommands(t *testing.T) {
	svc, _, _ := newStubService(t)
	ts := httptest.NewServer(svc.server.Handler())
	t.Cleanup(ts.Close)

	out, err := execute(t, "status", "--server", ts.URL, "--format", "json")
	require.NoError(t, err)
	var status handlers.StatusResponse
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Keyboard.Connected)

	out, err = execute(t, "led", "toggle", "--server", ts.URL, "--api-key", testKey)
	require.NoError(t, err)
	assert.Contains(t, out, "LED is now ON")

	out, err = execute(t, "type", "--server", ts.URL, "--api-key", testKey, "hi", "there")
	require.NoError(t, err)
	assert.Contains(t, out, "queued")
	assert.True(t, svc.keyboard.IsBusy(), "the loop is not running in this test")

	_, err = execute(t, "combo", "sleep", "--server", ts.URL, "--api-key", "wrong")
	require.Error(t, err)
	var env *gferrors.ErrorEnvelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, apperrors.CodeUnauthorized, env.Code)
	assert.Equal(t, foundry.ExitFailure, ExitCodeFor(err))
}

func TestConfigShowCommand(t *testing.T) {
	t.Setenv("MINIKEYBOARD_AUTH_API_KEY", "super-secret")

	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "rate_limit:")
	assert.Contains(t, out, redacted)
	assert.NotContains(t, out, "super-secret")
}
