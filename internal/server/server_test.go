package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunterino/MiniKeybaord/internal/auth"
	apperrors "github.com/hunterino/MiniKeybaord/internal/errors"
	"github.com/hunterino/MiniKeybaord/internal/indicator"
	"github.com/hunterino/MiniKeybaord/internal/keyboard"
	"github.com/hunterino/MiniKeybaord/internal/ratelimit"
	"github.com/hunterino/MiniKeybaord/internal/server/handlers"
	"github.com/hunterino/MiniKeybaord/internal/timeutil"
)

const testKey = "test-key"

type serverFixture struct {
	srv     *Server
	stub    *keyboard.StubChannel
	limiter *ratelimit.Limiter
	clock   *timeutil.ManualClock
}

func newServerFixture(t *testing.T, agent http.Handler, ch keyboard.Channel) *serverFixture {
	t.Helper()
	clk := timeutil.NewManualClock(0)
	stub := keyboard.NewStubChannel()
	if ch == nil {
		ch = stub
	}
	limiter := ratelimit.New(clk, ratelimit.DefaultConfig, nil)
	api := &handlers.KeyboardAPI{
		Keyboard:  keyboard.NewManager(clk, ch, keyboard.DefaultConfig, nil),
		Indicator: indicator.New(clk, indicator.DefaultFlashInterval, nil),
		Limiter:   limiter,
		StartedAt: time.Now(),
	}
	srv := New(Config{Host: "127.0.0.1"}, Deps{
		API:     api,
		Health:  handlers.NewHealthManager("test"),
		Auth:    auth.New(testKey, nil),
		Limiter: limiter,
		Agent:   agent,
	})
	return &serverFixture{srv: srv, stub: stub, limiter: limiter, clock: clk}
}

func (f *serverFixture) do(method, target string, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if key != "" {
		req.Header.Set(auth.HeaderName, key)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	f := newServerFixture(t, nil, nil)

	rec := f.do(http.MethodGet, "/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))

	rec = f.do(http.MethodGet, "/ctrlaltdel", testKey)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", errorCode(t, rec))
}

func TestPublicRoutesNeedNoKey(t *testing.T) {
	f := newServerFixture(t, nil, nil)

	for _, path := range []string{"/", "/status", "/health", "/version"} {
		rec := f.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestCommandsRequireKey(t *testing.T) {
	f := newServerFixture(t, nil, nil)

	for _, key := range []string{"", "wrong"} {
		rec := f.do(http.MethodPost, "/ctrlaltdel", key)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
	}

	assert.Empty(t, f.stub.Frames())
	assert.Equal(t, 0, f.limiter.TrackedClientCount(), "rejected callers are not rate limited")
}

func TestCommandsWithKey(t *testing.T) {
	f := newServerFixture(t, nil, nil)

	rec := f.do(http.MethodPost, "/ctrlaltdel", testKey)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sent Ctrl+Alt+Del")

	rec = f.do(http.MethodPost, "/led/toggle", testKey)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "LED is now ON")

	rec = f.do(http.MethodPost, "/type?msg=hi", testKey)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(http.MethodPost, "/type", testKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", errorCode(t, rec))
}

func TestRateLimitDeniesSixthRequest(t *testing.T) {
	f := newServerFixture(t, nil, nil)

	for i := 0; i < 5; i++ {
		rec := f.do(http.MethodPost, "/led/toggle", testKey)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := f.do(http.MethodPost, "/led/toggle", testKey)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(t, rec))

	f.clock.Advance(1000)
	rec = f.do(http.MethodPost, "/led/toggle", testKey)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitIsPerClient(t *testing.T) {
	f := newServerFixture(t, nil, nil)

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/led/toggle", nil)
		req.RemoteAddr = addr
		req.Header.Set(auth.HeaderName, testKey)
		rec := httptest.NewRecorder()
		f.srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, send("10.0.0.1:5000"))
	}
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5001"), "port does not identify the client")
	assert.Equal(t, http.StatusOK, send("10.0.0.2:5000"))
}

func TestRateLimitKeysOnSocketPeer(t *testing.T) {
	f := newServerFixture(t, nil, nil)

	admitted := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/led/toggle", nil)
		req.RemoteAddr = fmt.Sprintf("203.0.113.9:%d", 40000+i)
		req.Header.Set(auth.HeaderName, testKey)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("192.0.2.%d", i+1))
		rec := httptest.NewRecorder()
		f.srv.Handler().ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			admitted++
		}
	}

	assert.Equal(t, ratelimit.DefaultConfig.MaxRequests, admitted)
	assert.Equal(t, 1, f.limiter.TrackedClientCount())
}

func TestRateLimitHonorsTrustedProxy(t *testing.T) {
	clk := timeutil.NewManualClock(0)
	limiter := ratelimit.New(clk, ratelimit.Config{Window: 1000, MaxRequests: 1}, nil)
	api := &handlers.KeyboardAPI{
		Keyboard:  keyboard.NewManager(clk, keyboard.NewStubChannel(), keyboard.DefaultConfig, nil),
		Indicator: indicator.New(clk, indicator.DefaultFlashInterval, nil),
		Limiter:   limiter,
		StartedAt: time.Now(),
	}
	srv := New(Config{
		Host:           "127.0.0.1",
		TrustedProxies: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
	}, Deps{
		API:     api,
		Health:  handlers.NewHealthManager("test"),
		Auth:    auth.New(testKey, nil),
		Limiter: limiter,
	})

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/led/toggle", nil)
		req.RemoteAddr = "10.0.0.2:8443"
		req.Header.Set(auth.HeaderName, testKey)
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("198.51.100.1"))
	assert.Equal(t, http.StatusOK, send("198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1"))
	assert.Equal(t, 2, limiter.TrackedClientCount())
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(1000))
	assert.Equal(t, 3, retryAfterSeconds(2500))
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.7:40000"
	assert.Equal(t, "192.168.1.7", clientKey(req))

	req.RemoteAddr = "192.168.1.7"
	assert.Equal(t, "192.168.1.7", clientKey(req))
}

func TestAgentEndpoint(t *testing.T) {
	ws := keyboard.NewWebSocketChannel(keyboard.WebSocketConfig{DeviceName: "MiniKeyboard"}, nil)
	t.Cleanup(func() { _ = ws.Close() })
	f := newServerFixture(t, ws, ws)

	ts := httptest.NewServer(f.srv.Handler())
	t.Cleanup(ts.Close)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/keyboard/agent"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{}
	header.Set(auth.HeaderName, testKey)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var hello keyboard.Frame
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, keyboard.FrameHello, hello.Type)
	assert.Equal(t, "MiniKeyboard", hello.Device)

	require.Eventually(t, ws.Ready, time.Second, 10*time.Millisecond)

	rec := f.do(http.MethodPost, "/ctrlaltdel", testKey)
	require.Equal(t, http.StatusOK, rec.Code)

	var combo keyboard.Frame
	require.NoError(t, conn.ReadJSON(&combo))
	assert.Equal(t, keyboard.FrameCombo, combo.Type)
	assert.Equal(t, "ctrl_alt_del", combo.Name)
}
