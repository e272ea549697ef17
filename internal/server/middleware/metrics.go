package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/observability"
)

// Metric names emitted by RequestMetrics.
const (
	HTTPRequestsTotal      = "http_requests_total"
	HTTPRequestDurationMs  = "http_request_duration_ms"
	HTTPRequestSizeBytes   = "http_request_size_bytes"
	HTTPResponseSizeBytes  = "http_response_size_bytes"
	HTTPErrorsTotal        = "http_errors_total"
	AgentSessionsTotal     = "keyboard_agent_sessions_total"
	AgentSessionDurationMs = "keyboard_agent_session_duration_ms"
)

// Route groups used as a metrics label.
const (
	GroupCommand = "command"
	GroupQuery   = "query"
	GroupOps     = "ops"
	GroupAgent   = "agent"
	GroupOther   = "other"
)

// statusRecorder remembers the status and body size written through it.
type statusRecorder struct {
	http.ResponseWriter
	status   int
	written  int64
	upgraded bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.written += int64(n)
	return n, err
}

// Hijack lets the keyboard agent upgrade to a WebSocket through the wrapper.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	sr.status = http.StatusSwitchingProtocols
	sr.upgraded = true
	return hj.Hijack()
}

// getEndpointPattern returns the chi route pattern, or a fixed name for
// known paths, so labels stay low-cardinality.
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	switch path := r.URL.Path; path {
	case "/health", "/health/live", "/health/ready", "/health/startup":
		return "/health/*"
	case "/", "/status", "/version", "/metrics",
		"/ctrlaltdel", "/sleep", "/led/toggle", "/type",
		"/keyboard/agent", "/admin/signal":
		return path
	default:
		return "/unknown"
	}
}

// routeGroup classifies an endpoint pattern.
func routeGroup(endpoint string) string {
	switch endpoint {
	case "/ctrlaltdel", "/sleep", "/led/toggle", "/type":
		return GroupCommand
	case "/", "/status", "/version":
		return GroupQuery
	case "/health", "/health/*", "/health/live", "/health/ready", "/health/startup",
		"/metrics", "/admin/signal":
		return GroupOps
	case "/keyboard/agent":
		return GroupAgent
	default:
		return GroupOther
	}
}

func requestSize(r *http.Request) int64 {
	if r.ContentLength > 0 {
		return r.ContentLength
	}
	if v := r.Header.Get("Content-Length"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			return size
		}
	}
	return 0
}

// RequestMetrics records request counts, latency and sizes per endpoint.
// A hijacked agent connection is counted as a session instead, since its
// duration is the lifetime of the agent link.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		endpoint := getEndpointPattern(r)
		group := routeGroup(endpoint)
		status := strconv.Itoa(rec.status)
		sys := observability.TelemetrySystem

		if rec.upgraded {
			_ = sys.Counter(AgentSessionsTotal, 1, nil)
			_ = sys.Histogram(AgentSessionDurationMs, elapsed, nil)
			logRequest(r, endpoint, group, rec, elapsed)
			return
		}

		labels := map[string]string{
			"method":   r.Method,
			"endpoint": endpoint,
			"group":    group,
			"status":   status,
		}
		_ = sys.Counter(HTTPRequestsTotal, 1, labels)
		_ = sys.Histogram(HTTPRequestDurationMs, elapsed, labels)

		sizeLabels := map[string]string{"method": r.Method, "endpoint": endpoint}
		_ = sys.Gauge(HTTPRequestSizeBytes, float64(requestSize(r)), sizeLabels)
		_ = sys.Gauge(HTTPResponseSizeBytes, float64(rec.written), sizeLabels)

		if rec.status >= 400 {
			errorType := "client_error"
			if rec.status >= 500 {
				errorType = "server_error"
			}
			_ = sys.Counter(HTTPErrorsTotal, 1, map[string]string{
				"method":     r.Method,
				"endpoint":   endpoint,
				"group":      group,
				"status":     status,
				"error_type": errorType,
			})
		}

		logRequest(r, endpoint, group, rec, elapsed)
	})
}

// logRequest logs commands and agent sessions at info; polling traffic
// (status, health, metrics) goes to debug.
func logRequest(r *http.Request, endpoint, group string, rec *statusRecorder, elapsed time.Duration) {
	log := observability.ServerLogger
	if log == nil {
		return
	}

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("endpoint", endpoint),
		zap.String("group", group),
		zap.Int("status", rec.status),
		zap.Duration("duration", elapsed),
		zap.Int64("response_size", rec.written),
		zap.String("requestID", GetRequestID(r.Context())),
	}

	switch {
	case rec.upgraded:
		log.Info("Keyboard agent session ended", fields...)
	case group == GroupCommand || rec.status >= 500:
		log.Info("HTTP request completed", fields...)
	default:
		log.Debug("HTTP request completed", fields...)
	}
}
