package metrics

import (
	"time"

	"github.com/hunterino/MiniKeybaord/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	RateLimitDecisionsTotal = "ratelimit_decisions_total"
	RateLimitTrackedClients = "ratelimit_tracked_clients"

	SendQueueEnqueueTotal   = "sendqueue_enqueue_total"
	SendQueueChunksTotal    = "sendqueue_chunks_total"
	SendQueueBytesTotal     = "sendqueue_bytes_total"
	SendQueueCompletedTotal = "sendqueue_completed_total"
	SendQueueAbortsTotal    = "sendqueue_aborts_total"

	KeyboardCommandsTotal  = "keyboard_commands_total"
	KeyboardAgentConnected = "keyboard_agent_connected"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"
)

// RecordRateLimitDecision counts an allow or deny from the rate limiter.
func RecordRateLimitDecision(allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitDecisionsTotal,
			1,
			map[string]string{"decision": decision},
		)
	}
}

// SetRateLimitTrackedClients reports the size of the client table.
func SetRateLimitTrackedClients(count int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(RateLimitTrackedClients, float64(count), nil)
	}
}

// RecordKeyboardCommand counts a keyboard command by name and outcome.
func RecordKeyboardCommand(command string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			KeyboardCommandsTotal,
			1,
			map[string]string{
				"command": command,
				"status":  status,
			},
		)
	}
}

// SetKeyboardAgentConnected reports whether a keyboard agent is attached.
func SetKeyboardAgentConnected(connected bool) {
	value := 0.0
	if connected {
		value = 1
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(KeyboardAgentConnected, value, nil)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerUptime, float64(seconds), nil)
	}
}
