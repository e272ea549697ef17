package metrics

import (
	"strconv"

	"github.com/hunterino/MiniKeybaord/internal/observability"
)

const (
	ErrorsTotalName      = "errors_total"
	PanicsTotalName      = "panics_total"
	ErrorsByEndpointName = "errors_by_endpoint"
)

// Error classes group response codes for dashboards.
const (
	ErrorClassAuth       = "auth"
	ErrorClassRateLimit  = "rate_limit"
	ErrorClassKeyboard   = "keyboard"
	ErrorClassValidation = "validation"
	ErrorClassServer     = "server"
	ErrorClassOther      = "other"
)

// ErrorClass maps an error code to its class.
func ErrorClass(code string) string {
	switch code {
	case "UNAUTHORIZED":
		return ErrorClassAuth
	case "RATE_LIMIT_EXCEEDED":
		return ErrorClassRateLimit
	case "BUSY", "KEYBOARD_NOT_CONNECTED", "KEYBOARD_SEND_FAILED":
		return ErrorClassKeyboard
	case "MESSAGE_EMPTY", "MESSAGE_TOO_LONG", "INVALID_CHARACTERS",
		"INVALID_PARAMETER", "INVALID_INPUT":
		return ErrorClassValidation
	case "INTERNAL_ERROR", "SERVICE_UNAVAILABLE", "CONFIG_INVALID":
		return ErrorClassServer
	default:
		return ErrorClassOther
	}
}

// RecordError counts an error response by code, class and status.
func RecordError(errorCode string, httpStatus int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(ErrorsTotalName, 1, map[string]string{
		"error_code":  errorCode,
		"error_class": ErrorClass(errorCode),
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordPanic counts a recovered handler panic.
func RecordPanic() {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(PanicsTotalName, 1, nil)
}

// RecordErrorByEndpoint counts an error against a route pattern. Callers
// pass the pattern, not the raw path.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	if observability.TelemetrySystem == nil {
		return
	}
	if endpoint == "" {
		endpoint = "/unknown"
	}
	_ = observability.TelemetrySystem.Counter(ErrorsByEndpointName, 1, map[string]string{
		"endpoint":   endpoint,
		"error_code": errorCode,
	})
}
