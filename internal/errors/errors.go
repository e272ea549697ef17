package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/keyboard"
	"github.com/hunterino/MiniKeybaord/internal/metrics"
	"github.com/hunterino/MiniKeybaord/internal/observability"
	"github.com/hunterino/MiniKeybaord/internal/sendqueue"
	"github.com/hunterino/MiniKeybaord/internal/server/middleware"
	"github.com/hunterino/MiniKeybaord/internal/validation"
)

// Error codes returned by the API.
const (
	CodeInvalidInput         = "INVALID_INPUT"
	CodeInvalidParameter     = "INVALID_PARAMETER"
	CodeNotFound             = "NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	CodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	CodeBusy                 = "BUSY"
	CodeKeyboardNotConnected = "KEYBOARD_NOT_CONNECTED"
	CodeKeyboardSendFailed   = "KEYBOARD_SEND_FAILED"
	CodeMessageEmpty         = "MESSAGE_EMPTY"
	CodeMessageTooLong       = "MESSAGE_TOO_LONG"
	CodeInvalidCharacters    = "INVALID_CHARACTERS"
	CodeInternal             = "INTERNAL_ERROR"
	CodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
	CodeConfigInvalid        = "CONFIG_INVALID"
)

// User Errors (400-level)
func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewInvalidParameterError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidParameter, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewUnauthorizedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeUnauthorized, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewRateLimitError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeRateLimitExceeded, message)
}

func NewBusyError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeBusy, message)
}

func NewKeyboardNotConnectedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeKeyboardNotConnected, message)
}

// Server Errors (500-level)
func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeConfigInvalid, message)
}

func NewServiceUnavailableError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeServiceUnavailable, message)
}

// WrapKeyboardSendFailed records a transport failure with request IDs.
func WrapKeyboardSendFailed(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeKeyboardSendFailed, err, message)
}

// WrapInternal records an unexpected failure with request IDs.
func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeInternal, err, message)
}

// WrapServiceUnavailable records a dependency that could not be reached.
func WrapServiceUnavailable(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeServiceUnavailable, err, message)
}

// WrapConfigInvalid records a configuration failure.
func WrapConfigInvalid(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeConfigInvalid, err, message)
}

func wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(code, message)
	envelope = envelope.WithCorrelationID(extractCorrelationID(ctx))
	envelope = envelope.WithTraceID(extractTraceID(ctx))
	return withWrappedError(envelope, err)
}

// FromKeyboardError maps keyboard, send queue and validation sentinels to
// API envelopes. Unknown errors become KEYBOARD_SEND_FAILED.
func FromKeyboardError(ctx context.Context, err error) *errors.ErrorEnvelope {
	var envelope *errors.ErrorEnvelope
	switch {
	case stderrors.Is(err, keyboard.ErrNotConnected):
		envelope = NewKeyboardNotConnectedError("Keyboard not connected")
	case stderrors.Is(err, keyboard.ErrBusy):
		envelope = NewBusyError("System busy - another operation in progress")
	case stderrors.Is(err, sendqueue.ErrEmpty), stderrors.Is(err, validation.ErrEmpty):
		envelope = errors.NewErrorEnvelope(CodeMessageEmpty, "Message cannot be empty")
	case stderrors.Is(err, sendqueue.ErrTooLong), stderrors.Is(err, validation.ErrTooLong):
		envelope = errors.NewErrorEnvelope(CodeMessageTooLong, "Message exceeds maximum length")
	case stderrors.Is(err, validation.ErrInvalidCharacters):
		envelope = errors.NewErrorEnvelope(CodeInvalidCharacters, "Message contains invalid characters")
	default:
		return WrapKeyboardSendFailed(ctx, err, "Failed to send to keyboard")
	}
	return envelope.WithCorrelationID(extractCorrelationID(ctx))
}

// extractCorrelationID gets correlation ID from context, falls back to generating new UUID
func extractCorrelationID(ctx context.Context) string {
	if ctx != nil {
		if requestID := middleware.GetRequestID(ctx); requestID != "" {
			return requestID
		}
	}
	return uuid.New().String()
}

// extractTraceID uses the correlation ID; there is no tracing backend.
func extractTraceID(ctx context.Context) string {
	return extractCorrelationID(ctx)
}

// EnsureEnvelope normalizes any error into a gofulmen ErrorEnvelope.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		return envelope
	}

	env := errors.NewErrorEnvelope(CodeInternal, "unexpected error")
	env, _ = env.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

// EnsureCorrelationID attaches a correlation ID to the envelope using the context when available.
func EnsureCorrelationID(envelope *errors.ErrorEnvelope, ctx context.Context) *errors.ErrorEnvelope {
	if envelope == nil {
		return nil
	}

	if envelope.CorrelationID != "" {
		return envelope
	}

	var correlationID string
	if ctx != nil {
		correlationID = middleware.GetRequestID(ctx)
	}

	if correlationID == "" {
		correlationID = "fallback-" + errors.GenerateCorrelationID()
	}

	return envelope.WithCorrelationID(correlationID)
}

// HTTPStatusFromEnvelope resolves the HTTP status code corresponding to an error envelope.
func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	return HTTPStatusFromCode(envelope.Code)
}

// HTTPStatusFromCode resolves the HTTP status code corresponding to an error code.
func HTTPStatusFromCode(code string) int {
	switch code {
	case CodeInvalidInput, CodeInvalidParameter, CodeKeyboardNotConnected,
		CodeMessageEmpty, CodeMessageTooLong, CodeInvalidCharacters:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeBusy:
		return http.StatusConflict
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func withWrappedError(envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	if envelope == nil || err == nil {
		return envelope
	}

	updated, updateErr := envelope.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	if updateErr != nil {
		return envelope
	}
	return updated
}

// ResponseDetails constructs API-safe details map by merging envelope details and context.
func ResponseDetails(envelope *errors.ErrorEnvelope) map[string]interface{} {
	if envelope == nil {
		return nil
	}

	details := make(map[string]interface{})

	for key, value := range envelope.Details {
		details[key] = value
	}

	for key, value := range envelope.Context {
		if _, exists := details[key]; !exists {
			details[key] = value
		}
	}

	if len(details) == 0 {
		return nil
	}

	return details
}

// HTTPErrorDetail captures the error body returned to callers.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HTTPErrorResponse wraps HTTPErrorDetail in the standard envelope structure.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// RespondWithError normalizes the supplied error and writes a JSON response.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	RespondWithEnvelope(w, r, EnsureEnvelope(err))
}

// RespondWithEnvelope finalizes the provided envelope, logging and emitting metrics.
func RespondWithEnvelope(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope) {
	if w == nil {
		return
	}

	if r != nil {
		envelope = EnsureCorrelationID(envelope, r.Context())
	} else {
		envelope = EnsureCorrelationID(envelope, nil)
	}

	statusCode := HTTPStatusFromEnvelope(envelope)

	response := HTTPErrorResponse{
		Error: HTTPErrorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			Details:   ResponseDetails(envelope),
			RequestID: envelope.CorrelationID,
		},
	}

	logHTTPError(envelope, statusCode)
	emitErrorMetrics(r, envelope, statusCode)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func logHTTPError(envelope *errors.ErrorEnvelope, statusCode int) {
	if observability.ServerLogger == nil || envelope == nil {
		return
	}

	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", statusCode),
	}

	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}

	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}

	if envelope.CorrelationID != "" {
		fields = append(fields, zap.String("request_id", envelope.CorrelationID))
	}

	switch envelope.Severity {
	case errors.SeverityCritical, errors.SeverityHigh:
		observability.ServerLogger.Error(envelope.Message, fields...)
	case errors.SeverityMedium:
		observability.ServerLogger.Warn(envelope.Message, fields...)
	default:
		observability.ServerLogger.Info(envelope.Message, fields...)
	}
}

func emitErrorMetrics(r *http.Request, envelope *errors.ErrorEnvelope, statusCode int) {
	if envelope == nil {
		return
	}

	metrics.RecordError(envelope.Code, statusCode)
	if r != nil {
		metrics.RecordErrorByEndpoint(routePattern(r), envelope.Code)
	}
}

// routePattern returns the matched chi pattern; unmatched paths collapse
// to one label value.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "/unknown"
}
