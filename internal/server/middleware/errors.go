package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/metrics"
	"github.com/hunterino/MiniKeybaord/internal/observability"
)

// ErrorResponse mirrors the error body written by internal/errors, which
// this package cannot import.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// Recovery turns a handler panic into a 500 INTERNAL_ERROR envelope. The
// stack trace goes to the server log only.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			envelope := errors.NewErrorEnvelope("INTERNAL_ERROR", fmt.Sprintf("panic: %v", recovered)).
				WithCorrelationID(GetRequestID(r.Context()))
			envelope, _ = envelope.WithSeverity(errors.SeverityCritical)

			metrics.RecordPanic()
			if log := observability.ServerLogger; log != nil {
				log.Error("Handler panicked",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("requestID", envelope.CorrelationID),
					zap.String("panic", fmt.Sprint(recovered)),
					zap.String("stack", string(debug.Stack())))
			}

			writeErrorResponse(w, envelope, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}

func writeErrorResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			Details:   envelope.Context,
			RequestID: envelope.CorrelationID,
		},
	})
}
