package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds a caller-supplied ID.
const maxRequestIDLength = 64

type requestIDContextKey string

const RequestIDContextKey requestIDContextKey = "request_id"

// RequestID attaches a request ID to the context and response. chi's ID
// wins, then a well-formed X-Request-ID from the caller, then a new UUID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		if requestID == "" {
			requestID = r.Header.Get(RequestIDHeader)
			if !validRequestID(requestID) {
				requestID = uuid.New().String()
			}
		}

		w.Header().Set(RequestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validRequestID accepts short IDs of visible ASCII, so a caller cannot
// push control characters into logs and error bodies.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}

// GetRequestID returns the ID set by RequestID, falling back to chi's.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return requestID
	}
	return middleware.GetReqID(ctx)
}
