package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecovery_ConvertsPanicToEnvelope(t *testing.T) {
	setupTelemetry(t)

	handler := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("keyboard exploded")
	})))

	req := httptest.NewRequest(http.MethodPost, "/ctrlaltdel", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()

	require.NotPanics(t, func() { handler.ServeHTTP(rec, req) })

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "keyboard exploded")
	assert.Equal(t, "req-42", resp.Error.RequestID)
}

func TestRecovery_PassesThrough(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestRecovery_KeepsStackOutOfBody(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("queue corrupted")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/type", nil))

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotContains(t, resp.Error.Details, "stack_trace")
	assert.NotContains(t, resp.Error.Message, "goroutine")
}

func TestRecovery_RepanicsOnAbort(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status", nil))
	})
}

func TestRequestID_ReplacesMalformedHeader(t *testing.T) {
	for name, header := range map[string]string{
		"control chars": "abc\n{\"forged\":true}",
		"too long":      strings.Repeat("x", maxRequestIDLength+1),
		"spaces":        "two words",
	} {
		t.Run(name, func(t *testing.T) {
			var seen string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			req.Header.Set(RequestIDHeader, header)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.NotEqual(t, header, seen)
			assert.True(t, validRequestID(seen))
		})
	}
}
