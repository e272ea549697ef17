package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/ctrlaltdel", nil)
	if key != "" {
		req.Header.Set(HeaderName, key)
	}
	return req
}

func TestAuthenticate(t *testing.T) {
	a := New("s3cret", nil)
	require.True(t, a.Enabled())

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"correct key", "s3cret", true},
		{"missing key", "", false},
		{"wrong key", "s3cre7", false},
		{"prefix of key", "s3c", false},
		{"key with suffix", "s3cret!", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Authenticate(request(tt.key)))
		})
	}
}

func TestEmptyKeyRejectsEverything(t *testing.T) {
	a := New("", nil)

	assert.False(t, a.Enabled())
	assert.False(t, a.Authenticate(request("")))
	assert.False(t, a.Authenticate(request("anything")))
}

func TestMiddleware(t *testing.T) {
	a := New("s3cret", nil)
	called := false
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, request("nope"))

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
	assert.Contains(t, body.Error.Message, HeaderName)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, request("s3cret"))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}
