// Package auth guards command endpoints with a shared API key.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	apperrors "github.com/hunterino/MiniKeybaord/internal/errors"
)

// HeaderName carries the API key.
const HeaderName = "X-API-Key"

// Authenticator compares request keys against the configured one.
type Authenticator struct {
	key []byte
}

// New creates an Authenticator. An empty key rejects every request.
func New(key string, log *logging.Logger) *Authenticator {
	if key == "" && log != nil {
		log.Warn("No API key configured; command endpoints will reject all requests",
			zap.String("component", "auth"))
	}
	return &Authenticator{key: []byte(key)}
}

// Enabled reports whether a key is configured.
func (a *Authenticator) Enabled() bool {
	return len(a.key) > 0
}

// Authenticate reports whether r carries the configured key.
func (a *Authenticator) Authenticate(r *http.Request) bool {
	if !a.Enabled() {
		return false
	}
	provided := r.Header.Get(HeaderName)
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), a.key) == 1
}

// Middleware rejects unauthenticated requests with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Authenticate(r) {
			apperrors.RespondWithEnvelope(w, r,
				apperrors.NewUnauthorizedError("Valid API key required in "+HeaderName+" header"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
