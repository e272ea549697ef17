package server

import (
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	apperrors "github.com/hunterino/MiniKeybaord/internal/errors"
	"github.com/hunterino/MiniKeybaord/internal/metrics"
	"github.com/hunterino/MiniKeybaord/internal/observability"
	"github.com/hunterino/MiniKeybaord/internal/ratelimit"
	"github.com/hunterino/MiniKeybaord/internal/timeutil"
)

// RateLimit admits requests per client address through l. Denied requests
// get 429 with a Retry-After of the window rounded up to whole seconds.
func RateLimit(l *ratelimit.Limiter) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(retryAfterSeconds(l.Window()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientKey(r)
			allowed := l.CheckLimit(client)
			metrics.RecordRateLimitDecision(allowed)

			if !allowed {
				if observability.ServerLogger != nil {
					observability.ServerLogger.Warn("Rate limit exceeded",
						zap.String("client", client),
						zap.String("path", r.URL.Path))
				}
				w.Header().Set("Retry-After", retryAfter)
				HandleError(w, r, apperrors.NewRateLimitError("Too many requests - please slow down"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(window timeutil.Duration) int {
	secs := int((uint64(window) + 999) / 1000)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// clientKey is the caller address without port. RemoteAddr only carries a
// forwarded address when the peer is a trusted proxy.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
