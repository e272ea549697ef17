package server

import (
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/hunterino/MiniKeybaord/internal/errors"
	"github.com/hunterino/MiniKeybaord/internal/observability"
)

// maxScrapeBytes bounds a proxied scrape body.
const maxScrapeBytes = 8 << 20

var metricsProxyClient = &http.Client{
	Timeout: 5 * time.Second,
}

// copiedScrapeHeaders are forwarded from the exporter's response.
var copiedScrapeHeaders = []string{"Content-Type", "Content-Encoding", "Content-Length"}

// MetricsHandler serves GET /metrics by proxying the loopback Prometheus
// exporter, so one port carries both the API and the scrape endpoint.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if observability.PrometheusExporter == nil {
		HandleError(w, r, apperrors.NewServiceUnavailableError("metrics are disabled"))
		return
	}

	target := observability.MetricsURL()
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		HandleError(w, r, apperrors.WrapInternal(r.Context(), err, "build scrape request"))
		return
	}
	for _, h := range []string{"Accept", "Accept-Encoding"} {
		if v := r.Header.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}

	resp, err := metricsProxyClient.Do(req)
	if err != nil {
		HandleError(w, r, apperrors.WrapServiceUnavailable(r.Context(), err, "metrics exporter unreachable"))
		return
	}
	defer resp.Body.Close() //nolint:errcheck

	for _, h := range copiedScrapeHeaders {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, io.LimitReader(resp.Body, maxScrapeBytes)); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Metrics scrape copy failed",
			zap.String("target", target),
			zap.Error(err))
	}
}
