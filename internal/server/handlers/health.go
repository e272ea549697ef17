package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/hunterino/MiniKeybaord/internal/metrics"
)

// Check results reported per checker.
const (
	CheckHealthy   = "healthy"
	CheckDegraded  = "degraded"
	CheckUnhealthy = "unhealthy"
	CheckTimeout   = "timeout"
)

// ErrDegraded marks a check failure that should not fail the probe.
// Checkers wrap it, e.g. fmt.Errorf("%w: agent offline", ErrDegraded).
var ErrDegraded = stderrors.New("degraded")

// HealthResponse represents the aggregate health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse represents individual probe response
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker defines interface for health checkable components
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// HealthManager runs registered checks for the health endpoints.
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	version  string
}

// NewHealthManager creates a new health manager
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
	}
}

// RegisterChecker registers a health checker, replacing any with the same name.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// runHealthChecks executes all registered checks in name order.
func (hm *HealthManager) runHealthChecks(ctx context.Context) map[string]string {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	checkers := make(map[string]HealthChecker, len(hm.checkers))
	for name, c := range hm.checkers {
		checkers[name] = c
	}
	hm.mu.RUnlock()
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			checks[name] = CheckTimeout
			continue
		}
		start := time.Now()
		err := checkers[name].CheckHealth(ctx)
		switch {
		case err == nil:
			checks[name] = CheckHealthy
		case stderrors.Is(err, ErrDegraded):
			checks[name] = CheckDegraded
		default:
			checks[name] = CheckUnhealthy
		}
		metrics.RecordHealthCheck(name, err == nil, time.Since(start))
	}

	return checks
}

// determineOverallStatus determines overall health status
func (hm *HealthManager) determineOverallStatus(checks map[string]string) string {
	degraded := false
	for _, status := range checks {
		if status == CheckUnhealthy {
			return CheckUnhealthy
		}
		if status == CheckDegraded || status == CheckTimeout {
			degraded = true
		}
	}
	if degraded {
		return CheckDegraded
	}
	return CheckHealthy
}

// evaluate runs the checks under a timeout and answers 503 when any is
// unhealthy. ok is false when the error response has been written.
func (hm *HealthManager) evaluate(w http.ResponseWriter, r *http.Request, probe string, timeout time.Duration) (string, map[string]string, bool) {
	checkCtx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	checks := hm.runHealthChecks(checkCtx)
	status := hm.determineOverallStatus(checks)
	if status != CheckUnhealthy {
		return status, checks, true
	}

	label := probe
	if label == "" {
		label = "aggregate health check"
	} else {
		label += " probe"
	}
	envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", label+" failed")
	envelope = enrichHealthEnvelope(envelope, probe, status, checks)
	respondWithError(w, r, envelope)
	return status, checks, false
}

// HealthHandler handles aggregate health check requests
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status, checks, ok := hm.evaluate(w, r, "", 5*time.Second)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   hm.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// LivenessHandler reports whether the process is running.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, "live", 2*time.Second)
}

// ReadinessHandler reports whether the server can accept commands.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, "ready", 5*time.Second)
}

// StartupHandler reports whether initialization has completed.
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, "startup", 3*time.Second)
}

func (hm *HealthManager) probe(w http.ResponseWriter, r *http.Request, name string, timeout time.Duration) {
	status, _, ok := hm.evaluate(w, r, name, timeout)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ProbeResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func enrichHealthEnvelope(envelope *errors.ErrorEnvelope, probe, status string, checks map[string]string) *errors.ErrorEnvelope {
	if envelope == nil {
		return nil
	}

	details := map[string]interface{}{
		"status": status,
	}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	if probe != "" {
		details["probe"] = probe
	}
	envelope = envelope.WithDetails(details)

	contextData := map[string]interface{}{
		"status": status,
	}
	if probe != "" {
		contextData["probe"] = probe
	}

	var unhealthy []string
	for name, result := range checks {
		if result != CheckHealthy {
			unhealthy = append(unhealthy, name)
		}
	}
	if len(unhealthy) > 0 {
		sort.Strings(unhealthy)
		contextData["unhealthy_checks"] = unhealthy
	}

	envelope, _ = envelope.WithContext(contextData)
	return envelope
}
