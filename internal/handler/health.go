package handler

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// readinessTimeout bounds all dependency pings of one /readyz call.
const readinessTimeout = 5 * time.Second

type dependency struct {
	name    string
	checker HealthChecker
	// critical dependencies fail readiness; the rest only report degraded.
	critical bool
}

// HealthHandler serves the liveness and readiness checks.
type HealthHandler struct {
	deps []dependency
}

// NewHealthHandler creates a HealthHandler for the credential store and the
// principal cache. Either may be nil when it is not configured.
func NewHealthHandler(db, cache HealthChecker) *HealthHandler {
	return &HealthHandler{deps: []dependency{
		{name: "postgres", checker: db, critical: true},
		// The principal cache falls back to the store.
		{name: "redis", checker: cache},
	}}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz reports that the process is running. It checks nothing.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Up is the plain uptime check load balancers poll.
//
// GET /up
func (h *HealthHandler) Up(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz pings every dependency and returns 503 when a critical one fails.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.deps))}
	for _, dep := range h.deps {
		state, failed := check(ctx, dep)
		resp.Checks[dep.name] = state
		if failed && dep.critical {
			resp.Status = "unhealthy"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func check(ctx context.Context, dep dependency) (state string, failed bool) {
	if dep.checker == nil {
		return "not configured", false
	}
	if err := dep.checker.Ping(ctx); err != nil {
		if dep.critical {
			return "error: " + err.Error(), true
		}
		return "degraded: " + err.Error(), true
	}
	return "ok", false
}
