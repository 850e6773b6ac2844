package handler

import (
	"context"
	"net/http"
	"time"
)

// Check probes one dependency.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// BreakerStates reports circuit breaker states by name.
type BreakerStates interface {
	States() map[string]string
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	checks   []Check
	breakers BreakerStates
	timeout  time.Duration
}

// NewHealthHandler creates a new HealthHandler. breakers may be nil.
func NewHealthHandler(breakers BreakerStates, checks ...Check) *HealthHandler {
	return &HealthHandler{
		checks:   checks,
		breakers: breakers,
		timeout:  5 * time.Second,
	}
}

// Liveness returns 200 if the service is alive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness returns 200 if every dependency answers. Open breakers are
// reported but do not fail readiness: they recover on their own.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	body := map[string]any{"status": "ready"}

	deps := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.Probe(ctx); err != nil {
			deps[c.Name] = err.Error()
			status = http.StatusServiceUnavailable
			body["status"] = "unavailable"
			continue
		}
		deps[c.Name] = "ok"
	}
	body["dependencies"] = deps

	if h.breakers != nil {
		body["breakers"] = h.breakers.States()
	}

	writeJSON(w, status, body)
}
