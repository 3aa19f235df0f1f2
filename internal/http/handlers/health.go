package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler reports liveness plus the state of optional dependencies.
type HealthHandler struct {
	checks  []HealthCheck
	timeout time.Duration
}

func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	filtered := make([]HealthCheck, 0, len(checks))
	for _, c := range checks {
		if c.Check != nil {
			filtered = append(filtered, c)
		}
	}
	return &HealthHandler{checks: filtered, timeout: 2 * time.Second}
}

// ServeHTTP returns 200 with {"status":"ok"} when every check passes and 503
// otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	resp := map[string]string{"status": "ok"}
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
			resp[c.Name] = err.Error()
			continue
		}
		resp[c.Name] = "ok"
	}
	writeJSON(w, status, resp)
}
