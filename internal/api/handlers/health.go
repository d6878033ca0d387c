package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/caskfs/caskfs/pkg/vault"
)

// HealthCheckTimeout is the maximum time allowed for health check operations.
// Prevents slow storage backends from blocking health probes indefinitely.
const HealthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Are the metadata and content stores reachable?
type HealthHandler struct {
	coordinator *vault.Coordinator
	startTime   time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(coordinator *vault.Coordinator) *HealthHandler {
	return &HealthHandler{
		coordinator: coordinator,
		startTime:   time.Now(),
	}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK if the server process is running. Designed for Kubernetes
// liveness probes; succeeds as long as the HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	WriteJSONOK(w, map[string]any{
		"status":     "healthy",
		"service":    "caskfs",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	})
}

// Readiness handles GET /health/ready - readiness probe.
// Returns 200 OK only when both the metadata and content stores respond.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.coordinator == nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  "vault not initialized",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	if err := h.coordinator.HealthCheck(ctx); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	WriteJSONOK(w, map[string]any{
		"status":  "healthy",
		"latency": time.Since(start).Round(time.Millisecond).String(),
	})
}
