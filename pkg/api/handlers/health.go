package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/quernlabs/quern/pkg/queue"
	"github.com/quernlabs/quern/pkg/store"
)

// readinessTimeout bounds the backend pings of one readiness probe.
const readinessTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Can the server reach its store and job queue?
type HealthHandler struct {
	store   store.Store
	queue   queue.Queue
	version string
	started time.Time
}

// NewHealthHandler creates a new health handler.
//
// The store and queue may be nil, in which case the readiness probe
// reports unhealthy.
func NewHealthHandler(st store.Store, q queue.Queue, version string) *HealthHandler {
	return &HealthHandler{store: st, queue: q, version: version, started: time.Now()}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK if the server process is running. This endpoint is designed
// for Kubernetes liveness probes and should always succeed as long as the
// HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.started)
	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service":    "quern",
		"version":    h.version,
		"started_at": h.started.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 200 OK when both the document store and the job queue answer
// a ping, 503 Service Unavailable otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if h.store == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("store not initialized"))
		return
	}
	if err := h.store.Ping(ctx); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse(fmt.Sprintf("store: %v", err)))
		return
	}

	if h.queue == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("queue not initialized"))
		return
	}
	depth, err := h.queue.Depth(ctx)
	if err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse(fmt.Sprintf("queue: %v", err)))
		return
	}

	WriteJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"store":      "up",
		"queue":      "up",
		"queueDepth": depth,
	}))
}
