package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/service"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`            // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`            // Component check results
	Version string            `json:"version,omitempty"` // Optional version info
}

// Pinger is a component that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker verifies component health.
type HealthChecker struct {
	store   Pinger
	cache   Pinger
	queue   *service.RecordingQueue
	version string
	timeout time.Duration
}

// NewHealthChecker creates a HealthChecker. Pass nil for components that
// aren't configured; the in-memory backends have nothing to ping.
func NewHealthChecker(store, cache Pinger, queue *service.RecordingQueue, version string) *HealthChecker {
	return &HealthChecker{
		store:   store,
		cache:   cache,
		queue:   queue,
		version: version,
		timeout: 2 * time.Second,
	}
}

// Check performs health checks on all components.
func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	checks := make(map[string]string)
	healthy := true

	ping := func(name string, p Pinger, critical bool) {
		if p == nil {
			checks[name] = "in-memory"
			return
		}
		pctx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()
		if err := p.Ping(pctx); err != nil {
			checks[name] = "error: " + err.Error()
			if critical {
				healthy = false
			}
			return
		}
		checks[name] = "ok"
	}
	ping("store", h.store, true)
	// A failing cache degrades to direct store reads.
	ping("cache", h.cache, false)

	if h.queue != nil {
		depth := h.queue.Depth()
		capacity := h.queue.Capacity()
		percentFull := 0
		if capacity > 0 {
			percentFull = depth * 100 / capacity
		}
		if percentFull > 90 {
			// >90% full is unhealthy - recording is under backpressure
			checks["recording_queue"] = fmt.Sprintf("degraded: %d/%d (%d%%)", depth, capacity, percentFull)
			healthy = false
		} else {
			checks["recording_queue"] = fmt.Sprintf("ok: %d/%d (%d%%)", depth, capacity, percentFull)
		}
		if drops := h.queue.Dropped(); drops > 0 {
			checks["recording_drops"] = fmt.Sprintf("%d dropped", drops)
		}
	} else {
		checks["recording_queue"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	return HealthResponse{Status: status, Checks: checks, Version: h.version}
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(health)
	})
}
