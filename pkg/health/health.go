// Package health serves liveness and readiness probes. Liveness means the
// process is up; readiness additionally runs the registered checks on demand
// so a dead database flips the service out of rotation on the next probe.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports whether one dependency is usable.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc
}

// Health tracks service readiness and its dependency checks.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks []check
}

// New creates a Health in the not-ready state. Call SetReady(true) once
// startup has finished.
func New() *Health {
	return &Health{}
}

// AddReadinessCheck registers a dependency check run on every readiness probe.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check{name: name, timeout: timeout, fn: fn})
}

// SetReady flips the readiness gate. Readiness probes fail while it is false
// regardless of check results.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveHandler answers liveness probes. It only proves the process serves HTTP.
func (h *Health) LiveHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeProbe(w, http.StatusOK, probeResponse{Status: "ok"})
	})
}

// ReadyHandler answers readiness probes by running every registered check.
func (h *Health) ReadyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			writeProbe(w, http.StatusServiceUnavailable, probeResponse{Status: "starting"})
			return
		}

		h.mu.RLock()
		checks := make([]check, len(h.checks))
		copy(checks, h.checks)
		h.mu.RUnlock()

		results := make(map[string]string, len(checks))
		failed := false
		for _, c := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
			err := c.fn(ctx)
			cancel()
			if err != nil {
				failed = true
				results[c.name] = err.Error()
			} else {
				results[c.name] = "ok"
			}
		}

		status := http.StatusOK
		resp := probeResponse{Status: "ok", Checks: results}
		if failed {
			status = http.StatusServiceUnavailable
			resp.Status = "unavailable"
		}
		writeProbe(w, status, resp)
	})
}

func writeProbe(w http.ResponseWriter, status int, resp probeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
