package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teemow/calendarlink/internal/logging"
	"github.com/teemow/calendarlink/internal/store"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusFailing      = "failing"
	healthStatusDegraded     = "degraded"
)

// ServiceName is reported by the /health endpoint.
const ServiceName = "bia-calendar-auth"

// DefaultCheckTimeout bounds a single dependency check.
const DefaultCheckTimeout = 2 * time.Second

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name string
	fn   CheckFunc
}

// HealthChecker serves the Kubernetes probes and the /health endpoint.
type HealthChecker struct {
	ready         atomic.Bool
	serverContext *ServerContext
	startTime     time.Time

	mu     sync.RWMutex
	checks []namedCheck
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		startTime:     time.Now(),
	}
	h.ready.Store(true)
	return h
}

// AddCheck registers a dependency checked by the readiness probe.
func (h *HealthChecker) AddCheck(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, namedCheck{name: name, fn: fn})
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// isServerShuttingDown checks if the server context is shutting down.
// Returns false if serverContext is nil (safe for testing).
func (h *HealthChecker) isServerShuttingDown() bool {
	return h.serverContext != nil && h.serverContext.IsShutdown()
}

// runChecks executes every registered check and reports the outcome per name.
func (h *HealthChecker) runChecks(ctx context.Context) (map[string]string, bool) {
	h.mu.RLock()
	checks := append([]namedCheck(nil), h.checks...)
	h.mu.RUnlock()

	results := make(map[string]string, len(checks))
	allOk := true
	for _, c := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, DefaultCheckTimeout)
		err := c.fn(checkCtx)
		cancel()
		if err != nil {
			results[c.name] = healthStatusFailing
			allOk = false
			continue
		}
		results[c.name] = healthStatusOK
	}
	return results, allOk
}

// HealthResponse is the body of the liveness and readiness probes.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse adds uptime and dependency results.
type DetailedHealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ServiceHealthResponse is the body of the /health endpoint.
type ServiceHealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service,omitempty"`
	DBTime  string `json:"db_time,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeHealthJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// LivenessHandler serves /healthz. It only reports that the process runs.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealthJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler serves /readyz. It fails while any registered check
// fails, after SetReady(false) and once the server context is shut down.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks, allOk := h.runChecks(r.Context())

		checks["ready"] = healthStatusOK
		if !h.ready.Load() {
			checks["ready"] = healthStatusNotReady
			allOk = false
		}
		checks["shutdown"] = healthStatusOK
		if h.isServerShuttingDown() {
			checks["shutdown"] = healthStatusShuttingDown
			allOk = false
		}

		if !allOk {
			writeHealthJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: healthStatusNotReady, Checks: checks})
			return
		}
		writeHealthJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK, Checks: checks})
	})
}

// ServiceHealthHandler serves /health. It round-trips to the database and
// reports the database clock.
func (h *HealthChecker) ServiceHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var db store.Pinger
		if h.serverContext != nil {
			db = h.serverContext.Database()
		}
		if db == nil {
			writeHealthJSON(w, http.StatusInternalServerError, ServiceHealthResponse{Error: "db_error"})
			return
		}

		now, err := db.Now(r.Context())
		if err != nil {
			h.serverContext.Logger().ErrorContext(r.Context(), "health check failed", logging.Err(err))
			writeHealthJSON(w, http.StatusInternalServerError, ServiceHealthResponse{Error: "db_error"})
			return
		}

		writeHealthJSON(w, http.StatusOK, ServiceHealthResponse{
			OK:      true,
			Service: ServiceName,
			DBTime:  now.Format(time.RFC3339Nano),
		})
	})
}

// DetailedHealthHandler serves /healthz/detailed. Failing dependency checks
// turn the status into "degraded" without failing the request.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks, allOk := h.runChecks(r.Context())
		response := DetailedHealthResponse{
			Status: healthStatusOK,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
			Checks: checks,
		}

		switch {
		case !h.ready.Load():
			response.Status = healthStatusNotReady
			writeHealthJSON(w, http.StatusServiceUnavailable, response)
		case h.isServerShuttingDown():
			response.Status = healthStatusShuttingDown
			writeHealthJSON(w, http.StatusServiceUnavailable, response)
		default:
			if !allOk {
				response.Status = healthStatusDegraded
			}
			writeHealthJSON(w, http.StatusOK, response)
		}
	})
}

// RegisterHealthEndpoints registers the health endpoints on mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("GET /healthz", h.LivenessHandler())
	mux.Handle("GET /readyz", h.ReadinessHandler())
	mux.Handle("GET /healthz/detailed", h.DetailedHealthHandler())
	mux.Handle("GET /health", h.ServiceHealthHandler())
}
