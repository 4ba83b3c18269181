package observability

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/platinummonkey/orgaccess/pkg/httputil"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Pinger is an optional dependency probed by the health check, such as the redis
// permission cache
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports the health of the database and optional dependencies
type HealthChecker struct {
	db       *sql.DB
	optional map[string]Pinger
}

// NewHealthChecker creates a new health checker. Failing optional dependencies
// degrade the status but never make the service unhealthy.
func NewHealthChecker(db *sql.DB, optional map[string]Pinger) *HealthChecker {
	return &HealthChecker{db: db, optional: optional}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Liveness reports that the process is serving
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, HealthStatus{Status: StatusHealthy, Timestamp: time.Now()})
}

// Readiness checks every dependency and answers 503 when the database is unavailable
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, status)
}

// Check probes all dependencies
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Dependencies: make(map[string]DependencyStatus),
	}

	if h.db != nil {
		dep := probe(ctx, h.db.PingContext)
		status.Dependencies["database"] = dep
		if dep.Status != StatusHealthy {
			status.Status = StatusUnhealthy
		}
	}

	for name, p := range h.optional {
		dep := probe(ctx, p.Ping)
		status.Dependencies[name] = dep
		if dep.Status != StatusHealthy && status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}

	return status
}

func probe(ctx context.Context, ping func(context.Context) error) DependencyStatus {
	start := time.Now()
	err := ping(ctx)
	dep := DependencyStatus{Status: StatusHealthy, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		dep.Status = StatusUnhealthy
		dep.Message = err.Error()
	}
	return dep
}
