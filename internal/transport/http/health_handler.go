package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/infrastructure/logger"
	"github.com/IgorGrieder/minimizurl/pkg/httputils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency the API cannot serve without.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status" example:"ok"`
	Timestamp string            `json:"timestamp" example:"2024-01-15T10:30:00Z"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler handles health, readiness and metrics endpoints
type HealthHandler struct {
	deps map[string]Pinger
	now  func() time.Time
}

func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{deps: deps, now: time.Now}
}

// Health reports that the process is up. It never touches dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputils.RespondJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

// Ready pings every dependency and answers 503 if any of them fails.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	for _, name := range names {
		if err := h.deps[name].Ping(ctx); err != nil {
			logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	resp.Timestamp = h.now().UTC().Format(time.RFC3339)

	httputils.RespondJSON(w, status, resp)
}

// Metrics returns Prometheus metrics
func (h *HealthHandler) Metrics() http.Handler {
	return promhttp.Handler()
}
