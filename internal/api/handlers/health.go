package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/aegis-pulse/pkg/logger"
)

// Pinger reports backend reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service health
type HealthHandler struct {
	store   Pinger
	redis   func(ctx context.Context) string
	clients func() int
	logger  *logger.Logger
}

// NewHealthHandler creates a health handler; redis and clients may be nil.
// Redis is optional (cache only) so its status never degrades health.
func NewHealthHandler(store Pinger, redis func(ctx context.Context) string, clients func() int, log *logger.Logger) *HealthHandler {
	return &HealthHandler{store: store, redis: redis, clients: clients, logger: log}
}

// Check returns 200 when the store answers, 503 otherwise
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	body := map[string]interface{}{
		"status":   "ok",
		"service":  "aegis-pulse-api",
		"database": "ok",
	}
	status := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		h.logger.WithError(err).Warn("Health check: store unreachable")
		body["status"] = "degraded"
		body["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if h.redis != nil {
		body["redis"] = h.redis(ctx)
	}
	if h.clients != nil {
		body["ws_clients"] = h.clients()
	}

	respondJSON(w, status, body)
}
