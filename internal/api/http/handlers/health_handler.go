package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-service/internal/observability"
	"github.com/spec-kit/marketplace-service/internal/persistence"
)

// SessionCounter reports open realtime sockets.
type SessionCounter interface {
	Sessions() int
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	postgres    *persistence.Postgres
	redis       *persistence.Redis
	metrics     *observability.Metrics
	sockets     SessionCounter
}

// HealthDependencies bundles what the probes inspect.
type HealthDependencies struct {
	ServiceName string
	Version     string
	Postgres    *persistence.Postgres
	Redis       *persistence.Redis
	Metrics     *observability.Metrics
	Sockets     SessionCounter
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(deps HealthDependencies) *HealthHandler {
	return &HealthHandler{
		serviceName: deps.ServiceName,
		version:     deps.Version,
		postgres:    deps.Postgres,
		redis:       deps.Redis,
		metrics:     deps.Metrics,
		sockets:     deps.Sockets,
	}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports readiness. Postgres is required; Redis only degrades
// cross-instance fan-out and shared rate limits, so its failure is reported
// without failing the probe.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	if err := h.postgres.Ping(ctx); err != nil {
		depStatus["postgres"] = err.Error()
		ready = false
	} else {
		depStatus["postgres"] = "ok"
	}

	if err := h.redis.Ping(ctx); err != nil {
		depStatus["redis"] = "degraded: " + err.Error()
	} else {
		depStatus["redis"] = "ok"
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"code":    "DEPENDENCY_UNAVAILABLE",
		"message": "one or more dependencies unavailable",
		"details": depStatus,
	})
}

// Metrics dumps the in-memory counters.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	sessions := 0
	if h.sockets != nil {
		sessions = h.sockets.Sessions()
	}
	return c.JSON(fiber.Map{
		"service":         h.serviceName,
		"version":         h.version,
		"socket_sessions": sessions,
		"metrics":         h.metrics.Snapshot(),
	})
}
