package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// healthCheckTimeout bounds each dependency check in extended mode
const healthCheckTimeout = 5 * time.Second

// DatabasePinger is satisfied by *database.DB
type DatabasePinger interface {
	PingContext(ctx context.Context) error
}

// RedisPinger is satisfied by *redis.Client
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// QueueChecker is satisfied by *queue.RabbitMQQueue
type QueueChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthChecker handles health check requests
type HealthChecker struct {
	db    DatabasePinger
	redis RedisPinger
	queue QueueChecker
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db DatabasePinger) *HealthChecker {
	return &HealthChecker{db: db}
}

// NewHealthCheckerWithDeps creates a health checker that also checks Redis and
// RabbitMQ. Nil dependencies are reported as not configured.
func NewHealthCheckerWithDeps(db DatabasePinger, redisClient RedisPinger, q QueueChecker) *HealthChecker {
	return &HealthChecker{db: db, redis: redisClient, queue: q}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if mode == "extended" {
		checks := make(map[string]string)
		ctx := r.Context()

		record := func(name string, configured bool, check func(context.Context) error) {
			if !configured {
				checks[name] = "not configured"
				return
			}
			if err := runCheck(ctx, check); err != nil {
				response.Status = "unhealthy"
				checks[name] = "unhealthy: " + sanitizeErrorMessage(err.Error())
				return
			}
			checks[name] = "healthy"
		}

		record("database", h.db != nil, func(ctx context.Context) error { return h.db.PingContext(ctx) })
		record("redis", h.redis != nil, func(ctx context.Context) error { return h.redis.Ping(ctx).Err() })
		record("rabbitmq", h.queue != nil, func(ctx context.Context) error { return h.queue.HealthCheck(ctx) })

		response.Checks = checks
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func runCheck(ctx context.Context, check func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return check(ctx)
}
