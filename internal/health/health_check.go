package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/flashmart/seckill/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// HealthChecker provides health check endpoints
type HealthChecker struct {
	db     *pgxpool.Pool
	kv     store.KeyValueStore
	logger *zap.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db *pgxpool.Pool, kv store.KeyValueStore, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		db:     db,
		kv:     kv,
		logger: logger,
	}
}

// LivenessHandler handles liveness probe requests
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// ReadinessHandler handles readiness probe requests
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	// Check order database (PostgreSQL)
	if err := h.checkDatabase(ctx); err != nil {
		h.logger.Error("Database health check failed", zap.Error(err))
		checks["database"] = "unhealthy: " + err.Error()
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	// Check admission state store (Redis)
	if err := h.checkRedis(ctx); err != nil {
		h.logger.Error("Redis health check failed", zap.Error(err))
		checks["redis"] = "unhealthy: " + err.Error()
		allHealthy = false
	} else {
		checks["redis"] = "healthy"
	}

	status := HealthStatus{
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")

	if allHealthy {
		status.Status = "ready"
		w.WriteHeader(http.StatusOK)
	} else {
		status.Status = "not_ready"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(status)
}

// checkDatabase checks if the order database is healthy
func (h *HealthChecker) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return nil // Skip if not initialized
	}
	return h.db.Ping(ctx)
}

// checkRedis checks if the Redis store is healthy
func (h *HealthChecker) checkRedis(ctx context.Context) error {
	if h.kv == nil {
		return nil // Skip if not initialized
	}
	return h.kv.Ping(ctx)
}
