package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is a dependency whose reachability is reported by the health endpoints
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	database Pinger
	cache    Pinger
	storage  Pinger
	jobs     func() map[string]interface{}
	version  string
	started  time.Time
}

// NewHealthHandlers creates a new health handlers instance. jobs may be nil.
func NewHealthHandlers(database, cache, storage Pinger, jobs func() map[string]interface{}, version string) *HealthHandlers {
	return &HealthHandlers{
		database: database,
		cache:    cache,
		storage:  storage,
		jobs:     jobs,
		version:  version,
		started:  time.Now(),
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status     string                 `json:"status"`
	Timestamp  string                 `json:"timestamp"`
	Services   map[string]string      `json:"services"`
	Uptime     string                 `json:"uptime"`
	Version    string                 `json:"version"`
	Goroutines int                    `json:"goroutines"`
	Jobs       map[string]interface{} `json:"jobs,omitempty"`
}

// HealthCheck reports each dependency; a failing one degrades the status
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	health := &HealthStatus{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Services:   make(map[string]string),
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Version:    h.version,
		Goroutines: runtime.NumGoroutine(),
	}
	if h.jobs != nil {
		health.Jobs = h.jobs()
	}

	for name, dep := range map[string]Pinger{"database": h.database, "redis": h.cache, "storage": h.storage} {
		if dep == nil {
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			health.Services[name] = "unhealthy"
			health.Status = "degraded"
		} else {
			health.Services[name] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusPartialContent
	}
	return c.JSON(statusCode, health)
}

// ReadinessCheck requires the database; the cache is optional for serving
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.database.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "Critical services unavailable",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ready",
		"message": "All systems operational",
	})
}
