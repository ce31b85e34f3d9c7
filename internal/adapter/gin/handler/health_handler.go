package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"university-user-service/pkg/logger"
)

// PingFunc reports whether a dependency is reachable.
type PingFunc func(ctx context.Context) error

const pingTimeout = 2 * time.Second

// HealthHandler serves the liveness and index endpoints.
type HealthHandler struct {
	service string
	version string
	checks  map[string]PingFunc
	log     *zap.Logger
}

// NewHealthHandler creates a HealthHandler. checks maps a dependency name
// to its probe.
func NewHealthHandler(service, version string, checks map[string]PingFunc, log *zap.Logger) *HealthHandler {
	return &HealthHandler{service: service, version: version, checks: checks, log: log}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			logger.WithContext(ctx, h.log).Warn("health check failed", zap.String("check", name), zap.Error(err))
			results[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "up"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"service": h.service,
		"checks":  results,
	})
}

// Index handles GET /
func (h *HealthHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"service": h.service,
		"version": h.version,
		"endpoints": gin.H{
			"health":   "GET /health",
			"register": "POST /api/users/register",
			"login":    "POST /api/users/login",
			"logout":   "POST /api/users/logout",
			"me":       "GET /api/users/me",
			"list":     "GET /api/users?q=&page=&limit=",
			"get":      "GET /api/users/:id",
			"update":   "PUT /api/users/:id",
			"delete":   "DELETE /api/users/:id",
		},
	})
}
