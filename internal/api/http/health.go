package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Redis     string    `json:"redis"`
	Remote    string    `json:"remote"`
}

// ConnectionChecker checks that the remote profile store is reachable.
type ConnectionChecker interface {
	CheckConnection(ctx context.Context) bool
}

type HealthHandler struct {
	serviceName string
	version     string
	redis       *redis.Client
	remote      ConnectionChecker
}

func NewHealthHandler(serviceName, version string, rdb *redis.Client, remote ConnectionChecker) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		redis:       rdb,
		remote:      remote,
	}
}

// HealthCheck reports degraded, with 503, when Redis is down. An unreachable
// remote store only degrades sync, so the service stays healthy.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	redisStatus := "disabled"
	if h.redis != nil {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := h.redis.Ping(pingCtx).Err(); err != nil {
			redisStatus = "down"
		} else {
			redisStatus = "up"
		}
	}

	remoteStatus := "disabled"
	if h.remote != nil {
		if h.remote.CheckConnection(c.Request.Context()) {
			remoteStatus = "up"
		} else {
			remoteStatus = "down"
		}
	}

	status, code := "healthy", http.StatusOK
	if redisStatus == "down" {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Service:   h.serviceName,
		Version:   h.version,
		Redis:     redisStatus,
		Remote:    remoteStatus,
	})
}

func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.HealthCheck)
}
