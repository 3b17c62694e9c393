package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"spillwatch-worker/internal/config"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	config    *config.Config
	startTime time.Time
}

// HealthResponse is the health check payload
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	WorkerID    string `json:"worker_id"`
	Environment string `json:"environment"`
	Uptime      string `json:"uptime"`
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{
		config:    cfg,
		startTime: time.Now(),
	}
}

func (h *HealthHandler) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		Version:     h.config.Version,
		WorkerID:    h.config.WorkerID,
		Environment: h.config.Environment,
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
	})
}
