package handlers

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"spillwatch-worker/internal/config"
	"spillwatch-worker/internal/services"
)

// SystemHandler exposes worker and detector information
type SystemHandler struct {
	config    *config.Config
	container *services.ServiceContainer
}

func NewSystemHandler(cfg *config.Config, container *services.ServiceContainer) *SystemHandler {
	return &SystemHandler{
		config:    cfg,
		container: container,
	}
}

// Info reports static worker and model configuration.
func (h *SystemHandler) Info(c *gin.Context) {
	inputW, inputH := h.container.Detector.InputSize()

	c.JSON(http.StatusOK, gin.H{
		"worker_id":   h.config.WorkerID,
		"version":     h.config.Version,
		"environment": h.config.Environment,
		"model": gin.H{
			"path":       h.config.ModelPath,
			"input_size": []int{inputW, inputH},
			"classes":    h.container.Detector.Names(),
			"device":     h.container.Detector.Device(),
		},
		"nats_connected": h.container.Messaging.IsConnected(),
		"record_dir":     h.container.ActivityLog.BaseDir(),
	})
}

// Stats reports runtime resource usage.
func (h *SystemHandler) Stats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(http.StatusOK, gin.H{
		"goroutines":      runtime.NumGoroutine(),
		"memory_alloc_mb": m.Alloc / 1024 / 1024,
		"memory_sys_mb":   m.Sys / 1024 / 1024,
		"gc_runs":         m.NumGC,
		"num_cpu":         runtime.NumCPU(),
	})
}
