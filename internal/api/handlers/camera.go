package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"spillwatch-worker/internal/api/ws"
	"spillwatch-worker/internal/config"
	"spillwatch-worker/internal/logging"
	"spillwatch-worker/internal/models"
	"spillwatch-worker/internal/services"
	"spillwatch-worker/internal/services/pipeline"
)

// CameraHandler manages the live camera detection session
type CameraHandler struct {
	config    *config.Config
	container *services.ServiceContainer
	hub       *ws.Hub
}

func NewCameraHandler(cfg *config.Config, container *services.ServiceContainer, hub *ws.Hub) *CameraHandler {
	return &CameraHandler{
		config:    cfg,
		container: container,
		hub:       hub,
	}
}

// Start opens the capture device and begins streaming statistics to
// websocket subscribers.
func (h *CameraHandler) Start(c *gin.Context) {
	confThreshold := h.config.DefaultConfidence
	if raw := c.PostForm("confidence"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 && v <= 1 {
			confThreshold = v
		}
	}

	session, err := h.container.Pipeline.StartCamera(confThreshold, func(st models.CameraStatistics) {
		h.hub.Broadcast(st)

		if st.LastFrameStats != nil && st.LastFrameStats.TotalDetections > 0 {
			h.container.Alerts.CheckDetection(*st.LastFrameStats)
		}
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrCameraActive) {
			c.JSON(http.StatusConflict, gin.H{"error": "a camera session is already active"})
			return
		}
		logging.Error(c).Err(err).Msg("Failed to start camera session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":     session.ID,
		"started_at":     session.StartedAt,
		"conf_threshold": session.ConfThreshold,
	})
}

// Stop ends the active session and records its final aggregate.
func (h *CameraHandler) Stop(c *gin.Context) {
	session, err := h.container.Pipeline.StopCamera()
	if err != nil {
		if errors.Is(err, pipeline.ErrNoCameraSession) {
			c.JSON(http.StatusConflict, gin.H{"error": "no camera session is active"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	st := session.Stats()
	if _, err := h.container.ActivityLog.LogCameraDetection(st.LastDetections, &st, st.FramesProcessed); err != nil {
		logging.Warn(c).Err(err).Msg("Failed to record camera session")
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"statistics": st,
	})
}

// Status reports whether a session is running and its current aggregate.
func (h *CameraHandler) Status(c *gin.Context) {
	session := h.container.Pipeline.ActiveCamera()
	if session == nil {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active":     true,
		"session_id": session.ID,
		"started_at": session.StartedAt,
		"statistics": session.Stats(),
	})
}

// Stream upgrades to a websocket subscription of live camera statistics.
func (h *CameraHandler) Stream(c *gin.Context) {
	h.hub.Serve(c.Writer, c.Request)
}
