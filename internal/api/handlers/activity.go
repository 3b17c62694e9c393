package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"spillwatch-worker/internal/services"
)

// ActivityHandler exposes the activity log and alert history
type ActivityHandler struct {
	container *services.ServiceContainer
}

func NewActivityHandler(container *services.ServiceContainer) *ActivityHandler {
	return &ActivityHandler{container: container}
}

// List returns every activity log row, oldest first.
func (h *ActivityHandler) List(c *gin.Context) {
	entries := h.container.ActivityLog.Entries()
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// Alerts returns the newest alerts, bounded by the limit query parameter.
func (h *ActivityHandler) Alerts(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	alerts := h.container.Alerts.RecentAlerts(limit)
	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// AlertSummary aggregates the alert history by severity.
func (h *ActivityHandler) AlertSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.container.Alerts.Summary())
}

// ClearAlerts drops the in-memory alert history.
func (h *ActivityHandler) ClearAlerts(c *gin.Context) {
	h.container.Alerts.ClearAlerts()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
