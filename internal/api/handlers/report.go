package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spillwatch-worker/internal/logging"
	"spillwatch-worker/internal/models"
	"spillwatch-worker/internal/services"
	"spillwatch-worker/internal/services/report"
)

// ReportHandler renders detection results as downloadable reports
type ReportHandler struct {
	container *services.ServiceContainer
}

func NewReportHandler(container *services.ServiceContainer) *ReportHandler {
	return &ReportHandler{container: container}
}

// ReportRequest carries the detection result a report is rendered from.
type ReportRequest struct {
	Detections       []models.Detection     `json:"detections"`
	Statistics       models.FrameStatistics `json:"statistics"`
	Filename         string                 `json:"filename"`
	AssociatedAction string                 `json:"associated_action"`
	Metadata         map[string]string      `json:"metadata"`
}

// Generate renders a report in the requested format (txt, csv or json),
// stores a copy in the record tree and returns it inline.
func (h *ReportHandler) Generate(c *gin.Context) {
	format := c.Param("format")

	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report request: " + err.Error()})
		return
	}

	var (
		data        []byte
		contentType string
		reportType  string
		err         error
	)

	switch format {
	case "txt", "text":
		data = report.GenerateText(req.Detections, req.Statistics, report.Metadata(req.Metadata))
		contentType = "text/plain"
		reportType = "TXT"
	case "csv":
		data, err = report.GenerateCSV(req.Detections)
		contentType = "text/csv"
		reportType = "CSV"
	case "json":
		data, err = report.GenerateJSON(req.Detections, req.Statistics)
		contentType = "application/json"
		reportType = "JSON"
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported report format: " + format})
		return
	}
	if err != nil {
		logging.Error(c).Err(err).Str("format", format).Msg("Report generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report generation failed"})
		return
	}

	if _, err := h.container.ActivityLog.LogReportGeneration(reportType, data,
		req.Filename, req.AssociatedAction); err != nil {
		logging.Warn(c).Err(err).Msg("Failed to record report generation")
	}

	c.Data(http.StatusOK, contentType, data)
}
