package handlers

import (
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"spillwatch-worker/internal/config"
	"spillwatch-worker/internal/logging"
	"spillwatch-worker/internal/models"
	"spillwatch-worker/internal/services"
	"spillwatch-worker/internal/services/activitylog"
	"spillwatch-worker/internal/services/pipeline"
)

// DetectHandler handles still-image and video detection requests
type DetectHandler struct {
	config    *config.Config
	container *services.ServiceContainer
}

func NewDetectHandler(cfg *config.Config, container *services.ServiceContainer) *DetectHandler {
	return &DetectHandler{
		config:    cfg,
		container: container,
	}
}

func peakFrameStats(st *models.VideoStatistics) models.FrameStatistics {
	return models.FrameStatistics{TotalDetections: st.MaxDetectionsInFrame}
}

func (h *DetectHandler) confidence(c *gin.Context) float64 {
	raw := c.PostForm("confidence")
	if raw == "" {
		return h.config.DefaultConfidence
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 || v > 1 {
		return h.config.DefaultConfidence
	}
	return v
}

// Image runs detection over one uploaded image and returns the annotated
// result inline.
func (h *DetectHandler) Image(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded image"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded image"})
		return
	}

	img, err := pipeline.DecodeImage(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uploaded data is not a decodable image"})
		return
	}
	defer img.Close()

	result, err := h.container.Pipeline.ProcessImage(img, h.confidence(c))
	if err != nil {
		logging.Error(c).Err(err).Msg("Image detection failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "detection failed"})
		return
	}
	defer result.Annotated.Close()

	annotated, err := pipeline.EncodeJPEG(result.Annotated)
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to encode annotated image")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode annotated image"})
		return
	}

	alert := h.container.Alerts.CheckDetection(result.Stats)

	// Record keeping must never fail the detection response.
	if _, err := h.container.ActivityLog.LogImageDetection(
		activitylog.Artifact{Data: data}, annotated,
		result.Detections, &result.Stats, fileHeader.Filename); err != nil {
		logging.Warn(c).Err(err).Msg("Failed to record image detection")
	}

	c.JSON(http.StatusOK, gin.H{
		"detections":      result.Detections,
		"statistics":      result.Stats,
		"alert":           alert,
		"annotated_image": base64.StdEncoding.EncodeToString(annotated),
	})
}

// spoolUpload writes the upload to a uniquely named temporary file, keeping
// the original extension so the container decoder can sniff the format.
// Concurrent uploads of the same filename never collide. The caller removes
// the file.
func spoolUpload(c *gin.Context, fileHeader *multipart.FileHeader) (string, error) {
	tmp, err := os.CreateTemp("", "upload_*"+filepath.Ext(fileHeader.Filename))
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := c.SaveUploadedFile(fileHeader, tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return tmpPath, nil
}

// Video runs detection over an uploaded video. The upload is spooled to a
// temporary file because the decoder needs a seekable container.
func (h *DetectHandler) Video(c *gin.Context) {
	fileHeader, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video file is required"})
		return
	}

	tmpPath, err := spoolUpload(c, fileHeader)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store uploaded video"})
		return
	}
	defer os.Remove(tmpPath)

	retainFrames, _ := strconv.ParseBool(c.PostForm("retain_frames"))

	outputPath, st, err := h.container.Pipeline.ProcessVideo(tmpPath, "", pipeline.VideoOptions{
		ConfThreshold: h.confidence(c),
		RetainFrames:  retainFrames,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrSourceOpen) {
			status = http.StatusBadRequest
		}
		logging.Error(c).Err(err).Str("filename", fileHeader.Filename).Msg("Video detection failed")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	// Alert severity follows the busiest frame of the video.
	alert := h.container.Alerts.CheckDetection(peakFrameStats(st))

	if _, err := h.container.ActivityLog.LogVideoDetection(
		activitylog.Artifact{Path: tmpPath}, outputPath, st, fileHeader.Filename); err != nil {
		logging.Warn(c).Err(err).Msg("Failed to record video detection")
	}

	c.JSON(http.StatusOK, gin.H{
		"output_path": outputPath,
		"statistics":  st,
		"alert":       alert,
	})
}
