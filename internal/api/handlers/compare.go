package handlers

import (
	"encoding/base64"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"spillwatch-worker/internal/config"
	"spillwatch-worker/internal/logging"
	"spillwatch-worker/internal/models"
	"spillwatch-worker/internal/services"
	"spillwatch-worker/internal/services/pipeline"
)

// CompareHandler runs side-by-side detection comparisons
type CompareHandler struct {
	config    *config.Config
	container *services.ServiceContainer
}

func NewCompareHandler(cfg *config.Config, container *services.ServiceContainer) *CompareHandler {
	return &CompareHandler{
		config:    cfg,
		container: container,
	}
}

type comparisonItem struct {
	Filename       string                 `json:"filename"`
	Detections     []models.Detection     `json:"detections"`
	Statistics     models.FrameStatistics `json:"statistics"`
	AnnotatedImage string                 `json:"annotated_image,omitempty"`
}

// processUpload decodes one multipart image and runs a single detection pass.
func (h *CompareHandler) processUpload(fileHeader *multipart.FileHeader, confThreshold float64, includeImage bool) (*comparisonItem, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	img, err := pipeline.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	result, err := h.container.Pipeline.ProcessImage(img, confThreshold)
	if err != nil {
		return nil, err
	}
	defer result.Annotated.Close()

	item := &comparisonItem{
		Filename:   fileHeader.Filename,
		Detections: result.Detections,
		Statistics: result.Stats,
	}

	if includeImage {
		annotated, err := pipeline.EncodeJPEG(result.Annotated)
		if err != nil {
			return nil, err
		}
		item.AnnotatedImage = base64.StdEncoding.EncodeToString(annotated)
	}

	return item, nil
}

// BeforeAfter compares two images of the same scene and reports the change
// in spill count and coverage.
func (h *CompareHandler) BeforeAfter(c *gin.Context) {
	beforeHeader, err := c.FormFile("before")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "before image is required"})
		return
	}
	afterHeader, err := c.FormFile("after")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "after image is required"})
		return
	}

	confThreshold := h.formConfidence(c)

	before, err := h.processUpload(beforeHeader, confThreshold, true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "before image: " + err.Error()})
		return
	}
	after, err := h.processUpload(afterHeader, confThreshold, true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "after image: " + err.Error()})
		return
	}

	results := gin.H{
		"before":           before,
		"after":            after,
		"detections_delta": after.Statistics.TotalDetections - before.Statistics.TotalDetections,
		"coverage_delta":   after.Statistics.CoveragePercentage - before.Statistics.CoveragePercentage,
	}

	if _, err := h.container.ActivityLog.LogComparison("Before/After",
		[]string{beforeHeader.Filename, afterHeader.Filename}, results); err != nil {
		logging.Warn(c).Err(err).Msg("Failed to record comparison")
	}

	c.JSON(http.StatusOK, results)
}

// Images runs detection over a batch of uploads and returns side-by-side
// statistics.
func (h *CompareHandler) Images(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form is required"})
		return
	}

	files := form.File["images"]
	if len(files) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least two images are required"})
		return
	}

	confThreshold := h.formConfidence(c)

	items := make([]*comparisonItem, 0, len(files))
	names := make([]string, 0, len(files))
	for _, fileHeader := range files {
		item, err := h.processUpload(fileHeader, confThreshold, false)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fileHeader.Filename + ": " + err.Error()})
			return
		}
		items = append(items, item)
		names = append(names, fileHeader.Filename)
	}

	results := gin.H{"images": items}

	if _, err := h.container.ActivityLog.LogComparison("Multiple Images", names, results); err != nil {
		logging.Warn(c).Err(err).Msg("Failed to record comparison")
	}

	c.JSON(http.StatusOK, results)
}

// Thresholds reruns detection over one image at a sweep of confidence
// thresholds.
func (h *CompareHandler) Thresholds(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}

	thresholds := []float64{0.25, 0.5, 0.75}
	if raw := c.PostForm("thresholds"); raw != "" {
		parsed := []float64{}
		for _, part := range strings.Split(raw, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil || v <= 0 || v > 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid threshold: " + part})
				return
			}
			parsed = append(parsed, v)
		}
		thresholds = parsed
	}

	sweep := make([]gin.H, 0, len(thresholds))
	for _, t := range thresholds {
		item, err := h.processUpload(fileHeader, t, false)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sweep = append(sweep, gin.H{
			"threshold":  t,
			"detections": item.Statistics.TotalDetections,
			"statistics": item.Statistics,
		})
	}

	results := gin.H{"filename": fileHeader.Filename, "thresholds": sweep}

	if _, err := h.container.ActivityLog.LogComparison("Threshold Sweep",
		[]string{fileHeader.Filename}, results); err != nil {
		logging.Warn(c).Err(err).Msg("Failed to record comparison")
	}

	c.JSON(http.StatusOK, results)
}

func (h *CompareHandler) formConfidence(c *gin.Context) float64 {
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
