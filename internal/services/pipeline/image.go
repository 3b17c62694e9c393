package pipeline

import (
	"fmt"

	"gocv.io/x/gocv"

	"spillwatch-worker/internal/models"
	"spillwatch-worker/internal/observability"
	"spillwatch-worker/internal/services/stats"
)

// ImageResult is one still-image detection run. The caller owns Annotated
// and must Close it.
type ImageResult struct {
	Annotated  gocv.Mat
	Detections []models.Detection
	Stats      models.FrameStatistics
}

// ProcessImage runs one inference over a still image and reduces the result
// into canonical detections plus frame statistics. No detections is a valid
// outcome, not an error: the statistics carry their sentinel defaults.
func (s *Service) ProcessImage(img gocv.Mat, confThreshold float64) (*ImageResult, error) {
	annotated, detections, err := s.detector.Infer(img, confThreshold)
	if err != nil {
		return nil, fmt.Errorf("image inference: %w", err)
	}

	frameStats := stats.ComputeFrameStatistics(detections)
	frameStats.CoverageStats = stats.CalculateSpillCoverage(detections, img.Cols(), img.Rows())

	observability.FramesProcessed.WithLabelValues("image").Inc()
	observability.SpillsDetected.WithLabelValues("image").Add(float64(len(detections)))

	return &ImageResult{
		Annotated:  annotated,
		Detections: detections,
		Stats:      frameStats,
	}, nil
}

// DecodeImage decodes raw image bytes (JPEG/PNG) into a BGR Mat.
func DecodeImage(data []byte) (gocv.Mat, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("decode image: %w", err)
	}
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("decode image: empty result")
	}
	return img, nil
}

// EncodeJPEG serializes a BGR Mat to JPEG bytes.
func EncodeJPEG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
