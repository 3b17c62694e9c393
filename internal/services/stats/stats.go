// Package stats holds the pure reduction functions that turn detection
// lists and frame metadata into summary metrics. No I/O, no hidden state:
// identical inputs produce identical outputs.
package stats

import (
	"spillwatch-worker/internal/models"
)

// ComputeFrameStatistics reduces a detection list into per-frame aggregates.
// An empty list yields the sentinel defaults (avg/max 0.0, min 1.0) rather
// than NaN or an error.
func ComputeFrameStatistics(detections []models.Detection) models.FrameStatistics {
	s := models.FrameStatistics{
		MinConfidence: 1.0,
		BoundingBoxes: make([][4]float64, 0, len(detections)),
	}

	if len(detections) == 0 {
		return s
	}

	s.TotalDetections = len(detections)
	var sum float64
	for _, det := range detections {
		sum += det.Confidence
		if det.Confidence > s.MaxConfidence {
			s.MaxConfidence = det.Confidence
		}
		if det.Confidence < s.MinConfidence {
			s.MinConfidence = det.Confidence
		}
		s.BoundingBoxes = append(s.BoundingBoxes, det.BBox)
	}
	s.AvgConfidence = sum / float64(len(detections))

	return s
}

// CalculateSpillCoverage scores a detection list against the given image
// dimensions. Kept separate from ComputeFrameStatistics so the same list can
// be scored against different framing assumptions.
func CalculateSpillCoverage(detections []models.Detection, width, height int) models.CoverageStats {
	cs := models.CoverageStats{
		SpillCount: len(detections),
	}

	if len(detections) == 0 {
		return cs
	}

	for _, det := range detections {
		cs.TotalSpillArea += det.Area
		if det.Area > cs.LargestSpillArea {
			cs.LargestSpillArea = det.Area
		}
	}

	totalArea := float64(width) * float64(height)
	if totalArea > 0 {
		cs.CoveragePercentage = cs.TotalSpillArea / totalArea * 100
	}
	cs.AvgSpillSize = cs.TotalSpillArea / float64(len(detections))

	return cs
}

// AccumulateCamera folds one frame's statistics into a live-camera session
// aggregate. Used by the camera loop where frames arrive one at a time.
func AccumulateCamera(agg *models.CameraStatistics, frame models.FrameStatistics, detections []models.Detection) {
	prevTotal := agg.TotalDetections
	agg.FramesProcessed++
	agg.TotalDetections += frame.TotalDetections

	// Running confidence average weighted by detection count.
	if agg.TotalDetections > 0 {
		agg.AvgConfidence = (agg.AvgConfidence*float64(prevTotal) +
			frame.AvgConfidence*float64(frame.TotalDetections)) / float64(agg.TotalDetections)
	}

	fs := frame
	agg.LastFrameStats = &fs
	agg.LastDetections = detections
}
