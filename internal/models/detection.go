package models

// Detection represents one located spill instance returned by the detector.
// Coordinates are pixel-space, axis-aligned, x1<x2 and y1<y2.
type Detection struct {
	ClassID    int        `json:"class"`
	ClassName  string     `json:"class_name"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
	Area       float64    `json:"area"`
}

// NewDetection builds a canonical detection record, deriving the box area.
func NewDetection(classID int, className string, confidence float64, bbox [4]float64) Detection {
	return Detection{
		ClassID:    classID,
		ClassName:  className,
		Confidence: confidence,
		BBox:       bbox,
		Area:       (bbox[2] - bbox[0]) * (bbox[3] - bbox[1]),
	}
}

// CoverageStats describes how much of an image the detected regions cover.
type CoverageStats struct {
	TotalSpillArea     float64 `json:"total_spill_area"`
	CoveragePercentage float64 `json:"coverage_percentage"`
	SpillCount         int     `json:"spill_count"`
	AvgSpillSize       float64 `json:"avg_spill_size"`
	LargestSpillArea   float64 `json:"largest_spill_area"`
}

// FrameStatistics is the per-image (or per-frame) aggregate. All fields are
// recomputable from the detection list plus frame dimensions.
//
// When there are no detections the confidence fields keep their historical
// sentinels: avg/max 0.0 and min 1.0. A zero average therefore means "no
// detections", never "one detection with zero confidence".
type FrameStatistics struct {
	TotalDetections int          `json:"total_detections"`
	AvgConfidence   float64      `json:"avg_confidence"`
	MaxConfidence   float64      `json:"max_confidence"`
	MinConfidence   float64      `json:"min_confidence"`
	BoundingBoxes   [][4]float64 `json:"bounding_boxes"`

	CoverageStats
}

// HistoryEntry is one point of a video's detection time series, index-aligned
// with decode order.
type HistoryEntry struct {
	Frame      int `json:"frame"`
	Detections int `json:"detections"`
}

// FrameDetail is the optional per-frame record retained when a caller asks
// the video pipeline to store frames.
type FrameDetail struct {
	FrameNumber     int         `json:"frame_number"`
	DetectionsCount int         `json:"detections_count"`
	AvgConfidence   float64     `json:"avg_confidence"`
	Detections      []Detection `json:"detections"`
	HasDetection    bool        `json:"has_detection"`
}

// VideoStatistics accumulates across a video's frames. One instance per
// processing invocation, built frame by frame, immutable once the loop ends.
type VideoStatistics struct {
	TotalFrames           int            `json:"total_frames"`
	ProcessedFrames       int            `json:"processed_frames"`
	FramesWithDetections  int            `json:"frames_with_detections"`
	TotalDetections       int            `json:"total_detections"`
	AvgDetectionsPerFrame float64        `json:"avg_detections_per_frame"`
	MaxDetectionsInFrame  int            `json:"max_detections_in_frame"`
	DetectionHistory      []HistoryEntry `json:"detection_history"`
	FrameDetails          []FrameDetail  `json:"frame_details,omitempty"`

	// Retained only on request; O(frames x resolution) memory. Excluded
	// from every serialized form.
	OriginalFrames  [][]byte `json:"-"`
	AnnotatedFrames [][]byte `json:"-"`
}

// CameraStatistics is the running aggregate of a live camera session.
type CameraStatistics struct {
	FramesProcessed int              `json:"frames_processed"`
	TotalDetections int              `json:"total_detections"`
	AvgConfidence   float64          `json:"avg_confidence"`
	LastFrameStats  *FrameStatistics `json:"last_frame_stats,omitempty"`
	LastDetections  []Detection      `json:"last_detections,omitempty"`
}
