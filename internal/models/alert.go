package models

import "time"

// AlertSeverity is the tier derived from the detection count of one frame,
// image or aggregated video run.
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

// Alert is derived and ephemeral; it is never persisted on its own, though
// alert payloads do end up embedded in activity-log rows.
type Alert struct {
	Timestamp  time.Time     `json:"timestamp"`
	Severity   AlertSeverity `json:"severity"`
	Message    string        `json:"message"`
	Detections int           `json:"detections"`
	Confidence float64       `json:"confidence"`
	Coverage   float64       `json:"coverage"`
}

// AlertSummary aggregates the in-memory alert history by severity.
type AlertSummary struct {
	Total      int                   `json:"total"`
	BySeverity map[AlertSeverity]int `json:"by_severity"`
}
