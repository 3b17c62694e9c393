package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"spillwatch-worker/internal/models"
	"spillwatch-worker/internal/observability"
	"spillwatch-worker/internal/services/messaging"
)

// Thresholds maps detection counts to severity tiers. Static configuration,
// checked highest tier first.
type Thresholds struct {
	Critical int
	High     int
	Medium   int
	Low      int
}

// DefaultThresholds matches the dashboard's historical tiering.
var DefaultThresholds = Thresholds{
	Critical: 10,
	High:     5,
	Medium:   2,
	Low:      1,
}

// maxHistory caps the in-memory alert history. Older entries are dropped
// first; a long-running worker must not grow without bound.
const maxHistory = 500

// Service classifies detection statistics into alerts, keeps the most
// recent maxHistory alerts and optionally publishes each one to NATS.
type Service struct {
	thresholds Thresholds
	messageSvc *messaging.Service
	subject    string

	mutex  sync.RWMutex
	alerts []models.Alert
}

func NewService(thresholds Thresholds, messageSvc *messaging.Service, subject string) *Service {
	return &Service{
		thresholds: thresholds,
		messageSvc: messageSvc,
		subject:    subject,
	}
}

// Classify maps frame statistics to a severity tier and message. Pure apart
// from the timestamp; does not touch the history.
func (s *Service) Classify(st models.FrameStatistics) models.Alert {
	detections := st.TotalDetections
	severity := models.AlertSeverityInfo
	switch {
	case detections >= s.thresholds.Critical:
		severity = models.AlertSeverityCritical
	case detections >= s.thresholds.High:
		severity = models.AlertSeverityHigh
	case detections >= s.thresholds.Medium:
		severity = models.AlertSeverityMedium
	case detections >= s.thresholds.Low:
		severity = models.AlertSeverityLow
	}

	return models.Alert{
		Timestamp:  time.Now(),
		Severity:   severity,
		Message:    alertMessage(severity, detections, st.CoveragePercentage),
		Detections: detections,
		Confidence: st.AvgConfidence,
		Coverage:   st.CoveragePercentage,
	}
}

// CheckDetection classifies the statistics, records the alert in the history
// and publishes it (best effort) to the alert subject.
func (s *Service) CheckDetection(st models.FrameStatistics) models.Alert {
	alert := s.Classify(st)

	s.mutex.Lock()
	s.alerts = append(s.alerts, alert)
	if len(s.alerts) > maxHistory {
		s.alerts = s.alerts[len(s.alerts)-maxHistory:]
	}
	s.mutex.Unlock()

	observability.AlertsRaised.WithLabelValues(string(alert.Severity)).Inc()

	if s.messageSvc != nil && s.messageSvc.IsConnected() {
		if err := s.messageSvc.Publish(s.subject, alert); err != nil {
			log.Warn().Err(err).Str("subject", s.subject).Msg("Failed to publish alert")
		}
	}

	return alert
}

func alertMessage(severity models.AlertSeverity, detections int, coverage float64) string {
	switch severity {
	case models.AlertSeverityCritical:
		return fmt.Sprintf("CRITICAL: %d oil spills detected! Immediate action required. Coverage: %.2f%%", detections, coverage)
	case models.AlertSeverityHigh:
		return fmt.Sprintf("HIGH ALERT: %d oil spills detected. Coverage: %.2f%%", detections, coverage)
	case models.AlertSeverityMedium:
		return fmt.Sprintf("MEDIUM: %d oil spills detected. Coverage: %.2f%%", detections, coverage)
	case models.AlertSeverityLow:
		return fmt.Sprintf("LOW: %d oil spill(s) detected. Coverage: %.2f%%", detections, coverage)
	default:
		return "No significant oil spills detected."
	}
}

// RecentAlerts returns up to limit of the newest alerts, oldest first.
func (s *Service) RecentAlerts(limit int) []models.Alert {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	start := 0
	if limit > 0 && len(s.alerts) > limit {
		start = len(s.alerts) - limit
	}

	out := make([]models.Alert, len(s.alerts)-start)
	copy(out, s.alerts[start:])
	return out
}

// Summary aggregates the history by severity.
func (s *Service) Summary() models.AlertSummary {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	summary := models.AlertSummary{
		Total:      len(s.alerts),
		BySeverity: make(map[models.AlertSeverity]int),
	}
	for _, a := range s.alerts {
		summary.BySeverity[a.Severity]++
	}
	return summary
}

// ClearAlerts drops the in-memory history.
func (s *Service) ClearAlerts() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.alerts = nil
}
