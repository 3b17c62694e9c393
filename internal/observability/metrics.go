package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spillwatch",
		Name:      "frames_processed_total",
		Help:      "Total number of frames run through the detection pipeline",
	}, []string{"source"})

	SpillsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spillwatch",
		Name:      "spills_detected_total",
		Help:      "Total number of spill detections emitted",
	}, []string{"source"})

	InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "spillwatch",
		Name:      "inference_duration_seconds",
		Help:      "Duration of a single model inference call",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spillwatch",
		Name:      "alerts_raised_total",
		Help:      "Alerts raised by severity tier",
	}, []string{"severity"})

	ActivityLogWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spillwatch",
		Name:      "activity_log_writes_total",
		Help:      "Activity log append attempts by outcome",
	}, []string{"outcome"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "spillwatch",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket dashboard clients",
	})
)
