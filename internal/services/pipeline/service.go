// Package pipeline drives the detector over still images, video containers
// and the live camera device, and owns the statistics each run accumulates.
package pipeline

import (
	"sync"

	"github.com/rs/zerolog"

	"spillwatch-worker/internal/config"
	"spillwatch-worker/internal/logging"
)

// Service is the process-held session context for all detection runs: the
// detector handle loaded once at startup plus the single live-camera slot.
// No package-level mutable state.
type Service struct {
	cfg      *config.Config
	detector Detector
	logger   zerolog.Logger

	cameraMutex   sync.Mutex
	cameraSession *CameraSession
}

func NewService(cfg *config.Config, det Detector) *Service {
	return &Service{
		cfg:      cfg,
		detector: det,
		logger:   logging.NewServiceLogger(cfg, "pipeline"),
	}
}
