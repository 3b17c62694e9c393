package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"spillwatch-worker/internal/models"
	"spillwatch-worker/internal/observability"
	"spillwatch-worker/internal/services/stats"
)

// FrameObserver receives each processed camera frame's aggregate statistics.
// Used by the API layer to stream live updates to dashboard clients.
type FrameObserver func(st models.CameraStatistics)

// CameraSession is one live detection run over the capture device. It ends
// only on Stop: cancellation is cooperative, checked at the top of each
// loop iteration, never mid-inference.
type CameraSession struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	ConfThreshold float64   `json:"conf_threshold"`

	stopCh chan struct{}
	doneCh chan struct{}

	mutex sync.RWMutex
	stats models.CameraStatistics
}

// Stats returns a snapshot of the running aggregate.
func (cs *CameraSession) Stats() models.CameraStatistics {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	return cs.stats
}

// StartCamera opens the capture device and starts the frame loop. Only one
// session may be active at a time.
func (s *Service) StartCamera(confThreshold float64, observer FrameObserver) (*CameraSession, error) {
	s.cameraMutex.Lock()
	defer s.cameraMutex.Unlock()

	if s.cameraSession != nil {
		return nil, ErrCameraActive
	}

	src, err := OpenCameraSource(s.cfg.CameraDeviceID)
	if err != nil {
		return nil, err
	}

	session := &CameraSession{
		ID:            uuid.NewString(),
		StartedAt:     time.Now(),
		ConfThreshold: confThreshold,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	s.cameraSession = session

	s.logger.Info().
		Str("session_id", session.ID).
		Int("device_id", s.cfg.CameraDeviceID).
		Float64("conf_threshold", confThreshold).
		Msg("Camera session started")

	go s.runCameraLoop(session, src, observer)

	return session, nil
}

// runCameraLoop reads, infers and aggregates until the stop signal. The
// fixed sleep between frames bounds capture at roughly 10 fps.
func (s *Service) runCameraLoop(session *CameraSession, src FrameSource, observer FrameObserver) {
	// Frees the slot when the loop ends on its own, e.g. after repeated read
	// failures. A no-op when StopCamera already claimed the session.
	defer s.releaseCameraSession(session)
	defer close(session.doneCh)
	defer src.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	consecutiveErrors := 0
	const maxConsecutiveErrors = 10

	for {
		select {
		case <-session.stopCh:
			s.logger.Info().Str("session_id", session.ID).Msg("Camera session stopping")
			return
		default:
		}

		if ok := src.Read(&frame); !ok || frame.Empty() {
			consecutiveErrors++
			if consecutiveErrors >= maxConsecutiveErrors {
				s.logger.Warn().
					Str("session_id", session.ID).
					Int("consecutive_errors", consecutiveErrors).
					Msg("Camera read failing repeatedly, ending session")
				return
			}
			time.Sleep(s.cfg.CameraFrameDelay)
			continue
		}
		consecutiveErrors = 0

		annotated, detections, err := s.detector.Infer(frame, session.ConfThreshold)
		if err != nil {
			s.logger.Warn().Err(err).Str("session_id", session.ID).Msg("Camera frame inference failed")
			time.Sleep(s.cfg.CameraFrameDelay)
			continue
		}
		annotated.Close()

		frameStats := stats.ComputeFrameStatistics(detections)
		frameStats.CoverageStats = stats.CalculateSpillCoverage(detections, frame.Cols(), frame.Rows())

		session.mutex.Lock()
		stats.AccumulateCamera(&session.stats, frameStats, detections)
		snapshot := session.stats
		session.mutex.Unlock()

		observability.FramesProcessed.WithLabelValues("camera").Inc()
		observability.SpillsDetected.WithLabelValues("camera").Add(float64(len(detections)))

		if observer != nil {
			observer(snapshot)
		}

		if s.cfg.CameraLogEvery > 0 && snapshot.FramesProcessed%s.cfg.CameraLogEvery == 0 {
			s.logger.Debug().
				Str("session_id", session.ID).
				Int("frames_processed", snapshot.FramesProcessed).
				Int("total_detections", snapshot.TotalDetections).
				Msg("Camera session progress")
		}

		time.Sleep(s.cfg.CameraFrameDelay)
	}
}

// releaseCameraSession clears the slot if the given session still owns it,
// so a self-terminated loop does not block future StartCamera calls.
func (s *Service) releaseCameraSession(session *CameraSession) {
	s.cameraMutex.Lock()
	if s.cameraSession == session {
		s.cameraSession = nil
	}
	s.cameraMutex.Unlock()
}

// StopCamera signals the active session, waits for the loop to drain and
// returns the final aggregate statistics.
func (s *Service) StopCamera() (*CameraSession, error) {
	s.cameraMutex.Lock()
	session := s.cameraSession
	s.cameraSession = nil
	s.cameraMutex.Unlock()

	if session == nil {
		return nil, ErrNoCameraSession
	}

	close(session.stopCh)
	<-session.doneCh

	s.logger.Info().
		Str("session_id", session.ID).
		Int("frames_processed", session.Stats().FramesProcessed).
		Msg("Camera session stopped")

	return session, nil
}

// ActiveCamera returns the running session, or nil.
func (s *Service) ActiveCamera() *CameraSession {
	s.cameraMutex.Lock()
	defer s.cameraMutex.Unlock()
	return s.cameraSession
}

// Shutdown stops any live camera session.
func (s *Service) Shutdown() {
	if _, err := s.StopCamera(); err != nil && err != ErrNoCameraSession {
		s.logger.Warn().Err(err).Msg("Failed to stop camera session during shutdown")
	}
}
