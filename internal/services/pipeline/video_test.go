package pipeline

import (
	"errors"
	"math"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"spillwatch-worker/internal/config"
	"spillwatch-worker/internal/models"
)

// fakeSource yields copies of one synthetic frame. stopAfter < frames
// simulates a mid-stream decode failure.
type fakeSource struct {
	template   gocv.Mat
	frames     int
	stopAfter  int
	read       int
	propsTotal int
	closed     bool
}

func newFakeSource(t *testing.T, frames, reportedTotal int) *fakeSource {
	t.Helper()

	template := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { template.Close() })

	src := &fakeSource{template: template, frames: frames, stopAfter: frames}
	src.propsTotal = reportedTotal
	return src
}

func (s *fakeSource) Read(dst *gocv.Mat) bool {
	if s.read >= s.stopAfter || s.read >= s.frames {
		return false
	}
	s.template.CopyTo(dst)
	s.read++
	return true
}

func (s *fakeSource) Properties() SourceProperties {
	return SourceProperties{FPS: 30, Width: 100, Height: 100, TotalFrames: s.propsTotal}
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// fakeSink counts writes and optionally fails.
type fakeSink struct {
	writes int
	err    error
}

func (s *fakeSink) Write(frame gocv.Mat) error {
	if s.err != nil {
		return s.err
	}
	s.writes++
	return nil
}

func (s *fakeSink) Close() error { return nil }

// fakeDetector returns scripted detections keyed by frame index.
type fakeDetector struct {
	frame  int
	script func(frame int) []models.Detection
	errAt  int
}

func newFakeDetector(script func(frame int) []models.Detection) *fakeDetector {
	return &fakeDetector{script: script, errAt: -1}
}

func (d *fakeDetector) Infer(img gocv.Mat, confThreshold float64) (gocv.Mat, []models.Detection, error) {
	frame := d.frame
	d.frame++

	if d.errAt >= 0 && frame == d.errAt {
		return gocv.NewMat(), nil, errors.New("inference backend unavailable")
	}

	var detections []models.Detection
	if d.script != nil {
		detections = d.script(frame)
	}
	return img.Clone(), detections, nil
}

func newTestService(retainMax int) *Service {
	cfg := &config.Config{RetainFramesMax: retainMax}
	return &Service{cfg: cfg}
}

func spillAt(frame int) models.Detection {
	return models.NewDetection(0, "Oil Spill", 0.9, [4]float64{0, 0, 50, 50})
}

func TestProcessStreamAggregation(t *testing.T) {
	src := newFakeSource(t, 50, 50)
	sink := &fakeSink{}
	det := newFakeDetector(func(frame int) []models.Detection {
		if frame >= 10 && frame <= 15 {
			return []models.Detection{spillAt(frame)}
		}
		return nil
	})
	svc := newTestService(0)
	svc.detector = det

	st, err := svc.processStream(src, sink, VideoOptions{ConfThreshold: 0.25})
	if err != nil {
		t.Fatalf("processStream failed: %v", err)
	}

	if st.ProcessedFrames != 50 {
		t.Fatalf("expected 50 processed frames, got %d", st.ProcessedFrames)
	}
	if st.FramesWithDetections != 6 {
		t.Fatalf("expected 6 frames with detections, got %d", st.FramesWithDetections)
	}
	if st.TotalDetections != 6 {
		t.Fatalf("expected 6 total detections, got %d", st.TotalDetections)
	}
	if st.MaxDetectionsInFrame != 1 {
		t.Fatalf("expected max 1 detection per frame, got %d", st.MaxDetectionsInFrame)
	}
	if math.Abs(st.AvgDetectionsPerFrame-0.12) > 1e-9 {
		t.Fatalf("expected avg 0.12 detections per frame, got %v", st.AvgDetectionsPerFrame)
	}
	if len(st.DetectionHistory) != 50 {
		t.Fatalf("expected 50 history entries, got %d", len(st.DetectionHistory))
	}
	if st.DetectionHistory[9].Detections != 0 || st.DetectionHistory[10].Detections != 1 {
		t.Fatalf("history misaligned: frame9=%d frame10=%d",
			st.DetectionHistory[9].Detections, st.DetectionHistory[10].Detections)
	}
	if sink.writes != 50 {
		t.Fatalf("expected 50 frames written, got %d", sink.writes)
	}
	// Frame retention was not requested.
	if st.FrameDetails != nil || st.OriginalFrames != nil {
		t.Fatalf("frames retained without opt-in")
	}
}

func TestProcessStreamPartialOnDecodeStop(t *testing.T) {
	src := newFakeSource(t, 50, 50)
	src.stopAfter = 20 // decode fails at frame 20

	sink := &fakeSink{}
	det := newFakeDetector(func(frame int) []models.Detection {
		return []models.Detection{spillAt(frame)}
	})
	svc := newTestService(0)
	svc.detector = det

	var fractions []float64
	st, err := svc.processStream(src, sink, VideoOptions{
		ConfThreshold: 0.25,
		Progress:      func(f float64) { fractions = append(fractions, f) },
	})
	if err != nil {
		t.Fatalf("partial decode must not be an error: %v", err)
	}

	if st.ProcessedFrames != 20 {
		t.Fatalf("expected 20 processed frames, got %d", st.ProcessedFrames)
	}
	if st.TotalFrames != 50 {
		t.Fatalf("reported total must survive: got %d", st.TotalFrames)
	}
	if st.TotalDetections != 20 {
		t.Fatalf("expected 20 detections before the stop, got %d", st.TotalDetections)
	}
	if math.Abs(st.AvgDetectionsPerFrame-1.0) > 1e-9 {
		t.Fatalf("avg must be over processed frames only, got %v", st.AvgDetectionsPerFrame)
	}
	if sink.writes != 20 {
		t.Fatalf("expected 20 frames written, got %d", sink.writes)
	}
	if len(fractions) == 0 || fractions[len(fractions)-1] != 1.0 {
		t.Fatalf("progress must finish at 1.0, got %v", fractions)
	}
}

func TestProcessStreamInferenceError(t *testing.T) {
	src := newFakeSource(t, 10, 10)
	sink := &fakeSink{}
	det := newFakeDetector(nil)
	det.errAt = 3

	svc := newTestService(0)
	svc.detector = det

	_, err := svc.processStream(src, sink, VideoOptions{ConfThreshold: 0.25})
	if err == nil {
		t.Fatal("expected inference error to propagate")
	}
	if sink.writes != 3 {
		t.Fatalf("expected 3 frames written before the failure, got %d", sink.writes)
	}
}

func TestProcessStreamSinkError(t *testing.T) {
	src := newFakeSource(t, 10, 10)
	sink := &fakeSink{err: errors.New("writer closed")}
	svc := newTestService(0)
	svc.detector = newFakeDetector(nil)

	_, err := svc.processStream(src, sink, VideoOptions{ConfThreshold: 0.25})
	if err == nil {
		t.Fatal("expected encode error to propagate")
	}
}

func TestProcessStreamRetainFramesCapped(t *testing.T) {
	src := newFakeSource(t, 5, 5)
	sink := &fakeSink{}
	det := newFakeDetector(func(frame int) []models.Detection {
		return []models.Detection{spillAt(frame)}
	})
	svc := newTestService(2)
	svc.detector = det

	st, err := svc.processStream(src, sink, VideoOptions{ConfThreshold: 0.25, RetainFrames: true})
	if err != nil {
		t.Fatalf("processStream failed: %v", err)
	}

	if len(st.FrameDetails) != 2 {
		t.Fatalf("retention cap ignored: %d details", len(st.FrameDetails))
	}
	if len(st.OriginalFrames) != 2 || len(st.AnnotatedFrames) != 2 {
		t.Fatalf("retained frame buffers not capped: %d/%d",
			len(st.OriginalFrames), len(st.AnnotatedFrames))
	}
	if !st.FrameDetails[0].HasDetection || st.FrameDetails[0].DetectionsCount != 1 {
		t.Fatalf("frame detail wrong: %+v", st.FrameDetails[0])
	}
	// All frames are still processed even past the retention cap.
	if st.ProcessedFrames != 5 {
		t.Fatalf("expected 5 processed frames, got %d", st.ProcessedFrames)
	}
}

func TestProcessStreamRetainedBuffersStayAligned(t *testing.T) {
	// Each frame makes two encode calls: original first, annotated second.
	// Failing the third call hits frame 1's original buffer.
	restore := encodeRetained
	calls := 0
	encodeRetained = func(img gocv.Mat) ([]byte, error) {
		calls++
		if calls == 3 {
			return nil, errors.New("encoder rejected frame")
		}
		return []byte("jpeg"), nil
	}
	t.Cleanup(func() { encodeRetained = restore })

	src := newFakeSource(t, 4, 4)
	sink := &fakeSink{}
	svc := newTestService(10)
	svc.detector = newFakeDetector(nil)

	st, err := svc.processStream(src, sink, VideoOptions{ConfThreshold: 0.25, RetainFrames: true})
	if err != nil {
		t.Fatalf("processStream failed: %v", err)
	}

	if len(st.FrameDetails) != 4 || len(st.OriginalFrames) != 4 || len(st.AnnotatedFrames) != 4 {
		t.Fatalf("buffers out of step with details: %d/%d/%d",
			len(st.FrameDetails), len(st.OriginalFrames), len(st.AnnotatedFrames))
	}
	if st.OriginalFrames[1] != nil {
		t.Fatalf("failed encode must leave a nil placeholder, got %d bytes", len(st.OriginalFrames[1]))
	}
	for i, buf := range st.AnnotatedFrames {
		if buf == nil {
			t.Fatalf("annotated buffer %d unexpectedly nil", i)
		}
	}
	if st.OriginalFrames[0] == nil || st.OriginalFrames[2] == nil || st.OriginalFrames[3] == nil {
		t.Fatal("surviving frames must keep their buffers")
	}
}

func TestProcessStreamNoTotalSkipsIncrementalProgress(t *testing.T) {
	src := newFakeSource(t, 5, 0) // container reports no frame count
	sink := &fakeSink{}
	svc := newTestService(0)
	svc.detector = newFakeDetector(nil)

	var fractions []float64
	st, err := svc.processStream(src, sink, VideoOptions{
		ConfThreshold: 0.25,
		Progress:      func(f float64) { fractions = append(fractions, f) },
	})
	if err != nil {
		t.Fatalf("processStream failed: %v", err)
	}

	if st.ProcessedFrames != 5 {
		t.Fatalf("expected 5 processed frames, got %d", st.ProcessedFrames)
	}
	// Only the completion signal fires when the total is unknown.
	if len(fractions) != 1 || fractions[0] != 1.0 {
		t.Fatalf("expected single final progress call, got %v", fractions)
	}
}

func TestCameraLoopSelfTerminationFreesSlot(t *testing.T) {
	svc := newTestService(0)
	svc.detector = newFakeDetector(nil)

	src := newFakeSource(t, 0, 0) // every read fails
	session := &CameraSession{
		ID:        "failing-device",
		StartedAt: time.Now(),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	svc.cameraSession = session

	go svc.runCameraLoop(session, src, nil)

	select {
	case <-session.doneCh:
	case <-time.After(5 * time.Second):
		t.Fatal("camera loop did not give up on a failing source")
	}

	// The slot is released right after doneCh closes.
	deadline := time.Now().Add(2 * time.Second)
	for svc.ActiveCamera() != nil {
		if time.Now().After(deadline) {
			t.Fatal("session slot still held after the loop self-terminated")
		}
		time.Sleep(time.Millisecond)
	}

	if !src.closed {
		t.Fatal("source must be released when the loop exits")
	}
	if _, err := svc.StopCamera(); !errors.Is(err, ErrNoCameraSession) {
		t.Fatalf("a new stop must report no session, got %v", err)
	}
}

func TestCameraSessionLifecycleErrors(t *testing.T) {
	svc := newTestService(0)
	svc.detector = newFakeDetector(nil)

	if _, err := svc.StopCamera(); !errors.Is(err, ErrNoCameraSession) {
		t.Fatalf("expected ErrNoCameraSession, got %v", err)
	}
	if session := svc.ActiveCamera(); session != nil {
		t.Fatalf("expected no active session, got %+v", session)
	}
}
