package pipeline

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"spillwatch-worker/internal/models"
)

// Detector is the boundary to the loaded model: one frame in, an annotated
// copy and the detection list out. Implemented by detector.Service; tests
// substitute deterministic fakes.
type Detector interface {
	Infer(img gocv.Mat, confThreshold float64) (gocv.Mat, []models.Detection, error)
}

// SourceProperties describes a frame source as reported by its container.
// TotalFrames is 0 when the container does not carry a frame count.
type SourceProperties struct {
	FPS         float64
	Width       int
	Height      int
	TotalFrames int
}

// FrameSource yields frames in decode order. Read returns false at end of
// stream or on a decode failure; either way the pipeline stops consuming.
type FrameSource interface {
	Read(dst *gocv.Mat) bool
	Properties() SourceProperties
	Close() error
}

// FrameSink consumes annotated frames in write order.
type FrameSink interface {
	Write(frame gocv.Mat) error
	Close() error
}

type captureSource struct {
	cap   *gocv.VideoCapture
	props SourceProperties
}

func (s *captureSource) Read(dst *gocv.Mat) bool      { return s.cap.Read(dst) }
func (s *captureSource) Properties() SourceProperties { return s.props }
func (s *captureSource) Close() error                 { return s.cap.Close() }

// OpenVideoSource opens a video container for sequential decode.
func OpenVideoSource(path string) (FrameSource, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceOpen, path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w: %s", ErrSourceOpen, path)
	}

	props := SourceProperties{
		FPS:         cap.Get(gocv.VideoCaptureFPS),
		Width:       int(cap.Get(gocv.VideoCaptureFrameWidth)),
		Height:      int(cap.Get(gocv.VideoCaptureFrameHeight)),
		TotalFrames: int(cap.Get(gocv.VideoCaptureFrameCount)),
	}
	if props.FPS <= 0 {
		props.FPS = 30
	}

	return &captureSource{cap: cap, props: props}, nil
}

// OpenCameraSource opens a capture device for a live session.
func OpenCameraSource(deviceID int) (FrameSource, error) {
	cap, err := gocv.VideoCaptureDevice(deviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: camera device %d: %v", ErrSourceOpen, deviceID, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w: camera device %d", ErrSourceOpen, deviceID)
	}

	props := SourceProperties{
		FPS:    cap.Get(gocv.VideoCaptureFPS),
		Width:  int(cap.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(cap.Get(gocv.VideoCaptureFrameHeight)),
	}

	return &captureSource{cap: cap, props: props}, nil
}

type writerSink struct {
	writer *gocv.VideoWriter
}

func (s *writerSink) Write(frame gocv.Mat) error { return s.writer.Write(frame) }
func (s *writerSink) Close() error               { return s.writer.Close() }

// OpenVideoSink walks the preference-ordered codec list and returns a sink
// on the first codec whose writer opens. The chosen codec never changes
// mid-stream. Exhausting the list is ErrEncoderUnavailable.
func OpenVideoSink(path string, codecs []string, fps float64, width, height int) (FrameSink, error) {
	for _, codec := range codecs {
		writer, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
		if err != nil {
			continue
		}
		if !writer.IsOpened() {
			writer.Close()
			continue
		}

		log.Debug().Str("codec", codec).Str("path", path).Msg("Video writer opened")
		return &writerSink{writer: writer}, nil
	}

	return nil, fmt.Errorf("%w: tried %v", ErrEncoderUnavailable, codecs)
}
