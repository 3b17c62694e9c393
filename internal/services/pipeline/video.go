package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"spillwatch-worker/internal/models"
	"spillwatch-worker/internal/observability"
	"spillwatch-worker/internal/services/stats"
)

// encodeRetained is swapped out in tests to exercise encode failures.
var encodeRetained = EncodeJPEG

// ProgressFunc receives the fraction of frames processed after each frame.
// It runs inline in the frame loop, on the caller's goroutine.
type ProgressFunc func(fraction float64)

// VideoOptions controls one video-processing invocation.
type VideoOptions struct {
	ConfThreshold float64
	Progress      ProgressFunc

	// RetainFrames keeps JPEG buffers of every original and annotated frame
	// in memory for the full video duration. Opt-in: the cost is
	// O(frame_count x frame_size).
	RetainFrames bool
}

// ProcessVideo decodes a video container frame by frame, runs the detector
// over each frame, writes the annotated stream to a new MP4-compatible file
// and accumulates VideoStatistics.
//
// A decode failure mid-stream ends the loop early and returns the partial
// statistics (processed_frames < total_frames) rather than an error. Source
// and sink are released on every exit path.
func (s *Service) ProcessVideo(videoPath, outputPath string, opts VideoOptions) (string, *models.VideoStatistics, error) {
	src, err := OpenVideoSource(videoPath)
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	props := src.Properties()

	if outputPath == "" {
		if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("create output directory: %w", err)
		}
		outputPath = filepath.Join(s.cfg.OutputDir, fmt.Sprintf("annotated_%s.mp4", uuid.NewString()))
	}

	sink, err := OpenVideoSink(outputPath, s.cfg.EncoderPreference, props.FPS, props.Width, props.Height)
	if err != nil {
		return "", nil, err
	}
	defer sink.Close()

	start := time.Now()
	st, err := s.processStream(src, sink, opts)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info().
		Str("input", videoPath).
		Str("output", outputPath).
		Int("total_frames", st.TotalFrames).
		Int("processed_frames", st.ProcessedFrames).
		Int("total_detections", st.TotalDetections).
		Dur("elapsed", time.Since(start)).
		Msg("Video processing complete")

	return outputPath, st, nil
}

// processStream is the OPENING-less middle of the video state machine:
// per frame decode, infer, annotate, encode out, accumulate, report
// progress; then finalize. Factored over the source/sink boundary so the
// loop is testable without a real container.
func (s *Service) processStream(src FrameSource, sink FrameSink, opts VideoOptions) (*models.VideoStatistics, error) {
	props := src.Properties()

	st := &models.VideoStatistics{
		TotalFrames:      props.TotalFrames,
		DetectionHistory: []models.HistoryEntry{},
	}
	if opts.RetainFrames {
		st.FrameDetails = []models.FrameDetail{}
		st.OriginalFrames = [][]byte{}
		st.AnnotatedFrames = [][]byte{}
	}

	frame := gocv.NewMat()
	defer frame.Close()

	frameCount := 0
	for {
		// Decode failure or end of stream: stop and keep partial results.
		if ok := src.Read(&frame); !ok || frame.Empty() {
			break
		}

		annotated, detections, err := s.detector.Infer(frame, opts.ConfThreshold)
		if err != nil {
			annotated.Close()
			return nil, fmt.Errorf("frame %d inference: %w", frameCount, err)
		}

		detectionsCount := len(detections)
		if detectionsCount > 0 {
			st.FramesWithDetections++
			st.TotalDetections += detectionsCount
			if detectionsCount > st.MaxDetectionsInFrame {
				st.MaxDetectionsInFrame = detectionsCount
			}
		}

		st.DetectionHistory = append(st.DetectionHistory, models.HistoryEntry{
			Frame:      frameCount,
			Detections: detectionsCount,
		})

		if opts.RetainFrames && frameCount < s.cfg.RetainFramesMax {
			frameStats := stats.ComputeFrameStatistics(detections)
			st.FrameDetails = append(st.FrameDetails, models.FrameDetail{
				FrameNumber:     frameCount,
				DetectionsCount: detectionsCount,
				AvgConfidence:   frameStats.AvgConfidence,
				Detections:      detections,
				HasDetection:    detectionsCount > 0,
			})

			// A failed encode appends a nil placeholder so the buffers stay
			// index-aligned with FrameDetails.
			orig, err := encodeRetained(frame)
			if err != nil {
				orig = nil
			}
			st.OriginalFrames = append(st.OriginalFrames, orig)

			ann, err := encodeRetained(annotated)
			if err != nil {
				ann = nil
			}
			st.AnnotatedFrames = append(st.AnnotatedFrames, ann)
		}

		writeErr := sink.Write(annotated)
		annotated.Close()
		if writeErr != nil {
			return nil, fmt.Errorf("frame %d encode: %w", frameCount, writeErr)
		}

		frameCount++
		st.ProcessedFrames = frameCount
		observability.FramesProcessed.WithLabelValues("video").Inc()
		observability.SpillsDetected.WithLabelValues("video").Add(float64(detectionsCount))

		// Best effort when the container reports no frame count.
		if opts.Progress != nil && st.TotalFrames > 0 {
			opts.Progress(float64(frameCount) / float64(st.TotalFrames))
		}
	}

	if st.ProcessedFrames > 0 {
		st.AvgDetectionsPerFrame = float64(st.TotalDetections) / float64(st.ProcessedFrames)
	}

	if opts.Progress != nil {
		opts.Progress(1.0)
	}

	return st, nil
}
