package detector

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"spillwatch-worker/internal/config"
	"spillwatch-worker/internal/models"
	"spillwatch-worker/internal/observability"
)

// ErrModelLoad marks a failed adapter construction (missing weights,
// incompatible model). Fatal for every detection request until corrected.
var ErrModelLoad = errors.New("model load failed")

const (
	inputName  = "images"
	outputName = "output0"

	iouThreshold = 0.45
)

// Service wraps the ONNX detection model. The session is created once and
// reused; the selected execution provider is fixed for the adapter's
// lifetime. A mutex serializes inference calls since the pre-allocated
// input/output tensors are shared.
//
// All Mats passed in and out use the OpenCV BGR channel convention.
type Service struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]

	inputW     int
	inputH     int
	candidates int
	names      []string
	device     string

	mutex sync.Mutex
}

// NewService loads the model and probes the compute device. CUDA is tried
// first when configured; failure to attach it falls back to CPU rather than
// failing the load.
func NewService(cfg *config.Config) (*Service, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model file not found at %s", ErrModelLoad, cfg.ModelPath)
	}

	if cfg.ONNXSharedLibrary != "" {
		ort.SetSharedLibraryPath(cfg.ONNXSharedLibrary)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: initialize onnxruntime: %v", ErrModelLoad, err)
		}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: session options: %v", ErrModelLoad, err)
	}
	defer opts.Destroy()

	device := "cpu"
	if cfg.UseCUDA {
		if cudaOpts, cudaErr := ort.NewCUDAProviderOptions(); cudaErr == nil {
			if appendErr := opts.AppendExecutionProviderCUDA(cudaOpts); appendErr == nil {
				device = "cuda"
			} else {
				log.Warn().Err(appendErr).Msg("CUDA provider unavailable, falling back to CPU")
			}
			cudaOpts.Destroy()
		}
	}

	size := cfg.ModelInputSize
	// YOLO-style head: one candidate per cell at strides 8, 16 and 32
	candidates := (size/8)*(size/8) + (size/16)*(size/16) + (size/32)*(size/32)

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(size), int64(size)))
	if err != nil {
		return nil, fmt.Errorf("%w: create input tensor: %v", ErrModelLoad, err)
	}

	outputShape := ort.NewShape(1, int64(4+len(cfg.ClassNames)), int64(candidates))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("%w: create output tensor: %v", ErrModelLoad, err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("%w: create session for %s: %v", ErrModelLoad, cfg.ModelPath, err)
	}

	log.Info().
		Str("model_path", cfg.ModelPath).
		Str("device", device).
		Int("input_size", size).
		Strs("classes", cfg.ClassNames).
		Msg("Detection model loaded")

	return &Service{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       size,
		inputH:       size,
		candidates:   candidates,
		names:        cfg.ClassNames,
		device:       device,
	}, nil
}

// Infer runs the model over one frame and returns an annotated copy plus the
// canonical detection list. Detections below confThreshold never appear in
// the output. The input Mat is not modified; the caller owns the returned
// annotated Mat and must Close it.
func (s *Service) Infer(img gocv.Mat, confThreshold float64) (gocv.Mat, []models.Detection, error) {
	if img.Empty() {
		return gocv.NewMat(), nil, fmt.Errorf("empty input image")
	}

	start := time.Now()

	origW := img.Cols()
	origH := img.Rows()

	s.mutex.Lock()
	if err := s.preprocess(img); err != nil {
		s.mutex.Unlock()
		return gocv.NewMat(), nil, err
	}
	if err := s.session.Run(); err != nil {
		s.mutex.Unlock()
		return gocv.NewMat(), nil, fmt.Errorf("run inference: %w", err)
	}
	detections := s.decode(origW, origH, float32(confThreshold))
	s.mutex.Unlock()

	observability.InferenceDuration.Observe(time.Since(start).Seconds())

	annotated := img.Clone()
	drawDetections(&annotated, detections)

	return annotated, detections, nil
}

// preprocess resizes into the model's input square and fills the input
// tensor in CHW order, scaled to [0,1]. Caller holds the mutex.
func (s *Service) preprocess(img gocv.Mat) error {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(s.inputW, s.inputH), 0, 0, gocv.InterpolationLinear)

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(resized, &rgb, gocv.ColorBGRToRGB)

	data := rgb.ToBytes()
	if len(data) != s.inputW*s.inputH*3 {
		return fmt.Errorf("unexpected frame buffer length %d", len(data))
	}

	input := s.inputTensor.GetData()
	plane := s.inputW * s.inputH
	for i := 0; i < plane; i++ {
		input[i] = float32(data[i*3]) / 255.0
		input[plane+i] = float32(data[i*3+1]) / 255.0
		input[2*plane+i] = float32(data[i*3+2]) / 255.0
	}
	return nil
}

// decode maps the model output back to source pixel space. Caller holds
// the mutex.
func (s *Service) decode(origW, origH int, threshold float32) []models.Detection {
	scaleW := float64(origW) / float64(s.inputW)
	scaleH := float64(origH) / float64(s.inputH)
	raw := decodeOutput(s.outputTensor.GetData(), s.candidates, s.names,
		scaleW, scaleH, origW, origH, threshold)
	return nonMaxSuppress(raw, iouThreshold)
}

// decodeOutput walks the attribute-major [4+nc, n] head, keeps candidates
// at or above the threshold and scales cx/cy/w/h boxes to clamped corner
// coordinates in source pixel space.
func decodeOutput(out []float32, n int, names []string, scaleW, scaleH float64, origW, origH int, threshold float32) []models.Detection {
	nc := len(names)

	var raw []models.Detection
	for j := 0; j < n; j++ {
		bestClass := 0
		bestScore := float32(0)
		for c := 0; c < nc; c++ {
			if score := out[(4+c)*n+j]; score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestScore < threshold {
			continue
		}

		cx := float64(out[0*n+j])
		cy := float64(out[1*n+j])
		w := float64(out[2*n+j])
		h := float64(out[3*n+j])

		x1 := clamp((cx-w/2)*scaleW, 0, float64(origW))
		y1 := clamp((cy-h/2)*scaleH, 0, float64(origH))
		x2 := clamp((cx+w/2)*scaleW, 0, float64(origW))
		y2 := clamp((cy+h/2)*scaleH, 0, float64(origH))

		raw = append(raw, models.NewDetection(bestClass, classLabel(names, bestClass),
			float64(bestScore), [4]float64{x1, y1, x2, y2}))
	}

	return raw
}

func classLabel(names []string, id int) string {
	if id >= 0 && id < len(names) {
		return names[id]
	}
	return fmt.Sprintf("class_%d", id)
}

// Names returns the class-name table associated with the loaded weights.
func (s *Service) Names() []string {
	return s.names
}

// Device reports the compute device selected at load time.
func (s *Service) Device() string {
	return s.device
}

// InputSize returns the model's expected input dimensions.
func (s *Service) InputSize() (int, int) {
	return s.inputW, s.inputH
}

func (s *Service) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.session != nil {
		s.session.Destroy()
	}
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
}

// nonMaxSuppress drops lower-confidence boxes overlapping a kept box by more
// than the IoU threshold.
func nonMaxSuppress(detections []models.Detection, threshold float64) []models.Detection {
	if len(detections) == 0 {
		return detections
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	keep := make([]bool, len(detections))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(detections); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(detections); j++ {
			if !keep[j] {
				continue
			}
			if iou(detections[i].BBox, detections[j].BBox) > threshold {
				keep[j] = false
			}
		}
	}

	var result []models.Detection
	for i, d := range detections {
		if keep[i] {
			result = append(result, d)
		}
	}
	return result
}

func iou(a, b [4]float64) float64 {
	x1 := math.Max(a[0], b[0])
	y1 := math.Max(a[1], b[1])
	x2 := math.Min(a[2], b[2])
	y2 := math.Min(a[3], b[3])

	intersection := math.Max(0, x2-x1) * math.Max(0, y2-y1)

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
