package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	WorkerID    string
	Port        int
	LogLevel    string

	// Detector
	ModelPath         string
	ModelInputSize    int
	ClassNames        []string
	DefaultConfidence float64
	UseCUDA           bool
	ONNXSharedLibrary string

	// Video pipeline
	// Preference-ordered fourcc list for the output writer; the first codec
	// that opens wins for the whole stream.
	EncoderPreference []string
	OutputDir         string
	RetainFramesMax   int

	// Live camera
	CameraDeviceID   int
	CameraFrameDelay time.Duration
	CameraLogEvery   int

	// Activity log
	RecordDir string

	// Alerting via NATS
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	AlertsSubject      string

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "spillwatch-1"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Detector
		ModelPath:         getEnv("MODEL_PATH", "best.onnx"),
		ModelInputSize:    getEnvInt("MODEL_INPUT_SIZE", 640),
		ClassNames:        getEnvList("CLASS_NAMES", []string{"Oil Spill"}),
		DefaultConfidence: getEnvFloat("DEFAULT_CONFIDENCE", 0.25),
		UseCUDA:           getEnvBool("USE_CUDA", true),
		ONNXSharedLibrary: getEnv("ONNX_SHARED_LIBRARY", ""),

		// Video pipeline
		EncoderPreference: getEnvList("ENCODER_PREFERENCE", []string{"mp4v", "XVID", "MJPG", "avc1"}),
		OutputDir:         getEnv("OUTPUT_DIR", "processed"),
		RetainFramesMax:   getEnvInt("RETAIN_FRAMES_MAX", 2000),

		// Live camera (~10 fps keeps UI update pressure bounded)
		CameraDeviceID:   getEnvInt("CAMERA_DEVICE_ID", 0),
		CameraFrameDelay: getEnvDuration("CAMERA_FRAME_DELAY", 100*time.Millisecond),
		CameraLogEvery:   getEnvInt("CAMERA_LOG_EVERY", 100),

		// Activity log
		RecordDir: getEnv("RECORD_DIR", "information_record"),

		// Alerting via NATS
		NatsEnabled:        getEnvBool("NATS_ENABLED", false),
		NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		AlertsSubject:      getEnv("ALERTS_SUBJECT", "spillwatch.alerts"),

		// Graceful Shutdown
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
