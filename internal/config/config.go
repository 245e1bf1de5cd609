package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                   int
	APIKey                 string // Empty disables authentication
	ModelDirectory         string
	BaselineModel          string // Always offered; the generic pretrained model
	PrimaryCustomModel     string // Offered when present in ModelDirectory
	SecondaryCustomModel   string // Offered only when the primary one is absent
	BaselineModelURL       string // Optional download source for a missing baseline artifact
	InferenceBackend       string // "opencv" or "onnx"
	OnnxRuntimeLibrary     string
	DefaultConfidence      float64
	ConfidenceStep         float64
	DetectTimeout          time.Duration
	DetectWorkers          int   // Concurrent inference calls allowed
	MaxUploadSize          int64 // bytes
	MaxImagePixels         int   // Decoded width*height limit; 0 disables it
	ImageDirectory         string
	DatabasePath           string
	LogDirectory           string
	HistoryBufferLimit     int
	HistoryFlushInterval   int // seconds
	AllowedImageExtensions []string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load(getEnv("ENV_FILE", ".env"))

	return &Config{
		Port:                   getEnvAsInt("PORT", 8080),
		APIKey:                 getEnv("API_KEY", ""),
		ModelDirectory:         getEnv("MODEL_DIR", filepath.Join(".", "models")),
		BaselineModel:          getEnv("BASELINE_MODEL", "yolov8n.onnx"),
		PrimaryCustomModel:     getEnv("PRIMARY_CUSTOM_MODEL", "concrete.onnx"),
		SecondaryCustomModel:   getEnv("SECONDARY_CUSTOM_MODEL", "last.onnx"),
		BaselineModelURL:       getEnv("BASELINE_MODEL_URL", ""),
		InferenceBackend:       getEnv("INFERENCE_BACKEND", "opencv"),
		OnnxRuntimeLibrary:     getEnv("ONNXRUNTIME_LIB", ""),
		DefaultConfidence:      getEnvAsFloat("DEFAULT_CONFIDENCE", 0.25),
		ConfidenceStep:         getEnvAsFloat("CONFIDENCE_STEP", 0.05),
		DetectTimeout:          time.Duration(getEnvAsInt("DETECT_TIMEOUT_SECONDS", 30)) * time.Second,
		DetectWorkers:          getEnvAsInt("DETECT_WORKERS", runtime.NumCPU()),
		MaxUploadSize:          getEnvAsInt64("MAX_UPLOAD_MB", 10) << 20,
		MaxImagePixels:         getEnvAsInt("MAX_IMAGE_PIXELS", 40_000_000),
		ImageDirectory:         getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		DatabasePath:           getEnv("DATABASE_PATH", filepath.Join(".", "data", "detections.db")),
		LogDirectory:           getEnv("LOG_DIR", filepath.Join(".", "logs")),
		HistoryBufferLimit:     getEnvAsInt("HISTORY_BUFFER_LIMIT", 10),
		HistoryFlushInterval:   getEnvAsInt("HISTORY_FLUSH_INTERVAL", 30),
		AllowedImageExtensions: []string{".jpg", ".jpeg", ".png"},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
