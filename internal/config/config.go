package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port          int
	ModelPath     string
	ClassNames    []string
	FFmpegPath    string
	FFmpegTimeout time.Duration
	MaxUploadMB   int64 // 0 disables the upload size bound
	DBPath        string
	LogDirectory  string
	TempDirectory string // "" means the OS default temp dir

	TargetLongSide   int     // long side of the normalized video, in pixels
	DetectInputSize  int     // square input size fed to the network
	DetectConfidence float64 // minimum confidence for a detection to be kept
}

func Load() *Config {
	return &Config{
		Port:             getEnvAsInt("PORT", 8080),
		ModelPath:        getEnv("MODEL_PATH", filepath.Join(".", "best.onnx")),
		ClassNames:       getEnvAsList("CLASS_NAMES"),
		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		FFmpegTimeout:    getEnvAsDuration("FFMPEG_TIMEOUT", 10*time.Minute),
		MaxUploadMB:      getEnvAsInt64("MAX_UPLOAD_MB", 512),
		DBPath:           getEnv("DB_PATH", filepath.Join(".", "jobs.db")),
		LogDirectory:     getEnv("LOG_DIR", filepath.Join(".", "logs")),
		TempDirectory:    getEnv("TEMP_DIR", ""),
		TargetLongSide:   getEnvAsInt("TARGET_LONG_SIDE", 1280),
		DetectInputSize:  getEnvAsInt("DETECT_INPUT_SIZE", 640),
		DetectConfidence: getEnvAsFloat("DETECT_CONFIDENCE", 0.5),
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}
