package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all the application configuration
type AppConfig struct {
	Port              string
	BaseURL           string
	StagingDir        string
	OutputDir         string
	LinkKey           string
	LinkTTL           time.Duration
	OutputRetention   time.Duration
	CleanupSchedule   string
	EncodeTimeout     time.Duration
	FetchTimeout      time.Duration
	FetchRatePerSec   float64
	MaxFetches        int
	FrameRate         int
	TrailingBuffer    float64
	AllowRemoteInputs bool
	FFmpegBin         string
}

// LoadConfig loads the application configuration from environment variables
// with fallback to default values. A .env file in the working directory is
// read first when present.
func LoadConfig() *AppConfig {
	godotenv.Load()

	port := getEnv("PORT", "3021")
	return &AppConfig{
		Port:              port,
		BaseURL:           getEnv("BASE_URL", "http://localhost:"+port),
		StagingDir:        getEnv("STAGING_DIR", filepath.Join(".", "staging")),
		OutputDir:         getEnv("OUTPUT_DIR", filepath.Join(".", "output")),
		LinkKey:           getEnv("LINK_KEY", "slideshow"),
		LinkTTL:           time.Duration(getEnvInt("LINK_TTL_SECONDS", 3600)) * time.Second,
		OutputRetention:   time.Duration(getEnvInt("OUTPUT_RETENTION_MINUTES", 1440)) * time.Minute,
		CleanupSchedule:   getEnv("CLEANUP_SCHEDULE", "*/15 * * * *"),
		EncodeTimeout:     time.Duration(getEnvInt("ENCODE_TIMEOUT_SECONDS", 300)) * time.Second,
		FetchTimeout:      time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 60)) * time.Second,
		FetchRatePerSec:   getEnvFloat("FETCH_RATE_PER_SEC", 0),
		MaxFetches:        getEnvInt("MAX_CONCURRENT_FETCHES", 4),
		FrameRate:         getEnvInt("FRAME_RATE", 30),
		TrailingBuffer:    getEnvFloat("TRAILING_BUFFER_SECONDS", 5),
		AllowRemoteInputs: getEnvBool("ALLOW_REMOTE_INPUTS", false),
		FFmpegBin:         getEnv("FFMPEG_BIN", "ffmpeg"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
