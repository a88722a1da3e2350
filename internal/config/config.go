// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all settings for the extraction services.
type Config struct {
	// Logging
	LogLevel  string
	LogPretty bool

	// Google Cloud
	GCPProjectID    string
	BigQueryDataset string
	GCSBucket       string

	// External classifier
	GeminiModel   string
	AIDisabled    bool
	ChunkTokens   int
	AIMaxRetries  int
	AIWorkers     int
	AICallTimeout time.Duration

	// Corrections
	CorrectionsTable string

	// Job queue
	QueueBuffer  int
	QueueWorkers int
}

// Load reads configuration. A .env file in the working directory is applied
// first when present; real environment variables win.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),

		GCPProjectID:    os.Getenv("GCP_PROJECT_ID"),
		BigQueryDataset: getEnv("BIGQUERY_DATASET", "bankparse"),
		GCSBucket:       os.Getenv("GCS_BUCKET"),

		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		AIDisabled:    getEnvAsBool("AI_DISABLED", false),
		ChunkTokens:   getEnvAsInt("AI_CHUNK_TOKENS", 6000),
		AIMaxRetries:  getEnvAsInt("AI_MAX_RETRIES", 4),
		AIWorkers:     getEnvAsInt("AI_WORKERS", 3),
		AICallTimeout: getEnvAsDuration("AI_CALL_TIMEOUT", 90*time.Second),

		CorrectionsTable: getEnv("CORRECTIONS_TABLE", "category_corrections"),

		QueueBuffer:  getEnvAsInt("QUEUE_BUFFER", 100),
		QueueWorkers: getEnvAsInt("QUEUE_WORKERS", 5),
	}

	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("config: GCP_PROJECT_ID is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvAsBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
