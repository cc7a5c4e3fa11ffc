package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	ServiceName string
	CORSOrigins []string

	// Upload and extraction limits
	MaxFileSize    int64
	FileStorageDir string
	ArtifactTTL    time.Duration
	JanitorEvery   time.Duration
	StrictPages    bool
	StatsWorkers   int

	// URL downloads
	DownloadTimeout    time.Duration
	DownloadRatePerSec float64
	DownloadBurst      int

	// Redis Configuration (cache, rate limiting, asynq)
	RedisURL      string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// MongoDB (analysis records)
	MongoURI string
	DBName   string

	RateLimitReqs   int
	RateLimitWindow int

	// OpenTelemetry
	OTelEnabled  bool
	OTelEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		ServiceName: getEnv("SERVICE_NAME", "pdf-term-stats"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB
		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./storage"),
		ArtifactTTL:    getEnvDuration("ARTIFACT_TTL", 24*time.Hour),
		JanitorEvery:   getEnvDuration("JANITOR_INTERVAL", time.Hour),
		StrictPages:    getEnvBool("STRICT_PAGES", false),
		StatsWorkers:   getEnvInt("STATS_WORKERS", 0),

		DownloadTimeout:    getEnvDuration("DOWNLOAD_TIMEOUT", 60*time.Second),
		DownloadRatePerSec: getEnvFloat64("DOWNLOAD_RATE_PER_SEC", 2),
		DownloadBurst:      getEnvInt("DOWNLOAD_BURST", 4),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 6*time.Hour),

		MongoURI: getEnv("MONGO_URI", ""),
		DBName:   getEnv("DB_NAME", "pdf_term_stats"),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_ENDPOINT", "localhost:4317"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive, got %d", c.MaxFileSize)
	}
	if c.ArtifactTTL <= 0 {
		return fmt.Errorf("ARTIFACT_TTL must be positive, got %s", c.ArtifactTTL)
	}
	if c.DownloadTimeout <= 0 {
		return fmt.Errorf("DOWNLOAD_TIMEOUT must be positive, got %s", c.DownloadTimeout)
	}
	if c.FileStorageDir == "" {
		return fmt.Errorf("FILE_STORAGE_DIR is required")
	}
	return nil
}

// AsyncEnabled reports whether the async analysis pipeline has its backing
// services configured.
func (c *Config) AsyncEnabled() bool {
	return c.RedisURL != "" && c.MongoURI != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
