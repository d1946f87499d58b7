package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port            int
	Environment     string
	LogLevel        string
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	// Uploads
	MaxUploadSizeBytes int64
	ExampleWorkbook    string // loaded at startup when set

	// Dashboard
	FilterDebounce time.Duration
	CacheTTL       time.Duration

	// Preference store
	PrefsDriver string // memory, sqlite or postgres
	PrefsDSN    string

	// S3
	S3Bucket    string
	S3Region    string
	AWSEndpoint string // For LocalStack in development

	// Feature Flags
	EnableRateLimiting bool
	RateLimitRPS       float64
	RateLimitBurst     int
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Port:               getEnvInt("PORT", 8080),
		Environment:        getEnv("ENVIRONMENT", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		AllowedOrigins:     getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}),
		MaxUploadSizeBytes: int64(getEnvInt("MAX_UPLOAD_SIZE_BYTES", 10*1024*1024)),
		ExampleWorkbook:    getEnv("EXAMPLE_WORKBOOK", ""),
		FilterDebounce:     getEnvDuration("FILTER_DEBOUNCE", 300*time.Millisecond),
		CacheTTL:           getEnvDuration("CACHE_TTL", 15*time.Minute),
		PrefsDriver:        strings.ToLower(getEnv("PREFS_DRIVER", "sqlite")),
		PrefsDSN:           getEnv("PREFS_DSN", "dashboard-prefs.db"),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Region:           getEnv("S3_REGION", ""),
		AWSEndpoint:        getEnv("AWS_ENDPOINT", ""),
		EnableRateLimiting: getEnvBool("ENABLE_RATE_LIMITING", false),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 5),
	}

	// Validate required fields
	switch cfg.PrefsDriver {
	case "memory", "sqlite":
	case "postgres":
		if cfg.PrefsDSN == "" || cfg.PrefsDSN == "dashboard-prefs.db" {
			return nil, fmt.Errorf("PREFS_DSN must be a postgres connection string when PREFS_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported PREFS_DRIVER %q", cfg.PrefsDriver)
	}
	if cfg.S3Bucket != "" && cfg.S3Region == "" {
		return nil, fmt.Errorf("S3_REGION is required when S3_BUCKET is set")
	}
	if cfg.MaxUploadSizeBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE_BYTES must be positive")
	}
	if cfg.FilterDebounce < 0 {
		return nil, fmt.Errorf("FILTER_DEBOUNCE cannot be negative")
	}

	return cfg, nil
}

// StorageEnabled reports whether presigned S3 uploads are configured
func (c *Config) StorageEnabled() bool {
	return c.S3Bucket != ""
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
