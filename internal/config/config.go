// Package config provides configuration management for the monitoring
// engine. It handles loading and validation of environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default configuration values
const (
	DefaultPort                   = "8080"
	DefaultLogLevel               = "info"
	DefaultLogFormat              = "json"
	DefaultBufferCapacity         = 10000
	DefaultWriteQueueSize         = 1000
	DefaultCollectIntervalSeconds = 30
	DefaultSweepIntervalSeconds   = 60
	DefaultHealthIntervalSeconds  = 300
	DefaultRetentionIntervalHours = 24
	DefaultMetricsRetentionDays   = 7
	DefaultHealthRetentionDays    = 7
	DefaultAlertsRetentionDays    = 30
	DefaultProbeTimeoutSeconds    = 10
	DefaultResolveGraceSeconds    = 300
	DefaultRateLimit              = 20.0
	DefaultRateBurst              = 40
	DefaultDiskPath               = "/"
	DefaultTraceSampleRate        = 1.0
)

// Config holds all configuration for the monitoring engine.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// Storage: empty DSN selects the in-memory gateway.
	DatabaseDSN string

	// Alerting: rules file is optional, built-in defaults apply without it.
	RulesFile   string
	DedupActive bool

	BufferCapacity int
	WriteQueueSize int

	CollectInterval   time.Duration
	SweepInterval     time.Duration
	HealthInterval    time.Duration
	RetentionInterval time.Duration

	MetricsRetentionDays int
	HealthRetentionDays  int
	AlertsRetentionDays  int

	ProbeTimeout time.Duration
	ResolveGrace time.Duration
	DiskPath     string

	RateLimit float64
	RateBurst int

	TracingEnabled  bool
	TraceOTLP       string
	TraceConsole    bool
	TraceSampleRate float64
	Environment     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// It's okay if .env file doesn't exist - we'll use environment variables
		_ = err // explicitly ignore the error
	}

	cfg := &Config{
		Port:      getEnv("PORT", DefaultPort),
		LogLevel:  getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat: getEnv("LOG_FORMAT", DefaultLogFormat),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		RulesFile:   getEnv("ALERT_RULES_FILE", ""),
		DedupActive: parseBoolEnv("ALERT_DEDUP_ACTIVE", false),

		BufferCapacity: parseIntEnv("METRICS_BUFFER_CAPACITY", DefaultBufferCapacity),
		WriteQueueSize: parseIntEnv("WRITE_QUEUE_SIZE", DefaultWriteQueueSize),

		CollectInterval:   secondsEnv("COLLECT_INTERVAL_SECONDS", DefaultCollectIntervalSeconds),
		SweepInterval:     secondsEnv("ALERT_SWEEP_INTERVAL_SECONDS", DefaultSweepIntervalSeconds),
		HealthInterval:    secondsEnv("HEALTH_INTERVAL_SECONDS", DefaultHealthIntervalSeconds),
		RetentionInterval: time.Duration(parseIntEnv("RETENTION_INTERVAL_HOURS", DefaultRetentionIntervalHours)) * time.Hour,

		MetricsRetentionDays: parseIntEnv("METRICS_RETENTION_DAYS", DefaultMetricsRetentionDays),
		HealthRetentionDays:  parseIntEnv("HEALTH_RETENTION_DAYS", DefaultHealthRetentionDays),
		AlertsRetentionDays:  parseIntEnv("ALERTS_RETENTION_DAYS", DefaultAlertsRetentionDays),

		ProbeTimeout: secondsEnv("PROBE_TIMEOUT_SECONDS", DefaultProbeTimeoutSeconds),
		ResolveGrace: secondsEnv("ALERT_RESOLVE_GRACE_SECONDS", DefaultResolveGraceSeconds),
		DiskPath:     getEnv("DISK_PATH", DefaultDiskPath),

		RateLimit: parseFloatEnv("RATE_LIMIT", DefaultRateLimit),
		RateBurst: parseIntEnv("RATE_BURST", DefaultRateBurst),

		TracingEnabled:  parseBoolEnv("TRACING_ENABLED", false),
		TraceOTLP:       getEnv("TRACE_OTLP_ENDPOINT", ""),
		TraceConsole:    parseBoolEnv("TRACE_CONSOLE", false),
		TraceSampleRate: parseFloatEnv("TRACE_SAMPLE_RATE", DefaultTraceSampleRate),
		Environment:     getEnv("ENVIRONMENT", "development"),
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks that the configuration is usable
func (c *Config) validate() error {
	// Validate port is a valid number
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("METRICS_BUFFER_CAPACITY must be positive")
	}
	if c.WriteQueueSize <= 0 {
		return fmt.Errorf("WRITE_QUEUE_SIZE must be positive")
	}
	if c.MetricsRetentionDays <= 0 || c.HealthRetentionDays <= 0 || c.AlertsRetentionDays <= 0 {
		return fmt.Errorf("retention windows must be positive")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT must be positive")
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATE must be between 0 and 1")
	}
	return nil
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseIntEnv parses an integer environment variable with a fallback value
func parseIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// parseFloatEnv parses a float environment variable with a fallback value
func parseFloatEnv(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// parseBoolEnv parses a boolean environment variable with a fallback value
func parseBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// secondsEnv parses an integer environment variable as a duration in seconds
func secondsEnv(key string, fallbackSeconds int) time.Duration {
	return time.Duration(parseIntEnv(key, fallbackSeconds)) * time.Second
}
