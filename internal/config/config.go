// Package config provides configuration for runwatch.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runwatch configuration.
type Config struct {
	// Backend
	BackendURL string
	RunPath    string

	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Admission policy; empty means the built-in default.
	PolicyFile string

	// Observer websocket
	WSPingInterval   time.Duration
	WSWriteTimeout   time.Duration
	WSReadTimeout    time.Duration
	WSMaxMessageSize int64

	// Run defaults
	DefaultModelName     string
	DefaultModelProvider string
	InitialCash          float64
	MarginRequirement    float64
	ShowReasoning        bool

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		BackendURL:           getEnv("BACKEND_URL", "http://localhost:8000"),
		RunPath:              getEnv("RUN_PATH", "/api/hedge-fund/run"),
		HTTPPort:             getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:          getEnv("DATABASE_URL", ":memory:"),
		PolicyFile:           getEnv("POLICY_FILE", ""),
		WSPingInterval:       time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WSWriteTimeout:       time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		WSReadTimeout:        time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		WSMaxMessageSize:     int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 4096)),
		DefaultModelName:     getEnv("DEFAULT_MODEL_NAME", ""),
		DefaultModelProvider: getEnv("DEFAULT_MODEL_PROVIDER", ""),
		InitialCash:          getEnvFloat("INITIAL_CASH", 100000),
		MarginRequirement:    getEnvFloat("MARGIN_REQUIREMENT", 0),
		ShowReasoning:        getEnvBool("SHOW_REASONING", false),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
