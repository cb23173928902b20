package common

import (
	"os"
	"strconv"
	"time"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Pipeline PipelineConfig
	LLM      LLMConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN         string
	DialTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
}

// PipelineConfig holds loader and prompt budgets.
type PipelineConfig struct {
	MaxFileBytes   int64
	MaxPromptChars int
}

// LLMConfig holds inference-call configuration
type LLMConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float32
	MaxAttempts       int
	AttemptTimeout    time.Duration
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	MaxInFlight       int64
	RequestsPerSecond float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:         getEnv("DB_URL", "file:extractor.db"),
			DialTimeout: getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Pipeline: PipelineConfig{
			MaxFileBytes:   getEnvAsInt64("MAX_FILE_BYTES", constants.MaxFileBytesDefault),
			MaxPromptChars: getEnvAsInt("MAX_PROMPT_CHARS", 8000),
		},
		LLM: LLMConfig{
			APIKey:            getEnv("OPENAI_API_KEY", ""),
			BaseURL:           getEnv("OPENAI_BASE_URL", ""),
			Model:             getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature:       getEnvAsFloat32("OPENAI_TEMPERATURE", 0.1),
			MaxAttempts:       getEnvAsInt("LLM_MAX_ATTEMPTS", 3),
			AttemptTimeout:    getEnvAsDuration("LLM_ATTEMPT_TIMEOUT", 45*time.Second),
			BackoffBase:       getEnvAsDuration("LLM_BACKOFF_BASE", 1*time.Second),
			BackoffCap:        getEnvAsDuration("LLM_BACKOFF_CAP", 30*time.Second),
			MaxInFlight:       getEnvAsInt64("LLM_MAX_INFLIGHT", 4),
			RequestsPerSecond: getEnvAsFloat64("LLM_REQUESTS_PER_SECOND", 0), // 0 disables the limiter
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.LLM.MaxAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "LLM_MAX_ATTEMPTS must be at least 1", ErrInvalidInput)
	}
	if c.LLM.BackoffBase <= 0 || c.LLM.BackoffCap < c.LLM.BackoffBase {
		return NewAppError("CONFIG_ERROR", "LLM backoff base/cap are inconsistent", ErrInvalidInput)
	}
	if c.Pipeline.MaxFileBytes < constants.MinFileBytes {
		return NewAppError("CONFIG_ERROR", "MAX_FILE_BYTES is too small", ErrInvalidInput)
	}
	if c.Pipeline.MaxPromptChars < 200 {
		return NewAppError("CONFIG_ERROR", "MAX_PROMPT_CHARS is too small to hold an instruction block", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	return nil
}
