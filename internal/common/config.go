package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Pipeline PipelineConfig
	Model    ModelConfig
	Store    StoreConfig
	Supplier SupplierConfig
}

// PipelineConfig tunes the orchestrator and the text extraction stage.
type PipelineConfig struct {
	RetryAttempts   int           // model invocations per document, including the first
	ExtractTimeout  time.Duration // stage 1
	InvokeTimeout   time.Duration // per model call
	BackoffInterval time.Duration // initial backoff between retries
	MinTextLength   int           // below this the primary extractor is considered to have failed
}

// ModelConfig holds the default model and generation parameters which are
// passed through to adapters unchanged.
type ModelConfig struct {
	DefaultModelID string
	MaxTokens      int
	Temperature    float32

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaHost    string
}

// StoreConfig selects and configures the invoice store backend.
type StoreConfig struct {
	Driver      string // "sqlite" | "postgres"
	DSN         string // postgres DSN
	SQLitePath  string
	DialTimeout time.Duration
}

// SupplierConfig feeds the supplier correction pass: clients that must
// never be reported as suppliers, and suppliers recognizable from the
// source filename.
type SupplierConfig struct {
	KnownClients   []string
	KnownSuppliers []string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			RetryAttempts:   getEnvAsInt("RETRY_ATTEMPTS", 3),
			ExtractTimeout:  getEnvAsDuration("EXTRACT_TIMEOUT", 30*time.Second),
			InvokeTimeout:   getEnvAsDuration("INVOKE_TIMEOUT", 60*time.Second),
			BackoffInterval: getEnvAsDuration("RETRY_BACKOFF", 2*time.Second),
			MinTextLength:   getEnvAsInt("MIN_TEXT_LENGTH", 20),
		},
		Model: ModelConfig{
			DefaultModelID: getEnv("MODEL_ID", "anthropic.claude-v2"),
			MaxTokens:      getEnvAsInt("MODEL_MAX_TOKENS", 2000),
			Temperature:    getEnvAsFloat32("MODEL_TEMPERATURE", 0.1),
			OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OllamaHost:     getEnv("OLLAMA_HOST", "http://localhost:11434"),
		},
		Store: StoreConfig{
			Driver:      getEnv("STORE_DRIVER", "sqlite"),
			DSN:         getEnv("DB_URL", ""),
			SQLitePath:  getEnv("SQLITE_PATH", "invoices.db"),
			DialTimeout: getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Supplier: SupplierConfig{
			KnownClients:   getEnvAsList("KNOWN_CLIENTS", defaultKnownClients),
			KnownSuppliers: getEnvAsList("KNOWN_SUPPLIERS", defaultKnownSuppliers),
		},
	}
}

// Defaults mirror the client/supplier lists the accounting team maintains.
var (
	defaultKnownClients = []string{
		"BOARDRIDERS", "NA PALI", "QUIKSILVER", "KAUAI", "VANUATU",
		"EMERALD COAST", "PUKALANI", "HANALEI", "TARAWA", "SUNSHINE DIFFUSION",
	}
	defaultKnownSuppliers = []string{
		"TELEFONICA", "CEGEDIM", "BOUYGUES", "ORANGE", "SFR", "FREE", "OVH",
	}
)

// Validate validates the loaded configuration.
func (c *Config) Validate() error {
	if c.Model.DefaultModelID == "" {
		return NewConfigError("MODEL_ID is required")
	}
	if c.Pipeline.RetryAttempts < 1 {
		return NewConfigError("RETRY_ATTEMPTS must be at least 1")
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return NewConfigError("SQLITE_PATH is required for the sqlite store")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return NewConfigError("DB_URL is required for the postgres store")
		}
	default:
		return NewConfigError("STORE_DRIVER must be sqlite or postgres")
	}
	return nil
}

// ConfigError reports an invalid or missing configuration value.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return "config error: " + e.Message }

func NewConfigError(message string) *ConfigError {
	return &ConfigError{Message: message}
}

// Helper functions for environment variable parsing.
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

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
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

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
