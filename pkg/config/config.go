package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Groq      GroqConfig
	Embedding EmbeddingConfig
	Index     IndexConfig
	Worker    WorkerConfig
	OTEL      OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ModelLimit pairs a model identifier with its daily request ceiling.
type ModelLimit struct {
	Name       string
	DailyLimit int
}

// GroqConfig holds the LLM gateway configuration: the ordered API key list,
// the ordered model cascade with per-model daily ceilings, and retry policy.
type GroqConfig struct {
	APIKeys     []string
	Cascade     []ModelLimit
	MaxRetries  int
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// EmbeddingConfig holds the embedding inference service configuration
type EmbeddingConfig struct {
	BaseURL   string
	Model     string
	Dimension int
}

// IndexConfig holds the vector index storage configuration
type IndexConfig struct {
	Dir  string
	TopK int
}

// WorkerConfig holds the diagnosis worker pool configuration
type WorkerConfig struct {
	Concurrency int
	QueueSize   int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cascade, err := parseCascade(
		getEnv("GROQ_MODEL_CASCADE", "llama-3.3-70b-versatile:1000,qwen/qwen3-32b:1000,llama-3.1-8b-instant:14400"),
	)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "clinical_triage"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Groq: GroqConfig{
			APIKeys:     getEnvAsSlice("GROQ_API_KEYS", getEnv("GROQ_API_KEY", "")),
			Cascade:     cascade,
			MaxRetries:  getEnvAsInt("LLM_MAX_RETRIES", 3),
			Timeout:     time.Duration(getEnvAsInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
			Temperature: 0.7,
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 4096),
		},
		Embedding: EmbeddingConfig{
			BaseURL:   getEnv("EMBEDDING_URL", "http://localhost:8081"),
			Model:     getEnv("EMBEDDING_MODEL", "all-MiniLM-L6-v2"),
			Dimension: getEnvAsInt("EMBEDDING_DIMENSION", 384),
		},
		Index: IndexConfig{
			Dir:  getEnv("INDEX_DIR", "./case_index"),
			TopK: getEnvAsInt("INDEX_TOP_K", 5),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 2),
			QueueSize:   getEnvAsInt("WORKER_QUEUE_SIZE", 64),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "clinical-triage"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DailyLimit returns the configured daily ceiling for a model, or 0 when the
// model carries no ceiling.
func (c *GroqConfig) DailyLimit(model string) int {
	for _, m := range c.Cascade {
		if m.Name == model {
			return m.DailyLimit
		}
	}
	return 0
}

// parseCascade parses ordered "model:limit,model:limit" pairs.
func parseCascade(raw string) ([]ModelLimit, error) {
	entries := strings.Split(raw, ",")
	cascade := make([]ModelLimit, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		idx := strings.LastIndex(entry, ":")
		if idx <= 0 || idx == len(entry)-1 {
			return nil, fmt.Errorf("invalid GROQ_MODEL_CASCADE entry %q, expected model:limit", entry)
		}
		limit, err := strconv.Atoi(entry[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid daily limit in cascade entry %q: %w", entry, err)
		}
		cascade = append(cascade, ModelLimit{Name: entry[:idx], DailyLimit: limit})
	}
	if len(cascade) == 0 {
		return nil, fmt.Errorf("GROQ_MODEL_CASCADE must configure at least one model")
	}
	return cascade, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice gets a comma-separated environment variable as a string slice
func getEnvAsSlice(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
