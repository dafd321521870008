// ABOUTME: Centralized configuration for the muleta CLI and MCP server
// ABOUTME: Loads an optional YAML file, then environment variables, with validation and defaults
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the knowledge pipeline and learning loop
type Config struct {
	// Storage
	DBPath string `yaml:"db_path"`

	// OpenAI-compatible extractor settings
	OpenAIKey       string        `yaml:"openai_api_key"`
	BaseURL         string        `yaml:"openai_base_url"`
	ChatModel       string        `yaml:"chat_model"`
	Timeout         time.Duration `yaml:"llm_timeout"`
	MaxRetries      int           `yaml:"llm_max_retries"`
	RetryDelay      time.Duration `yaml:"llm_retry_delay"`
	FallbackEnabled bool          `yaml:"llm_fallback_enabled"`

	// Ingestion
	MergeThreshold     float64 `yaml:"merge_threshold"`
	Similarity         string  `yaml:"similarity"`
	MinContentLength   int     `yaml:"min_content_length"`
	MaxContentLength   int     `yaml:"max_content_length"`
	ChunkSize          int     `yaml:"chunk_size"`
	ExtractConcurrency int     `yaml:"extract_concurrency"`

	// Scheduling
	SuccessRateAlpha float64 `yaml:"success_rate_alpha"`

	// Gap analysis
	GapWindow          int     `yaml:"gap_window"`
	GapThreshold       float64 `yaml:"gap_threshold"`
	GapMinReviews      int     `yaml:"gap_min_reviews"`
	GapMinObservations int     `yaml:"gap_min_observations"`
	GapSchedule        string  `yaml:"gap_schedule"`

	LogMode string `yaml:"log_mode"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		ChatModel:          "gpt-4o-mini",
		Timeout:            60 * time.Second,
		MaxRetries:         2,
		RetryDelay:         time.Second,
		FallbackEnabled:    true,
		MergeThreshold:     0.9,
		Similarity:         "levenshtein",
		MinContentLength:   10,
		MaxContentLength:   50000,
		ChunkSize:          4000,
		ExtractConcurrency: 3,
		SuccessRateAlpha:   0.3,
		GapWindow:          5,
		GapThreshold:       0.6,
		GapMinReviews:      3,
		GapMinObservations: 2,
		GapSchedule:        "@daily",
		LogMode:            "dev",
	}
}

// Load reads the YAML file named by MULETA_CONFIG (if any), then lets
// environment variables override it
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("MULETA_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// LoadFile merges a YAML config file over the current values
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DBPath = getEnv("MULETA_DB_PATH", c.DBPath)
	c.OpenAIKey = getEnv("OPENAI_API_KEY", c.OpenAIKey)
	c.BaseURL = getEnv("OPENAI_BASE_URL", c.BaseURL)
	c.ChatModel = getEnv("MULETA_CHAT_MODEL", c.ChatModel)
	c.Timeout = getEnvDuration("LLM_TIMEOUT", c.Timeout)
	c.MaxRetries = getEnvInt("LLM_MAX_RETRIES", c.MaxRetries)
	c.RetryDelay = getEnvDuration("LLM_RETRY_DELAY", c.RetryDelay)
	c.FallbackEnabled = getEnvBool("LLM_FALLBACK_ENABLED", c.FallbackEnabled)
	c.MergeThreshold = getEnvFloat("MERGE_THRESHOLD", c.MergeThreshold)
	c.Similarity = getEnv("SIMILARITY", c.Similarity)
	c.MinContentLength = getEnvInt("MIN_CONTENT_LENGTH", c.MinContentLength)
	c.MaxContentLength = getEnvInt("MAX_CONTENT_LENGTH", c.MaxContentLength)
	c.ChunkSize = getEnvInt("CHUNK_SIZE", c.ChunkSize)
	c.ExtractConcurrency = getEnvInt("EXTRACT_CONCURRENCY", c.ExtractConcurrency)
	c.SuccessRateAlpha = getEnvFloat("SUCCESS_RATE_ALPHA", c.SuccessRateAlpha)
	c.GapWindow = getEnvInt("GAP_WINDOW", c.GapWindow)
	c.GapThreshold = getEnvFloat("GAP_THRESHOLD", c.GapThreshold)
	c.GapMinReviews = getEnvInt("GAP_MIN_REVIEWS", c.GapMinReviews)
	c.GapMinObservations = getEnvInt("GAP_MIN_OBSERVATIONS", c.GapMinObservations)
	c.GapSchedule = getEnv("GAP_SCHEDULE", c.GapSchedule)
	c.LogMode = getEnv("MULETA_LOG_MODE", c.LogMode)
}

func (c *Config) Validate() error {
	if c.MergeThreshold < 0 || c.MergeThreshold > 1 {
		return fmt.Errorf("MERGE_THRESHOLD must be 0-1, got %f", c.MergeThreshold)
	}
	if c.SuccessRateAlpha <= 0 || c.SuccessRateAlpha > 1 {
		return fmt.Errorf("SUCCESS_RATE_ALPHA must be in (0,1], got %f", c.SuccessRateAlpha)
	}
	if c.GapThreshold < 0 || c.GapThreshold > 1 {
		return fmt.Errorf("GAP_THRESHOLD must be 0-1, got %f", c.GapThreshold)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("LLM_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.GapWindow < 1 {
		return fmt.Errorf("GAP_WINDOW must be >= 1, got %d", c.GapWindow)
	}
	if c.GapMinReviews < 1 || c.GapMinObservations < 1 {
		return fmt.Errorf("GAP_MIN_REVIEWS and GAP_MIN_OBSERVATIONS must be >= 1")
	}
	if c.MinContentLength < 0 || c.MaxContentLength < c.MinContentLength {
		return fmt.Errorf("content length bounds invalid: min %d, max %d", c.MinContentLength, c.MaxContentLength)
	}
	if c.ChunkSize < 100 {
		return fmt.Errorf("CHUNK_SIZE must be >= 100, got %d", c.ChunkSize)
	}
	if c.ExtractConcurrency < 1 {
		return fmt.Errorf("EXTRACT_CONCURRENCY must be >= 1, got %d", c.ExtractConcurrency)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %v", c.Timeout)
	}
	switch c.Similarity {
	case "levenshtein", "exact":
	default:
		return fmt.Errorf("SIMILARITY must be levenshtein or exact, got %q", c.Similarity)
	}
	if _, err := cron.ParseStandard(c.GapSchedule); err != nil {
		return fmt.Errorf("GAP_SCHEDULE %q is invalid: %w", c.GapSchedule, err)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
