// Package config provides configuration loading and validation for the server and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Defaults used when neither the config file nor the environment sets a value.
const (
	DefaultPort                   = 8080
	DefaultLogLevel               = "info"
	DefaultLogFormat              = "text"
	DefaultSessionDir             = ".resourcewise/sessions"
	DefaultLLMTimeoutSeconds      = 30
	DefaultQueryTimeoutSeconds    = 30
	DefaultMaxRows                = 1000
	DefaultMaxCombinations        = 3
	DefaultEmbeddingCacheTTLHours = 24 * 7
	DefaultClassifyTimeoutSeconds = 10
)

// FuzzyConfig tunes vague-term resolution.
type FuzzyConfig struct {
	VocabularyPath         string `json:"vocabulary_path,omitempty"`          // YAML override for the embedded vocabulary
	EmbeddingCacheTTLHours int    `json:"embedding_cache_ttl_hours,omitempty"` // Lifetime of cached term embeddings
	ClassifyTimeoutSeconds int    `json:"classify_timeout_seconds,omitempty"`  // Model classification budget before rules take over
	DisableVector          bool   `json:"disable_vector,omitempty"`            // Skip the embedding fallback tier
}

// Config represents the configuration that can be loaded from a JSON file.
// Environment variables override file values; see ApplyEnv.
type Config struct {
	// Connections
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key

	// Storage
	SessionDir string `json:"session_dir,omitempty"` // Directory of persisted conversations
	CacheDir   string `json:"cache_dir,omitempty"`   // Badger directory for embeddings; empty keeps them in memory

	// Server
	Port        int      `json:"port,omitempty"`
	CORSOrigins []string `json:"cors_origins,omitempty"`
	JWTSecret   string   `json:"-"` // Only read from JWT_SECRET; enables bearer auth when set

	// Logging
	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"` // "text" or "json"

	// Limits
	LLMTimeoutSeconds   int `json:"llm_timeout_seconds,omitempty"`
	QueryTimeoutSeconds int `json:"query_timeout_seconds,omitempty"`
	MaxRows             int `json:"max_rows,omitempty"`
	MaxCombinations     int `json:"max_combinations,omitempty"`

	Fuzzy FuzzyConfig `json:"fuzzy"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		SessionDir:          DefaultSessionDir,
		Port:                DefaultPort,
		CORSOrigins:         []string{"*"},
		LogLevel:            DefaultLogLevel,
		LogFormat:           DefaultLogFormat,
		LLMTimeoutSeconds:   DefaultLLMTimeoutSeconds,
		QueryTimeoutSeconds: DefaultQueryTimeoutSeconds,
		MaxRows:             DefaultMaxRows,
		MaxCombinations:     DefaultMaxCombinations,
		Fuzzy: FuzzyConfig{
			EmbeddingCacheTTLHours: DefaultEmbeddingCacheTTLHours,
			ClassifyTimeoutSeconds: DefaultClassifyTimeoutSeconds,
		},
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Load reads path when it is non-empty, applies the environment and fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// ApplyEnv overrides fields from DATABASE_URL, GEMINI_API_KEY,
// RESOURCEWISE_SESSION_DIR, RESOURCEWISE_CACHE_DIR, RESOURCEWISE_PORT,
// RESOURCEWISE_VOCABULARY, JWT_SECRET, LOG_LEVEL and LOG_FORMAT.
func (c *Config) ApplyEnv() error {
	overrides := map[string]*string{
		"DATABASE_URL":             &c.DatabaseURL,
		"GEMINI_API_KEY":           &c.APIKey,
		"RESOURCEWISE_SESSION_DIR": &c.SessionDir,
		"RESOURCEWISE_CACHE_DIR":   &c.CacheDir,
		"RESOURCEWISE_VOCABULARY":  &c.Fuzzy.VocabularyPath,
		"JWT_SECRET":               &c.JWTSecret,
		"LOG_LEVEL":                &c.LogLevel,
		"LOG_FORMAT":               &c.LogFormat,
	}
	for key, field := range overrides {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}

	if v := os.Getenv("RESOURCEWISE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RESOURCEWISE_PORT: %v", err)
		}
		c.Port = port
	}
	return nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.LLMTimeoutSeconds < 0 || c.QueryTimeoutSeconds < 0 {
		return fmt.Errorf("config error: timeouts must be non-negative")
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("config error: 'max_rows' must be non-negative")
	}
	if c.MaxCombinations < 0 {
		return fmt.Errorf("config error: 'max_combinations' must be non-negative")
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config error: 'log_format' must be \"text\" or \"json\"")
	}

	if c.Fuzzy.VocabularyPath != "" {
		if _, err := os.Stat(c.Fuzzy.VocabularyPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: vocabulary file not found: %s", c.Fuzzy.VocabularyPath)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.SessionDir == "" {
		result.SessionDir = defaults.SessionDir
	}
	if result.CacheDir == "" {
		result.CacheDir = defaults.CacheDir
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogFormat == "" {
		result.LogFormat = defaults.LogFormat
	}
	if result.Fuzzy.VocabularyPath == "" {
		result.Fuzzy.VocabularyPath = defaults.Fuzzy.VocabularyPath
	}
	if len(result.CORSOrigins) == 0 {
		result.CORSOrigins = defaults.CORSOrigins
	}

	// Int fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.LLMTimeoutSeconds == 0 {
		result.LLMTimeoutSeconds = defaults.LLMTimeoutSeconds
	}
	if result.QueryTimeoutSeconds == 0 {
		result.QueryTimeoutSeconds = defaults.QueryTimeoutSeconds
	}
	if result.MaxRows == 0 {
		result.MaxRows = defaults.MaxRows
	}
	if result.MaxCombinations == 0 {
		result.MaxCombinations = defaults.MaxCombinations
	}
	if result.Fuzzy.EmbeddingCacheTTLHours == 0 {
		result.Fuzzy.EmbeddingCacheTTLHours = defaults.Fuzzy.EmbeddingCacheTTLHours
	}
	if result.Fuzzy.ClassifyTimeoutSeconds == 0 {
		result.Fuzzy.ClassifyTimeoutSeconds = defaults.Fuzzy.ClassifyTimeoutSeconds
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge

	return result
}

// LLMTimeout is the per-call language model budget.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// QueryTimeout is the statement timeout for generated queries.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// ClassifyTimeout bounds model classification of vague terms.
func (c *Config) ClassifyTimeout() time.Duration {
	return time.Duration(c.Fuzzy.ClassifyTimeoutSeconds) * time.Second
}

// EmbeddingCacheTTL is the lifetime of a cached term embedding.
func (c *Config) EmbeddingCacheTTL() time.Duration {
	return time.Duration(c.Fuzzy.EmbeddingCacheTTLHours) * time.Hour
}
