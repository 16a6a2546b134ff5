// Package config loads service configuration from the environment, with an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      int
	APIPrefix string

	LogLevel   string
	LogFormat  string // "json" or "text"
	LogBackend string // "slog" or "zap"

	OpenAI     ProviderConfig
	Groq       ProviderConfig
	Anthropic  ProviderConfig
	SerpAPI    SearchConfig
	DuckDuckGo SearchConfig

	AdapterTimeout     time.Duration
	AdapterMaxInFlight int

	SearchDeadline       time.Duration
	CompactionBudget     int
	MaxValidationRetries int
	SessionTTL           time.Duration
	MemoryBankSize       int

	OTelEnabled     bool
	OTelServiceName string
	OTelEndpoint    string
}

// ProviderConfig addresses a language-model backend. An empty APIKey
// disables it.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// SearchConfig addresses a web search backend.
type SearchConfig struct {
	Enabled  bool
	APIKey   string
	Endpoint string
}

// Load reads files (default ".env") into the environment without
// overriding variables already set, then builds and validates the Config.
// Missing files are not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	serpKey := envStr("SERPAPI_API_KEY", "")
	cfg := &Config{
		Port:       envInt("PORT", 8000),
		APIPrefix:  envStr("API_PREFIX", "/api/v1"),
		LogLevel:   envStr("LOG_LEVEL", "info"),
		LogFormat:  strings.ToLower(envStr("LOG_FORMAT", "json")),
		LogBackend: strings.ToLower(envStr("LOG_BACKEND", "slog")),
		OpenAI: ProviderConfig{
			APIKey:  envStr("OPENAI_API_KEY", ""),
			BaseURL: envStr("OPENAI_BASE_URL", ""),
			Model:   envStr("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Groq: ProviderConfig{
			APIKey:  envStr("GROQ_API_KEY", ""),
			BaseURL: "https://api.groq.com/openai/v1/",
			Model:   envStr("GROQ_MODEL", "llama-3.3-70b-versatile"),
		},
		Anthropic: ProviderConfig{
			APIKey: envStr("ANTHROPIC_API_KEY", ""),
			Model:  envStr("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		},
		SerpAPI: SearchConfig{
			Enabled:  serpKey != "",
			APIKey:   serpKey,
			Endpoint: envStr("SERPAPI_ENDPOINT", "https://serpapi.com/search.json"),
		},
		DuckDuckGo: SearchConfig{
			Enabled:  envBool("DUCKDUCKGO_ENABLED", true),
			Endpoint: envStr("DUCKDUCKGO_ENDPOINT", "https://api.duckduckgo.com/"),
		},
		AdapterTimeout:       envDuration("ADAPTER_TIMEOUT", 30*time.Second),
		AdapterMaxInFlight:   envInt("ADAPTER_MAX_INFLIGHT", 16),
		SearchDeadline:       envDuration("SEARCH_DEADLINE", 45*time.Second),
		CompactionBudget:     envInt("COMPACTION_BUDGET", 4000),
		MaxValidationRetries: envInt("MAX_VALIDATION_RETRIES", 3),
		SessionTTL:           envDuration("SESSION_TTL", time.Hour),
		MemoryBankSize:       envInt("MEMORY_BANK_SIZE", 1000),
		OTelEnabled:          envBool("OTEL_ENABLED", false),
		OTelServiceName:      envStr("OTEL_SERVICE_NAME", "med-procedure"),
		OTelEndpoint:         envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.APIPrefix != "" && !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("API_PREFIX must start with /, got %q", c.APIPrefix)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.LogBackend != "slog" && c.LogBackend != "zap" {
		return fmt.Errorf("LOG_BACKEND must be slog or zap, got %q", c.LogBackend)
	}
	if c.MaxValidationRetries < 0 {
		return fmt.Errorf("MAX_VALIDATION_RETRIES must not be negative, got %d", c.MaxValidationRetries)
	}
	if c.CompactionBudget < 0 {
		return fmt.Errorf("COMPACTION_BUDGET must not be negative, got %d", c.CompactionBudget)
	}
	if c.AdapterTimeout <= 0 || c.SearchDeadline <= 0 {
		return fmt.Errorf("ADAPTER_TIMEOUT and SEARCH_DEADLINE must be positive")
	}
	if c.MemoryBankSize < 1 {
		return fmt.Errorf("MEMORY_BANK_SIZE must be positive, got %d", c.MemoryBankSize)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go durations ("45s") and plain seconds ("45").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if s, err := strconv.Atoi(v); err == nil {
		return time.Duration(s) * time.Second
	}
	return fallback
}
