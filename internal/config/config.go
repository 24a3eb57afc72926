// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"
)

var defaultModels = map[string]string{
	ProviderGroq:   "llama-3.3-70b-versatile",
	ProviderOpenAI: "gpt-4o-mini",
	ProviderGemini: "gemini-2.0-flash",
}

// Config holds all application configuration.
type Config struct {
	Port     string
	LogLevel string
	LLM      LLMConfig
	Session  SessionConfig
}

// LLMConfig selects the text-generation service. The model is operator
// configuration and is never taken from a request.
type LLMConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	// ParamPrefix, when set, makes the API key come from SSM instead of APIKey.
	ParamPrefix string
	Timeout     time.Duration
}

type SessionConfig struct {
	Backend   string
	Table     string
	RedisAddr string
	TTL       time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	provider := strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", ProviderGroq)))

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LLM: LLMConfig{
			Provider:    provider,
			Model:       getEnv("LLM_MODEL", defaultModels[provider]),
			BaseURL:     getEnv("LLM_BASE_URL", ""),
			APIKey:      getEnv("LLM_API_KEY", ""),
			ParamPrefix: getEnv("PARAM_PREFIX", ""),
			Timeout:     getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Session: SessionConfig{
			Backend:   strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", BackendMemory))),
			Table:     getEnv("SESSION_TABLE", ""),
			RedisAddr: getEnv("REDIS_ADDR", ""),
			TTL:       getEnvDuration("SESSION_TTL", time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if _, ok := defaultModels[c.LLM.Provider]; !ok {
		return fmt.Errorf("LLM_PROVIDER must be one of groq, openai, gemini (got %q)", c.LLM.Provider)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be > 0")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	switch c.Session.Backend {
	case BackendMemory:
	case BackendDynamoDB:
		if c.Session.Table == "" {
			return fmt.Errorf("SESSION_TABLE is required for the dynamodb session backend")
		}
	case BackendRedis:
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis session backend")
		}
	default:
		return fmt.Errorf("SESSION_BACKEND must be one of memory, dynamodb, redis (got %q)", c.Session.Backend)
	}
	return nil
}

// SlogLevel parses LogLevel, falling back to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// UsesAWS reports whether any configured component needs AWS credentials.
func (c *Config) UsesAWS() bool {
	return c.LLM.ParamPrefix != "" || c.Session.Backend == BackendDynamoDB
}

// getEnv treats a blank variable as unset so an empty .env entry keeps the default.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go duration strings or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getEnvInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
