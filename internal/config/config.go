// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	StorageMode string // "sqlite" or "memory"
	CORSOrigins string

	SandboxRoot         string
	SandboxAllowOutside bool
	MaxSessionMinutes   int

	Parser ParserConfig
	LLM    LLMConfig
}

// ParserConfig controls the command interpreter.
type ParserConfig struct {
	Mode           string // "rules", "hybrid", or "llm"
	ConfidenceLow  float64
	ConfidenceHigh float64
}

// LLMConfig controls the optional fallback interpreter.
type LLMConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Enabled reports whether a fallback interpreter can be constructed.
func (l LLMConfig) Enabled() bool {
	return l.APIKey != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/axion.db"),
		StorageMode: getEnv("STORAGE_MODE", "sqlite"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		SandboxRoot:         getEnv("SANDBOX_ROOT", "./data/sandbox"),
		SandboxAllowOutside: getEnvBool("SANDBOX_ALLOW_OUTSIDE", false),
		MaxSessionMinutes:   getEnvInt("MAX_SESSION_MINUTES", 60),

		Parser: ParserConfig{
			Mode:           getEnv("PARSER_MODE", "rules"),
			ConfidenceLow:  getEnvFloat("CONFIDENCE_LOW", 0.55),
			ConfidenceHigh: getEnvFloat("CONFIDENCE_HIGH", 0.80),
		},
		LLM: LLMConfig{
			APIKey:  getEnv("LLM_API_KEY", ""),
			Model:   getEnv("LLM_MODEL", ""),
			BaseURL: getEnv("LLM_BASE_URL", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set and
// consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.SandboxRoot == "" {
		return fmt.Errorf("SANDBOX_ROOT cannot be empty")
	}
	if c.MaxSessionMinutes <= 0 {
		return fmt.Errorf("MAX_SESSION_MINUTES must be > 0")
	}

	switch c.StorageMode {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty in sqlite storage mode")
		}
	case "memory":
	default:
		return fmt.Errorf("STORAGE_MODE must be sqlite or memory, got %q", c.StorageMode)
	}

	switch c.Parser.Mode {
	case "rules", "hybrid", "llm":
	default:
		return fmt.Errorf("PARSER_MODE must be rules, hybrid, or llm, got %q", c.Parser.Mode)
	}

	if c.Parser.ConfidenceLow < 0 || c.Parser.ConfidenceLow > 1 {
		return fmt.Errorf("CONFIDENCE_LOW must be in [0, 1]")
	}
	if c.Parser.ConfidenceHigh < 0 || c.Parser.ConfidenceHigh > 1 {
		return fmt.Errorf("CONFIDENCE_HIGH must be in [0, 1]")
	}
	if c.Parser.ConfidenceLow > c.Parser.ConfidenceHigh {
		return fmt.Errorf("CONFIDENCE_LOW must not exceed CONFIDENCE_HIGH")
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}
