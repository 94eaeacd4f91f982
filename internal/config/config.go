// Package config provides configuration loading and validation for the API, worker and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Supported LLM providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds runtime settings. Values come from the environment (see Load),
// optionally layered over a JSON file (see LoadConfig and MergeWithDefaults).
type Config struct {
	// Storage
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	RedisURL    string `json:"redis_url,omitempty"`    // Redis URL for runs and queue

	// HTTP
	Port     int    `json:"port,omitempty"`
	LogLevel string `json:"log_level,omitempty"`

	// LLM
	LLMProvider  string `json:"llm_provider,omitempty"` // gemini or openai
	LLMModel     string `json:"llm_model,omitempty"`    // overrides the provider's standard model
	GeminiAPIKey string `json:"gemini_api_key,omitempty"`
	OpenAIAPIKey string `json:"openai_api_key,omitempty"`
	LLMPlainText bool   `json:"llm_plain_text,omitempty"` // disable JSON response mode for models without it

	// Runs
	WorkerConcurrency  int `json:"worker_concurrency,omitempty"`
	RunMaxAttempts     int `json:"run_max_attempts,omitempty"`
	RunMaxDurationSecs int `json:"run_max_duration_secs,omitempty"`

	// Fetching
	FetchTimeoutSecs int  `json:"fetch_timeout_secs,omitempty"`
	UseBrowser       bool `json:"use_browser,omitempty"` // re-render thin pages with headless Chrome

	// Scheduler
	PublishSweepSpec string `json:"publish_sweep_spec,omitempty"` // cron spec for the publication sweep
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:               8080,
		LogLevel:           "info",
		LLMProvider:        ProviderGemini,
		WorkerConcurrency:  4,
		RunMaxAttempts:     3,
		RunMaxDurationSecs: 300,
		FetchTimeoutSecs:   30,
		PublishSweepSpec:   "@every 5m",
	}
}

// Load reads configuration from environment variables on top of Defaults.
func Load() (*Config, error) {
	cfg := Defaults()

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.LLMModel = os.Getenv("LLM_MODEL")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLMProvider = strings.ToLower(v)
	}
	if v := os.Getenv("PUBLISH_SWEEP_SPEC"); v != "" {
		cfg.PublishSweepSpec = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"PORT", &cfg.Port},
		{"WORKER_CONCURRENCY", &cfg.WorkerConcurrency},
		{"RUN_MAX_ATTEMPTS", &cfg.RunMaxAttempts},
		{"RUN_MAX_DURATION_SECS", &cfg.RunMaxDurationSecs},
		{"FETCH_TIMEOUT_SECS", &cfg.FetchTimeoutSecs},
	}
	for _, v := range ints {
		raw := os.Getenv(v.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %v", v.name, err)
		}
		*v.dst = n
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"FETCH_USE_BROWSER", &cfg.UseBrowser},
		{"LLM_PLAIN_TEXT", &cfg.LLMPlainText},
	}
	for _, v := range bools {
		raw := os.Getenv(v.name)
		if raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %v", v.name, err)
		}
		*v.dst = b
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
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

// Validate checks that the configuration has valid values.
// Presence of connection strings and keys is checked by Require, since
// not every command needs every backend.
func (c *Config) Validate() error {
	if c.LLMProvider != "" && c.LLMProvider != ProviderGemini && c.LLMProvider != ProviderOpenAI {
		return fmt.Errorf("config error: unsupported llm_provider %q", c.LLMProvider)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' out of range: %d", c.Port)
	}
	if c.WorkerConcurrency < 0 {
		return fmt.Errorf("config error: 'worker_concurrency' must be non-negative")
	}
	if c.RunMaxAttempts < 0 {
		return fmt.Errorf("config error: 'run_max_attempts' must be non-negative")
	}
	if c.RunMaxDurationSecs < 0 {
		return fmt.Errorf("config error: 'run_max_duration_secs' must be non-negative")
	}
	if c.FetchTimeoutSecs < 0 {
		return fmt.Errorf("config error: 'fetch_timeout_secs' must be non-negative")
	}
	return nil
}

// Requirement names a backend a command depends on.
type Requirement int

const (
	NeedDatabase Requirement = iota
	NeedRedis
	NeedLLM
)

// Require reports every missing environment variable for the given needs in one error.
func (c *Config) Require(needs ...Requirement) error {
	var missingVars []string
	for _, n := range needs {
		switch n {
		case NeedDatabase:
			if c.DatabaseURL == "" {
				missingVars = append(missingVars, "DATABASE_URL")
			}
		case NeedRedis:
			if c.RedisURL == "" {
				missingVars = append(missingVars, "REDIS_URL")
			}
		case NeedLLM:
			if key, name := c.LLMAPIKey(); key == "" {
				missingVars = append(missingVars, name)
			}
		}
	}
	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missingVars, ", "))
	}
	return nil
}

// LLMAPIKey returns the API key for the configured provider and the
// environment variable it is read from.
func (c *Config) LLMAPIKey() (key, envVar string) {
	if c.LLMProvider == ProviderOpenAI {
		return c.OpenAIAPIKey, "OPENAI_API_KEY"
	}
	return c.GeminiAPIKey, "GEMINI_API_KEY"
}

// RunMaxDuration is the per-attempt time limit of a run.
func (c *Config) RunMaxDuration() time.Duration {
	return time.Duration(c.RunMaxDurationSecs) * time.Second
}

// FetchTimeout is the HTTP timeout used by the page fetcher.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSecs) * time.Second
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// Used to apply config file values beneath environment values.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	strs := []struct{ dst, def *string }{
		{&result.DatabaseURL, &defaults.DatabaseURL},
		{&result.RedisURL, &defaults.RedisURL},
		{&result.LogLevel, &defaults.LogLevel},
		{&result.LLMProvider, &defaults.LLMProvider},
		{&result.LLMModel, &defaults.LLMModel},
		{&result.GeminiAPIKey, &defaults.GeminiAPIKey},
		{&result.OpenAIAPIKey, &defaults.OpenAIAPIKey},
		{&result.PublishSweepSpec, &defaults.PublishSweepSpec},
	}
	for _, s := range strs {
		if *s.dst == "" {
			*s.dst = *s.def
		}
	}

	nums := []struct{ dst, def *int }{
		{&result.Port, &defaults.Port},
		{&result.WorkerConcurrency, &defaults.WorkerConcurrency},
		{&result.RunMaxAttempts, &defaults.RunMaxAttempts},
		{&result.RunMaxDurationSecs, &defaults.RunMaxDurationSecs},
		{&result.FetchTimeoutSecs, &defaults.FetchTimeoutSecs},
	}
	for _, n := range nums {
		if *n.dst == 0 {
			*n.dst = *n.def
		}
	}

	// Bools cannot distinguish unset from false; either side enabling wins.
	result.UseBrowser = result.UseBrowser || defaults.UseBrowser
	result.LLMPlainText = result.LLMPlainText || defaults.LLMPlainText

	return result
}
