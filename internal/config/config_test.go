package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"database_url": "postgres://localhost/apply",
		"redis_url": "redis://localhost:6379/0",
		"llm_provider": "openai",
		"worker_concurrency": 8,
		"use_browser": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "postgres://localhost/apply", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, 8, cfg.WorkerConcurrency)
	assert.True(t, cfg.UseBrowser)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "WORKER_CONCURRENCY", "RUN_MAX_ATTEMPTS", "RUN_MAX_DURATION_SECS",
		"FETCH_TIMEOUT_SECS", "FETCH_USE_BROWSER", "LLM_PROVIDER", "LLM_PLAIN_TEXT", "LOG_LEVEL", "PUBLISH_SWEEP_SPEC"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ProviderGemini, cfg.LLMProvider)
	assert.Equal(t, 3, cfg.RunMaxAttempts)
	assert.Equal(t, 300*time.Second, cfg.RunMaxDuration())
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
	assert.False(t, cfg.UseBrowser)
	assert.False(t, cfg.LLMPlainText)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WORKER_CONCURRENCY", "2")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("FETCH_USE_BROWSER", "true")
	t.Setenv("RUN_MAX_DURATION_SECS", "60")
	t.Setenv("LLM_PLAIN_TEXT", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 2, cfg.WorkerConcurrency)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.True(t, cfg.UseBrowser)
	assert.Equal(t, time.Minute, cfg.RunMaxDuration())
	assert.True(t, cfg.LLMPlainText)

	key, env := cfg.LLMAPIKey()
	assert.Equal(t, "sk-test", key)
	assert.Equal(t, "OPENAI_API_KEY", env)
}

func TestLoad_InvalidInteger(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "many")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKER_CONCURRENCY")
}

func TestLoad_InvalidBool(t *testing.T) {
	t.Setenv("LLM_PLAIN_TEXT", "sometimes")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_PLAIN_TEXT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"defaults", Defaults(), ""},
		{"unknown provider", Config{LLMProvider: "mistral"}, "unsupported llm_provider"},
		{"negative workers", Config{WorkerConcurrency: -1}, "worker_concurrency"},
		{"negative attempts", Config{RunMaxAttempts: -1}, "run_max_attempts"},
		{"port out of range", Config{Port: 70000}, "port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRequire_ListsAllMissing(t *testing.T) {
	cfg := Defaults()

	err := cfg.Require(NeedDatabase, NeedRedis, NeedLLM)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "REDIS_URL")
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	cfg.DatabaseURL = "postgres://x"
	cfg.RedisURL = "redis://x"
	cfg.GeminiAPIKey = "key"
	assert.NoError(t, cfg.Require(NeedDatabase, NeedRedis, NeedLLM))
}

func TestMergeWithDefaults(t *testing.T) {
	file := Config{
		DatabaseURL:  "postgres://file",
		Port:         3000,
		UseBrowser:   true,
		LLMPlainText: true,
	}
	env := Config{
		DatabaseURL:  "postgres://env",
		GeminiAPIKey: "env-key",
	}

	merged := env.MergeWithDefaults(file)
	assert.Equal(t, "postgres://env", merged.DatabaseURL, "environment value wins")
	assert.Equal(t, 3000, merged.Port, "file value fills gaps")
	assert.Equal(t, "env-key", merged.GeminiAPIKey)
	assert.True(t, merged.UseBrowser)
	assert.True(t, merged.LLMPlainText)
}
