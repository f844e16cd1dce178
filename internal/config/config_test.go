package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
[telegram]
token = "123:abc"
allowed_user_ids = [42]

[gemini]
api_key = "key"
model = "gemini-2.5-pro"
timeout_seconds = 10

[vault]
path = "/data/vault"
tasks_dir = "Tasks"

[history]
path = "/data/history.json"
max_prompt_entries = 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, []int64{42}, cfg.Telegram.AllowedUserIDs)
	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)
	assert.Equal(t, 10, cfg.Gemini.TimeoutSeconds)
	assert.Equal(t, "/data/vault", cfg.Vault.Path)
	assert.Equal(t, "Tasks", cfg.Vault.TasksDir)
	assert.Empty(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
[telegram]
token = "123:abc"
allowed_user_ids = [42]

[gemini]
api_key = "key"

[vault]
path = "/data/vault"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, 20000, cfg.Gemini.MaxOutputTokens)
	assert.Equal(t, 30, cfg.Gemini.TimeoutSeconds)
	assert.Equal(t, "03 - Tasks", cfg.Vault.TasksDir)
	assert.Equal(t, "global_recurring_events.json", cfg.Vault.GlobalEventsFile)
	assert.Equal(t, 40, cfg.History.MaxPromptEntries)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "secret-key")
	t.Setenv("TEST_BOT_TOKEN", "")

	path := writeConfig(t, `
[telegram]
token = "${TEST_BOT_TOKEN:fallback-token}"
allowed_user_ids = [42]

[gemini]
api_key = "${TEST_GEMINI_KEY}"

[vault]
path = "/data/vault"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret-key", cfg.Gemini.APIKey)
	assert.Equal(t, "fallback-token", cfg.Telegram.Token)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadInvalidTOML(t *testing.T) {
	path := writeConfig(t, `[telegram` + "\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }, "telegram.token"},
		{"no users", func(c *Config) { c.Telegram.AllowedUserIDs = nil }, "allowed_user_ids"},
		{"missing api key", func(c *Config) { c.Gemini.APIKey = "" }, "gemini.api_key"},
		{"missing vault path", func(c *Config) { c.Vault.Path = "" }, "vault.path"},
		{"relative vault path", func(c *Config) { c.Vault.Path = "vault" }, "absolute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Telegram: TelegramConfig{Token: "t", AllowedUserIDs: []int64{1}},
				Gemini:   GeminiConfig{APIKey: "k"},
				Vault:    VaultConfig{Path: "/vault"},
			}
			tt.mutate(cfg)

			errs := cfg.Validate()
			require.NotEmpty(t, errs)
			assert.Contains(t, errs[0].Error(), tt.message)
		})
	}
}
