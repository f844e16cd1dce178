// Package config provides configuration loading and validation for the helper.
// It supports TOML configuration files with environment variable expansion,
// default values, and validation.
//
// Configuration structure:
//   - [telegram]: Bot token and allowed user ids
//   - [gemini]: Gemini API key, model and call limits
//   - [vault]: Vault root, tasks directory and global events file
//   - [history]: Conversation history file and prompt window
//   - [logging]: Logging level, format, and output
//   - [metrics]: Prometheus listener
//
// Environment variables can be referenced using ${VAR} or ${VAR:default} syntax.
// For example: api_key = "${GEMINI_API_KEY}"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration.
type Config struct {
	Telegram TelegramConfig `toml:"telegram"`
	Gemini   GeminiConfig   `toml:"gemini"`
	Vault    VaultConfig    `toml:"vault"`
	History  HistoryConfig  `toml:"history"`
	Logging  LoggingConfig  `toml:"logging"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// TelegramConfig holds the bot transport settings.
type TelegramConfig struct {
	Token          string  `toml:"token"`
	AllowedUserIDs []int64 `toml:"allowed_user_ids"`
}

// GeminiConfig holds the LLM provider settings.
type GeminiConfig struct {
	APIKey          string `toml:"api_key"`
	Model           string `toml:"model"`
	MaxOutputTokens int    `toml:"max_output_tokens"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// VaultConfig holds the markdown vault settings.
type VaultConfig struct {
	Path             string `toml:"path"`
	TasksDir         string `toml:"tasks_dir"`
	GlobalEventsFile string `toml:"global_events_file"`
}

// HistoryConfig holds the conversation history settings.
type HistoryConfig struct {
	Path             string `toml:"path"`
	MaxPromptEntries int    `toml:"max_prompt_entries"`
}

// LoggingConfig holds the logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// MetricsConfig holds the Prometheus listener settings.
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}

// Load reads and parses the configuration from a TOML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)

	return &cfg, nil
}

// applyDefaults fills in default values for unset fields.
func applyDefaults(c *Config) {
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Gemini.MaxOutputTokens == 0 {
		c.Gemini.MaxOutputTokens = 20000
	}
	if c.Gemini.TimeoutSeconds == 0 {
		c.Gemini.TimeoutSeconds = 30
	}
	if c.Vault.TasksDir == "" {
		c.Vault.TasksDir = "03 - Tasks"
	}
	if c.Vault.GlobalEventsFile == "" {
		c.Vault.GlobalEventsFile = "global_recurring_events.json"
	}
	if c.History.Path == "" {
		c.History.Path = "conversation_history.json"
	}
	if c.History.MaxPromptEntries == 0 {
		c.History.MaxPromptEntries = 40
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
}

// expandEnvVars expands environment references and home-relative paths.
func expandEnvVars(c *Config) {
	c.Telegram.Token = expandEnv(c.Telegram.Token)
	c.Gemini.APIKey = expandEnv(c.Gemini.APIKey)
	c.Vault.Path = expandHome(expandEnv(c.Vault.Path))
	c.History.Path = expandHome(expandEnv(c.History.Path))
	c.Logging.Output = expandHome(c.Logging.Output)
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() []error {
	var errs []error

	if c.Telegram.Token == "" {
		errs = append(errs, fmt.Errorf("telegram.token is required"))
	}
	if len(c.Telegram.AllowedUserIDs) == 0 {
		errs = append(errs, fmt.Errorf("telegram.allowed_user_ids must list at least one user"))
	}
	if c.Gemini.APIKey == "" {
		errs = append(errs, fmt.Errorf("gemini.api_key is required"))
	}
	if c.Vault.Path == "" {
		errs = append(errs, fmt.Errorf("vault.path is required"))
	} else if !filepath.IsAbs(c.Vault.Path) {
		errs = append(errs, fmt.Errorf("vault.path must be an absolute path, got %q", c.Vault.Path))
	}
	if c.Gemini.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("gemini.timeout_seconds must not be negative"))
	}
	if c.History.MaxPromptEntries < 0 {
		errs = append(errs, fmt.Errorf("history.max_prompt_entries must not be negative"))
	}

	return errs
}

// expandEnv expands a single ${VAR} or ${VAR:default} reference.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		key := parts[0]
		defaultVal := parts[1]
		if val := os.Getenv(key); val != "" {
			return val
		}
		return defaultVal
	}

	return os.Getenv(content)
}

// expandHome expands a leading ~ in a path.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
