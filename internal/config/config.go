// Package config loads and normalizes the voxlog YAML configuration.
// Secrets (API keys, bot token) come from the environment so config
// files stay safe to commit.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Timezone string `yaml:"timezone"` // IANA name, default "Local"
	Database string `yaml:"database"` // SQLite path, default "voxlog.db"

	Telegram      TelegramConfig      `yaml:"telegram"`
	Completion    CompletionConfig    `yaml:"completion"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Archive       ArchiveConfig       `yaml:"archive"`
	Backfill      BackfillConfig      `yaml:"backfill"`
	Query         QueryConfig         `yaml:"query"`

	loc *time.Location
}

// TelegramConfig configures the bot transport.
type TelegramConfig struct {
	Token          string  `yaml:"token"` // overridden by TELEGRAM_BOT_TOKEN
	AllowedUserIDs []int64 `yaml:"allowed_user_ids"`
}

// CompletionConfig configures the text-completion provider.
type CompletionConfig struct {
	APIKey    string `yaml:"api_key"` // overridden by OPENAI_API_KEY
	APIBase   string `yaml:"api_base"`
	Model     string `yaml:"model"`
	TimeoutMs int    `yaml:"timeout_ms"`
	RPM       int    `yaml:"rpm"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"` // overridden by OPENAI_API_KEY
	APIBase    string `yaml:"api_base"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	RPM        int    `yaml:"rpm"`
}

// TranscriptionConfig configures the speech-to-text provider.
type TranscriptionConfig struct {
	APIKey    string `yaml:"api_key"` // overridden by OPENAI_API_KEY
	APIBase   string `yaml:"api_base"`
	Model     string `yaml:"model"`
	Language  string `yaml:"language"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ArchiveConfig configures the S3 audio archive. Disabled by default.
type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint"`
}

// BackfillConfig configures the embedding backfill schedule.
type BackfillConfig struct {
	Schedule  string `yaml:"schedule"` // cron expression
	BatchSize int    `yaml:"batch_size"`
}

// QueryConfig tunes retrieval and answer composition.
type QueryConfig struct {
	TopK             int `yaml:"top_k"`
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// Load reads the file at path (missing file means all defaults), applies
// environment overrides, and normalizes.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.Completion.APIKey == "" {
			c.Completion.APIKey = v
		}
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = v
		}
		if c.Transcription.APIKey == "" {
			c.Transcription.APIKey = v
		}
	}
}

// Normalize fills defaults and resolves the timezone.
func (c *Config) Normalize() error {
	if c.Database == "" {
		c.Database = "voxlog.db"
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	c.loc = loc

	if c.Completion.Model == "" {
		c.Completion.Model = "gpt-4o-mini"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Transcription.Model == "" {
		c.Transcription.Model = "whisper-1"
	}
	if c.Backfill.Schedule == "" {
		c.Backfill.Schedule = "*/15 * * * *"
	}
	if c.Backfill.BatchSize <= 0 {
		c.Backfill.BatchSize = 50
	}
	if c.Query.TopK <= 0 {
		c.Query.TopK = 5
	}
	if c.Query.MaxContextTokens <= 0 {
		c.Query.MaxContextTokens = 6000
	}
	return nil
}

// Location returns the resolved timezone.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}
