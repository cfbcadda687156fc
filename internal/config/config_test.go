package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database != "voxlog.db" {
		t.Errorf("Database = %q", cfg.Database)
	}
	if cfg.Query.TopK != 5 {
		t.Errorf("TopK = %d, want 5", cfg.Query.TopK)
	}
	if cfg.Backfill.Schedule != "*/15 * * * *" {
		t.Errorf("Schedule = %q", cfg.Backfill.Schedule)
	}
	if cfg.Location() == nil {
		t.Error("Location is nil")
	}
}

func TestLoad_ParsesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxlog.yaml")
	data := `
timezone: Europe/Berlin
database: /tmp/j.db
completion:
  model: gpt-4o
query:
  top_k: 3
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Completion.Model != "gpt-4o" {
		t.Errorf("Completion.Model = %q", cfg.Completion.Model)
	}
	if cfg.Query.TopK != 3 {
		t.Errorf("TopK = %d", cfg.Query.TopK)
	}
	if cfg.Location().String() != "Europe/Berlin" {
		t.Errorf("Location = %s", cfg.Location())
	}
	// Untouched fields still get defaults.
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("Embedding.Model = %q", cfg.Embedding.Model)
	}
}

func TestLoad_EnvOverridesToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("OPENAI_API_KEY", "env-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("Token = %q", cfg.Telegram.Token)
	}
	if cfg.Completion.APIKey != "env-key" || cfg.Embedding.APIKey != "env-key" {
		t.Error("OPENAI_API_KEY not applied to providers")
	}
}

func TestNormalize_RejectsBadTimezone(t *testing.T) {
	cfg := &Config{Timezone: "Mars/Olympus_Mons"}
	if err := cfg.Normalize(); err == nil {
		t.Error("bad timezone accepted")
	}
}
