package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
pds: https://pds.example
identifier: alice.example
session_file: /tmp/sess.json
history_file: /tmp/hist.db
langs: [en, ja]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BSKY_PDS", "https://override.example")
	t.Setenv("BSKY_LANGS", "fr, de")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.example/T/B/x")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.PDS != "https://override.example" {
		t.Errorf("pds = %q", cfg.PDS)
	}
	if cfg.Identifier != "alice.example" {
		t.Errorf("identifier = %q", cfg.Identifier)
	}
	if len(cfg.Langs) != 2 || cfg.Langs[0] != "fr" || cfg.Langs[1] != "de" {
		t.Errorf("langs = %v", cfg.Langs)
	}
	if cfg.SlackWebhookURL != "https://hooks.slack.example/T/B/x" {
		t.Errorf("slack webhook = %q", cfg.SlackWebhookURL)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("want error for missing explicit config file")
	}
}

func TestLoadDefaults(t *testing.T) {
	// nonexistent default config file is fine
	t.Setenv("BSKY_SESSION_FILE", "")
	t.Setenv("BSKY_HISTORY_FILE", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SessionFile == "" || cfg.HistoryFile == "" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.BrowserURL != "http://127.0.0.1:9222" {
		t.Errorf("browser url = %q", cfg.BrowserURL)
	}
}
