// Package config loads CLI configuration from an optional YAML file with
// environment variable overrides. Secrets (the app password) are never read
// from the config file; they come from the environment only.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the CLI. Every consumer receives this
// struct explicitly; there is no ambient global state.
type Config struct {
	// PDS is the personal data server base URL. Empty means the client's
	// default (https://bsky.social).
	PDS string `yaml:"pds"`

	// Identifier is the account handle or email used for login.
	Identifier string `yaml:"identifier"`

	// SessionFile is where session tokens are cached between invocations.
	SessionFile string `yaml:"session_file"`

	// HistoryFile is the SQLite database recording created posts.
	HistoryFile string `yaml:"history_file"`

	// SlackWebhookURL receives relayed notification text.
	SlackWebhookURL string `yaml:"slack_webhook_url"`

	// BrowserURL is the DevTools HTTP endpoint of a running browser.
	BrowserURL string `yaml:"browser_url"`

	// Langs are the language tags recorded on composed posts.
	Langs []string `yaml:"langs"`
}

// DefaultPath returns the default config file location under the user's
// config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(dir, "bluesky-post", "config.yaml"), nil
}

// Load reads configuration from the YAML file at path, then applies
// environment variable overrides and defaults. An empty path means the
// default location; a missing file there is fine, but an explicitly given
// path must exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	explicit := path != ""
	if !explicit {
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist) && !explicit:
			// no config file, env and defaults only
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BSKY_PDS"); v != "" {
		cfg.PDS = v
	}
	if v := os.Getenv("BSKY_IDENTIFIER"); v != "" {
		cfg.Identifier = v
	}
	if v := os.Getenv("BSKY_SESSION_FILE"); v != "" {
		cfg.SessionFile = v
	}
	if v := os.Getenv("BSKY_HISTORY_FILE"); v != "" {
		cfg.HistoryFile = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.SlackWebhookURL = v
	}
	if v := os.Getenv("BSKY_BROWSER_URL"); v != "" {
		cfg.BrowserURL = v
	}
	if v := os.Getenv("BSKY_LANGS"); v != "" {
		cfg.Langs = nil
		for _, lang := range strings.Split(v, ",") {
			if lang = strings.TrimSpace(lang); lang != "" {
				cfg.Langs = append(cfg.Langs, lang)
			}
		}
	}
}

func applyDefaults(cfg *Config) error {
	if cfg.SessionFile == "" || cfg.HistoryFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("locate config directory: %w", err)
		}
		if cfg.SessionFile == "" {
			cfg.SessionFile = filepath.Join(dir, "bluesky-post", "session.json")
		}
		if cfg.HistoryFile == "" {
			cfg.HistoryFile = filepath.Join(dir, "bluesky-post", "history.db")
		}
	}
	if cfg.BrowserURL == "" {
		cfg.BrowserURL = "http://127.0.0.1:9222"
	}
	return nil
}
