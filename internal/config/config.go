// Package config assembles the application configuration from three
// layers: a .env file (godotenv), PRTRIAGE_* environment variables, and
// an optional prtriage.yml override file. Later layers win. Malformed
// values fall back to defaults; configuration degrades a run, never
// breaks it.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/prtriage/prtriage/internal/detect"
	"github.com/prtriage/prtriage/internal/scoring"
)

// DefaultOverrideFile is the yaml override looked for in the working
// directory when PRTRIAGE_CONFIG_FILE is unset.
const DefaultOverrideFile = "prtriage.yml"

// Config is the full application configuration.
type Config struct {
	// GitHubToken authenticates the REST client.
	// Env: PRTRIAGE_GITHUB_TOKEN (GITHUB_TOKEN as fallback)
	GitHubToken string `yaml:"github_token"`

	// ListenAddr is the webhook server bind address.
	// Default: ":8080". Env: PRTRIAGE_LISTEN_ADDR
	ListenAddr string `yaml:"listen_addr"`

	// WebhookSecret is the shared HMAC secret for webhook verification.
	// Env: PRTRIAGE_WEBHOOK_SECRET
	WebhookSecret string `yaml:"webhook_secret"`

	// HistoryPath is the SQLite run-history database path. Empty
	// disables history. Default: "prtriage.db". Env: PRTRIAGE_HISTORY_PATH
	HistoryPath string `yaml:"history_path"`

	// Detect holds the duplicate-detection knobs, clamped on use.
	Detect detect.Config `yaml:"detect"`

	// Scoring holds the quality rule thresholds.
	Scoring scoring.Thresholds `yaml:"scoring"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		ListenAddr:  ":8080",
		HistoryPath: "prtriage.db",
		Detect:      detect.DefaultConfig(),
		Scoring:     scoring.DefaultThresholds(),
	}
}

// Load builds the configuration: .env, then environment, then the yaml
// override file when present. The result is normalized.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env is fine

	cfg := Default()
	cfg.applyEnv()

	path := os.Getenv("PRTRIAGE_CONFIG_FILE")
	explicit := path != ""
	if !explicit {
		path = DefaultOverrideFile
	}
	if err := cfg.applyFile(path); err != nil {
		if explicit || !os.IsNotExist(err) {
			return Config{}, err
		}
	}

	cfg.Detect = cfg.Detect.Normalized()
	cfg.Scoring = cfg.Scoring.Normalized()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHubToken = v
	}
	if v := os.Getenv("PRTRIAGE_GITHUB_TOKEN"); v != "" {
		c.GitHubToken = v
	}
	if v := os.Getenv("PRTRIAGE_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("PRTRIAGE_WEBHOOK_SECRET"); v != "" {
		c.WebhookSecret = v
	}
	if v, ok := os.LookupEnv("PRTRIAGE_HISTORY_PATH"); ok {
		c.HistoryPath = v
	}

	c.Detect = detect.ConfigFromEnv()

	readEnvInt("PRTRIAGE_SCORE_MIN_BODY", &c.Scoring.MinBodyChars)
	readEnvInt("PRTRIAGE_SCORE_TRIVIAL_LINES", &c.Scoring.TrivialLineCount)
	readEnvInt("PRTRIAGE_SCORE_SHOTGUN_FILES", &c.Scoring.ShotgunFileCount)
	readEnvInt("PRTRIAGE_SCORE_LOW_QUALITY", &c.Scoring.LowQuality)
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func readEnvInt(key string, dest *int) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		*dest = parsed
	}
}
