package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PRTRIAGE_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yml"))
	// An explicitly configured file must exist.
	_, err := Load()
	require.Error(t, err)

	t.Setenv("PRTRIAGE_CONFIG_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "prtriage.db", cfg.HistoryPath)
	assert.True(t, cfg.Detect.Enabled)
	assert.Equal(t, 40, cfg.Scoring.MinBodyChars)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PRTRIAGE_GITHUB_TOKEN", "tok-123")
	t.Setenv("PRTRIAGE_LISTEN_ADDR", ":9999")
	t.Setenv("PRTRIAGE_WEBHOOK_SECRET", "hunter2")
	t.Setenv("PRTRIAGE_HISTORY_PATH", "")
	t.Setenv("PRTRIAGE_DETECT_MAX_COMPARISONS", "12")
	t.Setenv("PRTRIAGE_SCORE_LOW_QUALITY", "60")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tok-123", cfg.GitHubToken)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "hunter2", cfg.WebhookSecret)
	assert.Empty(t, cfg.HistoryPath, "explicit empty path disables history")
	assert.Equal(t, 12, cfg.Detect.MaxComparisons)
	assert.Equal(t, 60, cfg.Scoring.LowQuality)
}

func TestLoadPrefersDedicatedTokenVar(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "generic")
	t.Setenv("PRTRIAGE_GITHUB_TOKEN", "dedicated")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dedicated", cfg.GitHubToken)
}

func TestLoadYamlOverridesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prtriage.yml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":7777\"\nwebhook_secret: from-file\n"), 0644))

	t.Setenv("PRTRIAGE_LISTEN_ADDR", ":9999")
	t.Setenv("PRTRIAGE_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.ListenAddr, "file layer wins over env")
	assert.Equal(t, "from-file", cfg.WebhookSecret)
}

func TestLoadRejectsMalformedYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prtriage.yml")
	require.NoError(t, os.WriteFile(path, []byte(":\n\t- not yaml"), 0644))

	t.Setenv("PRTRIAGE_CONFIG_FILE", path)

	_, err := Load()
	require.Error(t, err)
}

func TestLoadNormalizesNestedConfigs(t *testing.T) {
	t.Setenv("PRTRIAGE_DETECT_CONCURRENCY", "9999") // out of range

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Detect.FetchConcurrency, cfg.Detect.FetchConcurrency)
}
