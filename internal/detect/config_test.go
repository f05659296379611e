package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizedClampsToDefaults(t *testing.T) {
	d := DefaultConfig()

	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(*testing.T, Config)
	}{
		{
			name:   "negative comparison cap",
			mutate: func(c *Config) { c.MaxComparisons = -5 },
			check: func(t *testing.T, c Config) {
				assert.Equal(t, d.MaxComparisons, c.MaxComparisons)
			},
		},
		{
			name:   "zero concurrency",
			mutate: func(c *Config) { c.FetchConcurrency = 0 },
			check: func(t *testing.T, c Config) {
				assert.Equal(t, d.FetchConcurrency, c.FetchConcurrency)
			},
		},
		{
			name:   "threshold above one",
			mutate: func(c *Config) { c.FileOverlapThreshold = 1.7 },
			check: func(t *testing.T, c Config) {
				assert.Equal(t, d.FileOverlapThreshold, c.FileOverlapThreshold)
			},
		},
		{
			name:   "negative threshold",
			mutate: func(c *Config) { c.StructuralThreshold = -0.1 },
			check: func(t *testing.T, c Config) {
				assert.Equal(t, d.StructuralThreshold, c.StructuralThreshold)
			},
		},
		{
			name:   "vector size too small",
			mutate: func(c *Config) { c.VectorSize = 2 },
			check: func(t *testing.T, c Config) {
				assert.Equal(t, d.VectorSize, c.VectorSize)
			},
		},
		{
			name:   "in-range values survive",
			mutate: func(c *Config) { c.MaxComparisons = 7; c.MetadataThreshold = 0.5 },
			check: func(t *testing.T, c Config) {
				assert.Equal(t, 7, c.MaxComparisons)
				assert.Equal(t, 0.5, c.MetadataThreshold)
			},
		},
		{
			name:   "boundary values survive",
			mutate: func(c *Config) { c.DirOverlapThreshold = 0; c.FileOverlapThreshold = 1 },
			check: func(t *testing.T, c Config) {
				assert.Equal(t, 0.0, c.DirOverlapThreshold)
				assert.Equal(t, 1.0, c.FileOverlapThreshold)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			tt.check(t, cfg.Normalized())
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Run("overrides", func(t *testing.T) {
		t.Setenv("PRTRIAGE_DETECT_ENABLED", "false")
		t.Setenv("PRTRIAGE_DETECT_MAX_COMPARISONS", "12")
		t.Setenv("PRTRIAGE_DETECT_FILE_OVERLAP", "0.75")
		t.Setenv("PRTRIAGE_DETECT_ONLY_ON_OPEN", "true")

		cfg := ConfigFromEnv()
		assert.False(t, cfg.Enabled)
		assert.True(t, cfg.OnlyOnOpen)
		assert.Equal(t, 12, cfg.MaxComparisons)
		assert.Equal(t, 0.75, cfg.FileOverlapThreshold)
	})

	t.Run("malformed values fall back", func(t *testing.T) {
		t.Setenv("PRTRIAGE_DETECT_MAX_COMPARISONS", "a lot")
		t.Setenv("PRTRIAGE_DETECT_STRUCTURAL", "very")

		cfg := ConfigFromEnv()
		assert.Equal(t, DefaultConfig().MaxComparisons, cfg.MaxComparisons)
		assert.Equal(t, DefaultConfig().StructuralThreshold, cfg.StructuralThreshold)
	})

	t.Run("out-of-range values clamp", func(t *testing.T) {
		t.Setenv("PRTRIAGE_DETECT_CONCURRENCY", "9999")

		cfg := ConfigFromEnv()
		assert.Equal(t, DefaultConfig().FetchConcurrency, cfg.FetchConcurrency)
	})
}
