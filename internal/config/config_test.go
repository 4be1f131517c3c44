package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
	assert.Equal(t, 5, cfg.NumEffects)
	assert.Equal(t, 3, cfg.MaxDepth)
	assert.Equal(t, 5, cfg.MaxParallelCalls)
	assert.True(t, cfg.EnableCaching)
	assert.Equal(t, 3600, cfg.CacheTTL)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	assert.InDelta(t, 0.95, cfg.TopP, 1e-9)
	assert.Equal(t, 40, cfg.TopK)
	assert.False(t, cfg.EnableDedup)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: gemini-1.5-pro-latest\nnum_effects: 3\ntemperature: 0.2\n"), 0o644))

	t.Run("file overrides defaults", func(t *testing.T) {
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "gemini-1.5-pro-latest", cfg.Model)
		assert.Equal(t, 3, cfg.NumEffects)
		assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)
		// Untouched fields keep defaults.
		assert.Equal(t, 3, cfg.MaxDepth)
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("GEMINI_MODEL", "gemini-2.0-flash")
		t.Setenv("NUM_EFFECTS", "7")
		t.Setenv("TEMPERATURE", "0.9")
		t.Setenv("ENABLE_CACHING", "false")
		t.Setenv("GEMINI_API_KEY", "test-key")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "gemini-2.0-flash", cfg.Model)
		assert.Equal(t, 7, cfg.NumEffects)
		assert.InDelta(t, 0.9, cfg.Temperature, 1e-9)
		assert.False(t, cfg.EnableCaching)
		assert.Equal(t, "test-key", cfg.APIKey)
	})

	t.Run("malformed env values are ignored", func(t *testing.T) {
		t.Setenv("NUM_EFFECTS", "many")
		t.Setenv("TOP_P", "very high")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.NumEffects)
		assert.InDelta(t, 0.95, cfg.TopP, 1e-9)
	})
}

func TestLoadMissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Model, cfg.Model)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unlisted model", func(c *Config) { c.Model = "gemini-99-ultra" }, "available models"},
		{"zero effects", func(c *Config) { c.NumEffects = 0 }, "num_effects"},
		{"zero depth", func(c *Config) { c.MaxDepth = 0 }, "max_depth"},
		{"zero parallel", func(c *Config) { c.MaxParallelCalls = 0 }, "max_parallel_calls"},
		{"negative ttl", func(c *Config) { c.CacheTTL = -1 }, "cache_ttl"},
		{"temperature high", func(c *Config) { c.Temperature = 1.5 }, "temperature"},
		{"temperature low", func(c *Config) { c.Temperature = -0.1 }, "temperature"},
		{"top_p high", func(c *Config) { c.TopP = 1.01 }, "top_p"},
		{"top_k zero", func(c *Config) { c.TopK = 0 }, "top_k"},
		{"dedup threshold", func(c *Config) { c.EnableDedup = true; c.DedupThreshold = 0 }, "dedup_threshold"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateAllowsOverriddenModel(t *testing.T) {
	t.Run("via flag marker", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Model = "gemini-99-ultra"
		cfg.ModelOverridden = true
		assert.NoError(t, cfg.Validate())
	})

	t.Run("via GEMINI_MODEL", func(t *testing.T) {
		t.Setenv("GEMINI_MODEL", "gemini-99-ultra")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "gemini-99-ultra", cfg.Model)
		assert.NoError(t, cfg.Validate())
	})
}
