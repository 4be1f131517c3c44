// Package config loads futurecast settings from ~/.futurecast/config.yaml
// with environment overrides. Defaults are usable out of the box; only the
// Gemini API key has no default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// AvailableModels lists the Gemini models the CLI accepts for generation.
var AvailableModels = []string{
	"gemini-1.0-pro",
	"gemini-1.5-pro-latest",
	"gemini-1.5-flash-latest",
	"gemini-2.0-flash",
	"gemini-2.5-flash-preview-04-17",
}

// Config holds all user-tunable settings for a futurecast run.
type Config struct {
	// APIKey comes from the GEMINI_API_KEY environment variable or the
	// --api-key flag. It is never written to the config file.
	APIKey string `yaml:"-"`

	// Model is the Gemini model used for generation.
	Model string `yaml:"model"`

	// ModelOverridden is set when GEMINI_MODEL or --model supplied the
	// model, which skips the AvailableModels check so newer models work.
	ModelOverridden bool `yaml:"-"`

	// NumEffects is how many effects to generate per level.
	NumEffects int `yaml:"num_effects"`

	// MaxDepth bounds the tree depth (first-order effects are depth 1).
	MaxDepth int `yaml:"max_depth"`

	// MaxParallelCalls bounds concurrent generation requests.
	MaxParallelCalls int `yaml:"max_parallel_calls"`

	// EnableCaching toggles the on-disk LLM response cache.
	EnableCaching bool `yaml:"enable_caching"`

	// CacheTTL is the response cache lifetime in seconds.
	CacheTTL int `yaml:"cache_ttl"`

	// Sampling parameters passed to the model.
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	TopK        int     `yaml:"top_k"`

	// Embedding-based sibling dedup. Off by default.
	EnableDedup    bool    `yaml:"enable_dedup"`
	DedupThreshold float64 `yaml:"dedup_threshold"`
	EmbeddingModel string  `yaml:"embedding_model"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:            "gemini-2.0-flash",
		NumEffects:       5,
		MaxDepth:         3,
		MaxParallelCalls: 5,
		EnableCaching:    true,
		CacheTTL:         3600,
		Temperature:      0.7,
		TopP:             0.95,
		TopK:             40,
		EnableDedup:      false,
		DedupThreshold:   0.92,
		EmbeddingModel:   "gemini-embedding-001",
	}
}

// Load builds the effective config: defaults, then the YAML file at path
// (missing file is fine), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// FromEnv builds the effective config from the default file location plus
// environment overrides.
func FromEnv() (*Config, error) {
	return Load(DefaultPath())
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.Model = v
		c.ModelOverridden = true
	}
	if v, ok := envInt("NUM_EFFECTS"); ok {
		c.NumEffects = v
	}
	if v, ok := envInt("MAX_DEPTH"); ok {
		c.MaxDepth = v
	}
	if v, ok := envInt("MAX_PARALLEL_CALLS"); ok {
		c.MaxParallelCalls = v
	}
	if v := os.Getenv("ENABLE_CACHING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.EnableCaching = b
		}
	}
	if v, ok := envInt("CACHE_TTL"); ok {
		c.CacheTTL = v
	}
	if v, ok := envFloat("TEMPERATURE"); ok {
		c.Temperature = v
	}
	if v, ok := envFloat("TOP_P"); ok {
		c.TopP = v
	}
	if v, ok := envInt("TOP_K"); ok {
		c.TopK = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Validate checks every tunable is in range. The API key is checked at
// client construction instead, so cache-only paths work without one.
func (c *Config) Validate() error {
	if !c.ModelOverridden && !knownModel(c.Model) {
		return fmt.Errorf("model %q is not in the list of available models %v (set GEMINI_MODEL or --model to use it anyway)", c.Model, AvailableModels)
	}
	if c.NumEffects < 1 {
		return fmt.Errorf("num_effects must be positive, got %d", c.NumEffects)
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.MaxParallelCalls < 1 {
		return fmt.Errorf("max_parallel_calls must be positive, got %d", c.MaxParallelCalls)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative, got %d", c.CacheTTL)
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %g", c.Temperature)
	}
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("top_p must be between 0 and 1, got %g", c.TopP)
	}
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.EnableDedup && (c.DedupThreshold <= 0 || c.DedupThreshold > 1) {
		return fmt.Errorf("dedup_threshold must be in (0, 1], got %g", c.DedupThreshold)
	}
	return nil
}

func knownModel(model string) bool {
	for _, m := range AvailableModels {
		if m == model {
			return true
		}
	}
	return false
}

// CacheTTLDuration returns the cache TTL as a time.Duration.
func (c *Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// Dir returns the futurecast home directory (~/.futurecast).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".futurecast"
	}
	return filepath.Join(home, ".futurecast")
}

// DefaultPath returns the default config file location.
func DefaultPath() string { return filepath.Join(Dir(), "config.yaml") }

// SavedDir returns where futurecast records are saved.
func SavedDir() string { return filepath.Join(Dir(), "saved") }

// CacheDir returns the LLM response cache directory.
func CacheDir() string { return filepath.Join(Dir(), "cache") }

// LogDir returns the log directory.
func LogDir() string { return filepath.Join(Dir(), "logs") }

// CatalogPath returns the SQLite catalog location.
func CatalogPath() string { return filepath.Join(Dir(), "futurecast.db") }
