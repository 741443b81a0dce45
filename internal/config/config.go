// Package config holds the runtime knobs for the prediction engine, loaded
// once at facade startup (spec's design note on avoiding hidden global
// state). The shape follows the teacher's own nested-struct-with-JSON-tags
// config layout.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the top-level configuration for the engine.
type Config struct {
	AppName string        `json:"app_name"`
	Version string        `json:"version"`
	Model   ModelConfig   `json:"model"`
	Engine  EngineConfig  `json:"engine"`
	Cache   CacheConfig   `json:"cache"`
	Logging LoggingConfig `json:"logging"`
}

// ModelConfig controls how and where policy network artifacts are fetched.
type ModelConfig struct {
	ArtifactBaseURL  string        `json:"artifact_base_url"`
	CacheDir         string        `json:"cache_dir"`
	FetchTimeout     time.Duration `json:"fetch_timeout"`
	MinArtifactBytes int64         `json:"min_artifact_bytes"`
	EnableSIMD       bool          `json:"enable_simd"`
}

// EngineConfig controls facade selection and operation timeouts.
type EngineConfig struct {
	UseWorker      bool          `json:"use_worker"`
	LoadTimeout    time.Duration `json:"load_timeout"`
	PredictTimeout time.Duration `json:"predict_timeout"`
	WorkerInitWait time.Duration `json:"worker_init_wait"`
	TopK           int           `json:"top_k"`
}

// CacheConfig controls the prediction cache and the position-change
// debouncer in front of it.
type CacheConfig struct {
	TTL           time.Duration `json:"ttl"`
	MaxEntries    int           `json:"max_entries"`
	DebounceDelay time.Duration `json:"debounce_delay"`
}

// LoggingConfig controls the zap logger built in internal/obs.
type LoggingConfig struct {
	Level string `json:"level"`
	Path  string `json:"path"`
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the configuration to a file, creating parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config: create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Default returns sensible defaults matching spec §4.4/§4.6 numbers.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	cacheDir := filepath.Join(homeDir, ".maia-predictor", "models")

	return &Config{
		AppName: "maia-predictor",
		Version: "1.0.0",
		Model: ModelConfig{
			ArtifactBaseURL:  "https://maiachess.com/models",
			CacheDir:         cacheDir,
			FetchTimeout:     30 * time.Second,
			MinArtifactBytes: 1 << 20, // ~1 MB
			EnableSIMD:       true,
		},
		Engine: EngineConfig{
			UseWorker:      true,
			LoadTimeout:    30 * time.Second,
			PredictTimeout: 10 * time.Second,
			WorkerInitWait: 10 * time.Second,
			TopK:           5,
		},
		Cache: CacheConfig{
			TTL:           30 * time.Second,
			MaxEntries:    100,
			DebounceDelay: 100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
			Path:  filepath.Join(homeDir, ".maia-predictor", "logs", "engine.log"),
		},
	}
}

// LoadOrDefault loads configuration from path, or returns Default if the
// file cannot be read.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks invariants the rest of the engine assumes hold.
func (c *Config) Validate() error {
	if c.Model.ArtifactBaseURL == "" {
		return fmt.Errorf("config: artifact_base_url must not be empty")
	}
	if c.Model.FetchTimeout <= 0 {
		return fmt.Errorf("config: fetch_timeout must be positive")
	}
	if c.Engine.PredictTimeout <= 0 {
		return fmt.Errorf("config: predict_timeout must be positive")
	}
	if c.Engine.TopK <= 0 {
		return fmt.Errorf("config: top_k must be positive, got %d", c.Engine.TopK)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("config: cache ttl must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("config: cache max_entries must be positive")
	}
	return nil
}

// EnsureDirectories creates all directories this config writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Model.CacheDir,
		filepath.Dir(c.Logging.Path),
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: create directory %s: %w", dir, err)
		}
	}
	return nil
}
