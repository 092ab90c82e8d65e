// Package config provides configuration loading and management for patchwarp.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"patchwarp/internal/models"
	"patchwarp/pkg/transform"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Sampling parameters
	Sampling struct {
		// PatchShape is the (D, H, W) shape of input patches
		PatchShape []int `yaml:"patchShape"`

		// TargetPatchShape is the (D, H, W) shape of target patches; empty
		// means the input patch shape
		TargetPatchShape []int `yaml:"targetPatchShape,omitempty"`

		// Warp holds the randomization parameters
		Warp transform.Options `yaml:"warp"`

		// DiscreteChannels lists the target channels holding labels. Empty
		// means every channel is discrete.
		DiscreteChannels []int `yaml:"discreteChannels,omitempty"`

		// MaxRetries bounds the resampling attempts after out-of-bounds draws
		MaxRetries int `yaml:"maxRetries"`

		// Seed initializes the random generator
		Seed uint64 `yaml:"seed"`
	} `yaml:"sampling"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// CacheSize bounds the number of patch shapes with cached grids
		CacheSize int `yaml:"cacheSize"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Dir is where extracted patches are written
		Dir string `yaml:"dir"`

		// SavePreviews writes central slices of each patch as images
		SavePreviews bool `yaml:"savePreviews"`
	} `yaml:"output"`

	// Logging parameters
	Logging struct {
		// Level is one of DEBUG, INFO, WARN, ERROR
		Level string `yaml:"level"`

		// JSON selects the JSON handler instead of text
		JSON bool `yaml:"json"`

		// File enables a rotating log file in addition to stdout
		File string `yaml:"file"`

		// MaxSizeMB is the size at which the log file rotates
		MaxSizeMB int `yaml:"maxSizeMB"`

		// MaxBackups is the number of rotated files kept
		MaxBackups int `yaml:"maxBackups"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default sampling parameters
	cfg.Sampling.PatchShape = []int{48, 96, 96}
	cfg.Sampling.Warp = transform.DefaultOptions()
	cfg.Sampling.Warp.WarpAmount = 0.5
	cfg.Sampling.Warp.Perspective = true
	cfg.Sampling.MaxRetries = 50
	cfg.Sampling.Seed = 0

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.CacheSize = 8

	// Set default output parameters
	cfg.Output.Dir = "patches"
	cfg.Output.SavePreviews = false

	// Set default logging parameters
	cfg.Logging.Level = "INFO"
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxBackups = 3

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Write encodes cfg as YAML to w
func Write(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	return enc.Close()
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks shapes and numeric ranges
func (c *Config) Validate() error {
	if _, err := toShape(c.Sampling.PatchShape); err != nil {
		return fmt.Errorf("patchShape: %w", err)
	}
	if len(c.Sampling.TargetPatchShape) > 0 {
		if _, err := toShape(c.Sampling.TargetPatchShape); err != nil {
			return fmt.Errorf("targetPatchShape: %w", err)
		}
	}
	if c.Sampling.Warp.AnisoFactor <= 0 {
		return fmt.Errorf("warp.anisoFactor must be positive, got %v", c.Sampling.Warp.AnisoFactor)
	}
	if c.Sampling.MaxRetries < 1 {
		return fmt.Errorf("maxRetries must be at least 1, got %d", c.Sampling.MaxRetries)
	}
	for _, ch := range c.Sampling.DiscreteChannels {
		if ch < 0 {
			return fmt.Errorf("discreteChannels: negative channel %d", ch)
		}
	}
	return nil
}

// PatchShapes returns the input patch shape and the target patch shape,
// which defaults to the input patch shape
func (c *Config) PatchShapes() (models.Shape, models.Shape, error) {
	p, err := toShape(c.Sampling.PatchShape)
	if err != nil {
		return models.Shape{}, models.Shape{}, fmt.Errorf("patchShape: %w", err)
	}
	if len(c.Sampling.TargetPatchShape) == 0 {
		return p, p, nil
	}
	t, err := toShape(c.Sampling.TargetPatchShape)
	if err != nil {
		return models.Shape{}, models.Shape{}, fmt.Errorf("targetPatchShape: %w", err)
	}
	return p, t, nil
}

// DiscreteMask expands DiscreteChannels into a per-channel mask for a target
// with the given channel count. It returns nil when every channel is
// discrete.
func (c *Config) DiscreteMask(channels int) ([]bool, error) {
	if len(c.Sampling.DiscreteChannels) == 0 {
		return nil, nil
	}
	mask := make([]bool, channels)
	for _, ch := range c.Sampling.DiscreteChannels {
		if ch >= channels {
			return nil, fmt.Errorf("discrete channel %d out of range for %d target channels", ch, channels)
		}
		mask[ch] = true
	}
	return mask, nil
}

func toShape(s []int) (models.Shape, error) {
	if len(s) != 3 {
		return models.Shape{}, fmt.Errorf("want 3 spatial extents (D, H, W), got %v", s)
	}
	sh := models.Shape{s[0], s[1], s[2]}
	if !sh.Valid() {
		return models.Shape{}, fmt.Errorf("extents must be positive, got %v", s)
	}
	return sh, nil
}
