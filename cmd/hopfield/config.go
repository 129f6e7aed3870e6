// cmd/hopfield/config.go
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lumix-ai/hopfield/internal/core"
	"github.com/lumix-ai/hopfield/internal/evaluation"
	"github.com/lumix-ai/hopfield/internal/learning"
	"github.com/lumix-ai/hopfield/internal/memory"
	"github.com/lumix-ai/hopfield/internal/patterns"
	"github.com/lumix-ai/hopfield/pkg/api"
)

type Config struct {
	Network    NetworkConfig     `yaml:"network"`
	Memory     memory.Config     `yaml:"memory"`
	Learning   learning.Config   `yaml:"learning"`
	Noise      patterns.Config   `yaml:"noise"`
	Evaluation evaluation.Config `yaml:"evaluation"`
	API        api.Config        `yaml:"api"`
	Logging    LoggingConfig     `yaml:"logging"`
}

type NetworkConfig struct {
	Size          int `yaml:"size"`
	GridWidth     int `yaml:"grid_width"`
	MaxIterations int `yaml:"max_iterations"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

// defaultConfig - an 8x8 board
func defaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			Size:          64,
			GridWidth:     8,
			MaxIterations: core.DefaultMaxIterations,
		},
		Memory: memory.Config{
			Path:      "data/hopfield.db",
			CacheSize: 128,
		},
		Learning: learning.Config{
			AutoRetrain:     true,
			RecallCacheSize: 256,
		},
		Noise: patterns.Config{
			Level: patterns.DefaultNoiseLevel,
		},
		Evaluation: evaluation.Config{
			MaxLoad:       12,
			Trials:        20,
			NoiseLevel:    0.1,
			MaxConcurrent: runtime.NumCPU(),
			Seed:          1,
		},
		API: api.Config{
			Addr:        ":8080",
			ReadTimeout: 15 * time.Second,
			SessionTTL:  30 * time.Minute,
			Remote:      "http://localhost:8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// zero sweeps is legal for the engine but useless as a configured bound
	if config.Network.MaxIterations == 0 {
		config.Network.MaxIterations = core.DefaultMaxIterations
	}
	if config.Evaluation.MaxIterations == 0 {
		config.Evaluation.MaxIterations = config.Network.MaxIterations
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfig(config *Config) error {
	n := config.Network
	if n.Size <= 0 {
		return fmt.Errorf("network.size must be positive, got %d", n.Size)
	}
	if n.GridWidth <= 0 || n.Size%n.GridWidth != 0 {
		return fmt.Errorf("network.size %d must be divisible by grid_width %d", n.Size, n.GridWidth)
	}
	if n.MaxIterations < 0 {
		return fmt.Errorf("network.max_iterations must not be negative, got %d", n.MaxIterations)
	}
	if l := config.Noise.Level; l < 0 || l > 1 {
		return fmt.Errorf("noise.level must be within [0,1], got %v", l)
	}
	if l := config.Evaluation.NoiseLevel; l < 0 || l > 1 {
		return fmt.Errorf("evaluation.noise_level must be within [0,1], got %v", l)
	}
	switch config.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", config.Logging.Format)
	}
	return nil
}
