// Package config provides configuration loading and management for
// pmvscore. It loads YAML into a Config and translates it into the
// pmvs.Config the optimizer and filter actually consume.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"pmvscore/pkg/pmvs"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Processing parameters drive the optimizer and filter passes.
	Processing struct {
		// NumCores specifies how many worker goroutines to run passes with.
		NumCores int `yaml:"numCores"`

		// Tau is the maximum number of images a single patch draws
		// photometric support from.
		Tau int `yaml:"tau"`

		// WSize is the side length, in pixels, of the square texture
		// window sampled around a patch's projection.
		WSize int `yaml:"wsize"`

		// Level is the base mipmap level patches are evaluated at.
		Level int `yaml:"level"`

		// Depth selects how much of postProcess runs (0: no visibility
		// grids, 1: visibility grids, 2+: also the neighbor-consistency
		// check).
		Depth int `yaml:"depth"`

		// AngleThreshold0Deg / AngleThreshold1Deg / MaxAngleThresholdDeg
		// are expressed in degrees in YAML and converted to radians for
		// pmvs.Config.
		AngleThreshold0Deg   float64 `yaml:"angleThreshold0Deg"`
		AngleThreshold1Deg   float64 `yaml:"angleThreshold1Deg"`
		MaxAngleThresholdDeg float64 `yaml:"maxAngleThresholdDeg"`

		// SequenceThreshold bounds collectImages to images within this
		// many sequence indices of the reference image; -1 disables it.
		SequenceThreshold int `yaml:"sequenceThreshold"`

		NCCThreshold       float64 `yaml:"nccThreshold"`
		NCCThresholdBefore float64 `yaml:"nccThresholdBefore"`

		MinImageNumThreshold int `yaml:"minImageNumThreshold"`
		MinPatchesGrid       int `yaml:"minPatchesGrid"`

		// NeighborPasses is how many times Filter.Run repeats the
		// quadric neighbor-consistency pass.
		NeighborPasses int `yaml:"neighborPasses"`
	} `yaml:"processing"`

	// Output parameters.
	Output struct {
		// Verbose controls how much progress reporting the CLI prints.
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.Tau = 7
	cfg.Processing.WSize = 7
	cfg.Processing.Level = 1
	cfg.Processing.Depth = 1

	cfg.Processing.AngleThreshold0Deg = 60
	cfg.Processing.AngleThreshold1Deg = 75
	cfg.Processing.MaxAngleThresholdDeg = 10

	cfg.Processing.SequenceThreshold = -1

	cfg.Processing.NCCThreshold = 0.7
	cfg.Processing.NCCThresholdBefore = 0.6

	cfg.Processing.MinImageNumThreshold = 3
	cfg.Processing.MinPatchesGrid = 3
	cfg.Processing.NeighborPasses = 2

	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// ToPMVSConfig translates the loaded YAML configuration into the
// pmvs.Config the optimizer and filter consume, filling in the
// photo-set-derived fields (Num, TNum) the caller must still supply.
func (c *Config) ToPMVSConfig(num, tnum int) pmvs.Config {
	p := &c.Processing
	deg2rad := func(d float64) float64 { return d * math.Pi / 180 }

	return pmvs.Config{
		CPU:                  p.NumCores,
		Num:                  num,
		TNum:                 tnum,
		Tau:                  p.Tau,
		WSize:                p.WSize,
		Level:                p.Level,
		Depth:                p.Depth,
		AngleThreshold0:      deg2rad(p.AngleThreshold0Deg),
		AngleThreshold1:      deg2rad(p.AngleThreshold1Deg),
		MaxAngleThreshold:    deg2rad(p.MaxAngleThresholdDeg),
		SequenceThreshold:    p.SequenceThreshold,
		NCCThreshold:         p.NCCThreshold,
		NCCThresholdBefore:   p.NCCThresholdBefore,
		MinImageNumThreshold: p.MinImageNumThreshold,
		MinPatchesGrid:       p.MinPatchesGrid,
	}
}

// NeighborPasses returns how many times Filter.Run should repeat its
// quadric neighbor-consistency pass.
func (c *Config) NeighborPasses() int {
	return c.Processing.NeighborPasses
}
