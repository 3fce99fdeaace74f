// Package config loads the optional YAML file driving a multi-tier
// benchmark session.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes a benchmark session: which memory tiers to exercise and
// the engine knobs to run them with. Zero fields defer to the engine
// defaults.
type Config struct {
	MemorySizesMB []int `yaml:"memory_sizes_mb"`

	QuantumMs      float64 `yaml:"quantum_ms"`
	TestDurationMs float64 `yaml:"test_duration_ms"`
	DataSizeKB     float64 `yaml:"data_size_kb"`
	SettleDelayMs  float64 `yaml:"settle_delay_ms"`

	Calibration struct {
		WarmupIterations  int `yaml:"warmup_iterations"`
		MeasureIterations int `yaml:"measure_iterations"`
	} `yaml:"calibration"`

	Safety struct {
		LowShareCutoff float64 `yaml:"low_share_cutoff"`
		LowFactor      float64 `yaml:"low_factor"`
		HighFactor     float64 `yaml:"high_factor"`
	} `yaml:"safety"`

	OverrunFactor float64 `yaml:"overrun_factor"`
}

// Default returns the session defaults: the standard Lambda memory ladder
// with everything else left to the engine.
func Default() Config {
	var c Config
	c.MemorySizesMB = []int{128, 256, 512, 1024, 1769}
	return c
}

// DurationMs resolves the per-tier run duration: an explicit flag value
// wins over the session file, which wins over the stock 5000 ms.
func (c Config) DurationMs(flagMs float64) float64 {
	if flagMs > 0 {
		return flagMs
	}
	if c.TestDurationMs > 0 {
		return c.TestDurationMs
	}
	return 5000
}

// Load reads and parses a YAML session config.
func Load(path string) (Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, nil
}
