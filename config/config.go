// Package config holds the settings of a profiling run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/m68kprof/profiler"
)

// Config describes a profiling run.
type Config struct {
	// Mode is "exclusive" or "callstack".
	// Default: "exclusive".
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`

	// SampleRate is the number of instructions between attributed samples.
	// Default: 1 (every instruction).
	SampleRate int `json:"sample_rate" yaml:"sample_rate" mapstructure:"sample_rate"`

	// CollectHistogram enables the per-address cycle histogram.
	CollectHistogram bool `json:"collect_histogram" yaml:"collect_histogram" mapstructure:"collect_histogram"`

	// Top limits the report to the N most expensive functions. 0 prints all.
	// Default: 20.
	Top int `json:"top" yaml:"top" mapstructure:"top"`

	// HistogramPath is where the address histogram is exported. Setting it
	// implies CollectHistogram.
	HistogramPath string `json:"histogram_path,omitempty" yaml:"histogram_path,omitempty" mapstructure:"histogram_path"`

	// MetricsPath is where Prometheus metrics are written.
	MetricsPath string `json:"metrics_path,omitempty" yaml:"metrics_path,omitempty" mapstructure:"metrics_path"`

	// Humanize prints cycle counts with thousands separators.
	Humanize bool `json:"humanize" yaml:"humanize" mapstructure:"humanize"`

	// Color prints the report header in bold.
	Color bool `json:"color" yaml:"color" mapstructure:"color"`
}

// DefaultConfig returns the default run configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:       profiler.ModeExclusive.String(),
		SampleRate: 1,
		Top:        20,
	}
}

// LoadConfig loads a Config from a file. Files ending in .yaml or .yml are
// read as YAML, anything else as JSON. Fields missing from the file keep
// their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the Config to a file, as YAML or JSON depending on the
// extension.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration can start a profiling session.
func (c *Config) Validate() error {
	if _, err := profiler.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.SampleRate < 0 {
		return fmt.Errorf("sample_rate must be >= 0")
	}
	if c.Top < 0 {
		return fmt.Errorf("top must be >= 0")
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// ProfileMode returns the profiling mode, falling back to exclusive for an
// unknown name.
func (c *Config) ProfileMode() profiler.Mode {
	mode, err := profiler.ParseMode(c.Mode)
	if err != nil {
		return profiler.ModeExclusive
	}
	return mode
}

// ProfileOptions converts the configuration into session options.
func (c *Config) ProfileOptions() profiler.Options {
	return profiler.Options{
		Mode:             c.ProfileMode(),
		SampleRate:       c.SampleRate,
		CollectHistogram: c.CollectHistogram || c.HistogramPath != "",
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
