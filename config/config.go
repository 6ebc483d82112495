// Package config provides configuration loading and access for the
// simulation engine.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all engine configuration parameters.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SimulationConfig holds round-engine parameters.
type SimulationConfig struct {
	// AutomaticBonds is the default bond mode of newly added particles.
	AutomaticBonds bool `yaml:"automatic_bonds"`
	// SendBeepsAndMessages enables signal delivery after circuit
	// discovery. Disabling it still discovers circuits for the sink.
	SendBeepsAndMessages bool `yaml:"send_beeps_and_messages"`
	// WarnOnBondDisagreement logs a warning when exactly one side of an
	// edge holds its bond active.
	WarnOnBondDisagreement bool `yaml:"warn_on_bond_disagreement"`
}

// TelemetryConfig holds stats collection parameters.
type TelemetryConfig struct {
	// WindowRounds is the number of rounds aggregated per stats window.
	WindowRounds int `yaml:"window_rounds"`
	// OutputDir receives CSV output; empty disables file output.
	OutputDir string `yaml:"output_dir"`
}

// LoggingConfig holds log output parameters.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded
// defaults. If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into the same struct - only overwrites fields
		// present in the file.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if cfg.Telemetry.WindowRounds < 1 {
		cfg.Telemetry.WindowRounds = 1
	}

	return cfg, nil
}

// WriteYAML saves the configuration to the given path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
