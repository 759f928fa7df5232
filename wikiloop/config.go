package wikiloop

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultMaxIterations is the default iteration cap for a run.
const DefaultMaxIterations = 5

// Config holds run-level configuration. Values are consumed as-is; the cap
// must be positive.
type Config struct {
	// MaxIterations is the hard ceiling on analysis rounds per run.
	MaxIterations int `yaml:"max_iterations"`

	// StopSequences is the default stop-sequence list when the model
	// configuration carries none.
	StopSequences []string `yaml:"stop_sequences"`

	// EventBufferSize caps the transcript channel buffer.
	EventBufferSize int `yaml:"event_buffer_size"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations:   DefaultMaxIterations,
		EventBufferSize: 256,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	return nil
}

// LoadConfig reads a YAML configuration file, filling unset fields with
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.EventBufferSize == 0 {
		cfg.EventBufferSize = 256
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
