package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all startup configuration. It is loaded once and
// immutable for the process lifetime.
type Config struct {
	ListenAddr string   `yaml:"listen"`
	Sources    []string `yaml:"sources"`

	RotationInterval time.Duration `yaml:"rotation_interval"`
	Crossfade        time.Duration `yaml:"crossfade"`
	OutputFPS        int           `yaml:"output_fps"`
	Staleness        time.Duration `yaml:"staleness"`
	HealthInterval   time.Duration `yaml:"health_interval"`

	// PrettyLog switches zerolog to the human-readable console writer
	PrettyLog bool `yaml:"pretty_log"`
}

// DefaultConfig returns a Config with every tunable at its default.
func DefaultConfig() Config {
	return Config{
		ListenAddr:       DefaultListenAddr,
		RotationInterval: DefaultRotationInterval,
		Crossfade:        DefaultCrossfade,
		OutputFPS:        DefaultOutputFPS,
		Staleness:        DefaultStaleness,
		HealthInterval:   DefaultHealthInterval,
	}
}

// LoadConfig reads the YAML config file at path on top of the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with. These
// are the only process-fatal errors; everything after startup is
// source-scoped and non-fatal.
func (c Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("config: no sources configured")
	}
	for i, u := range c.Sources {
		if u == "" {
			return fmt.Errorf("config: source %d has an empty url", i+1)
		}
	}
	if c.OutputFPS <= 0 {
		return fmt.Errorf("config: output_fps must be positive, got %d", c.OutputFPS)
	}
	if c.Crossfade <= 0 {
		return fmt.Errorf("config: crossfade must be positive, got %s", c.Crossfade)
	}
	if c.Crossfade >= c.RotationInterval {
		return fmt.Errorf("config: crossfade %s must be shorter than rotation_interval %s",
			c.Crossfade, c.RotationInterval)
	}
	if c.Staleness <= 0 {
		return fmt.Errorf("config: staleness must be positive, got %s", c.Staleness)
	}
	if c.HealthInterval <= 0 {
		return fmt.Errorf("config: health_interval must be positive, got %s", c.HealthInterval)
	}
	return nil
}

// OutputTick is the mixer clock period derived from the output rate.
func (c Config) OutputTick() time.Duration {
	return time.Second / time.Duration(c.OutputFPS)
}

// HoldDuration is how long a source stays in focus before the next
// transition starts.
func (c Config) HoldDuration() time.Duration {
	return c.RotationInterval - c.Crossfade
}
