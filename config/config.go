// Package config holds the session settings shared by every run: how long
// a run lasts, how often it is sampled, and how the chaos injector and the
// simulated player behave.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/perfgo/chaosplay/chaos"
	"github.com/perfgo/chaosplay/lifecycle"
	"github.com/perfgo/chaosplay/media/sim"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	// Nominal playback length every run is measured against
	TotalDuration time.Duration `yaml:"total_duration"`
	// Progress sampling cadence
	SampleInterval time.Duration `yaml:"sample_interval"`
	// Chaos injector draw cadence
	ChaosInterval time.Duration `yaml:"chaos_interval"`
	// Time before an injected fault is undone
	RecoveryDelay time.Duration `yaml:"recovery_delay"`
	// zerolog level name, e.g. debug, info, warn or error
	LogLevel string       `yaml:"log_level"`
	Player   PlayerConfig `yaml:"player"`
}

// PlayerConfig tunes the simulated media engine.
type PlayerConfig struct {
	LoadLatency      time.Duration `yaml:"load_latency"`
	StallProbability float64       `yaml:"stall_probability"`
	StallDuration    time.Duration `yaml:"stall_duration"`
	RejectPlay       bool          `yaml:"reject_play"`
}

// Default returns the built-in settings.
func Default() Config {
	p := sim.DefaultOptions()
	return Config{
		TotalDuration:  lifecycle.DefaultTotalDuration,
		SampleInterval: lifecycle.DefaultSampleInterval,
		ChaosInterval:  chaos.DefaultInterval,
		RecoveryDelay:  chaos.DefaultRecovery,
		LogLevel:       "info",
		Player: PlayerConfig{
			LoadLatency:      p.LoadLatency,
			StallProbability: p.StallProbability,
			StallDuration:    p.StallDuration,
		},
	}
}

// Load reads a YAML file on top of the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every duration and probability is usable.
func (c Config) Validate() error {
	positive := []struct {
		name string
		v    time.Duration
	}{
		{"total_duration", c.TotalDuration},
		{"sample_interval", c.SampleInterval},
		{"chaos_interval", c.ChaosInterval},
		{"recovery_delay", c.RecoveryDelay},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, p.name, p.v)
		}
	}
	if c.Player.LoadLatency < 0 || c.Player.StallDuration < 0 {
		return fmt.Errorf("%w: player latencies must not be negative", ErrInvalid)
	}
	if c.Player.StallProbability < 0 || c.Player.StallProbability > 1 {
		return fmt.Errorf("%w: player.stall_probability must be within [0,1], got %v", ErrInvalid, c.Player.StallProbability)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the zerolog level named by LogLevel. Empty means info.
func (c Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}
	return level, nil
}

// Lifecycle returns the controller options for every run.
func (c Config) Lifecycle() lifecycle.Options {
	return lifecycle.Options{
		TotalDuration:  c.TotalDuration,
		SampleInterval: c.SampleInterval,
		Chaos: chaos.Options{
			Interval: c.ChaosInterval,
			Recovery: c.RecoveryDelay,
		},
	}
}

// Sim returns the simulated player options.
func (c Config) Sim() sim.Options {
	o := sim.DefaultOptions()
	o.LoadLatency = c.Player.LoadLatency
	o.StallProbability = c.Player.StallProbability
	o.StallDuration = c.Player.StallDuration
	o.RejectPlay = c.Player.RejectPlay
	return o
}
