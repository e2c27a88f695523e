// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Reader   ReaderConfig   `yaml:"reader"`
	Audio    AudioConfig    `yaml:"audio"`
	Playback PlaybackConfig `yaml:"playback"`
	Hooks    HooksConfig    `yaml:"hooks"`
}

// ReaderConfig represents card reader configuration.
type ReaderConfig struct {
	Type                 string         `yaml:"type" default:"serial" validate:"required,oneof=serial replay"`
	Settings             map[string]any `yaml:"settings"`
	PollIntervalMs       int            `yaml:"poll_interval_ms" default:"250" validate:"gte=20,lte=5000"`
	RemovalDebouncePolls int            `yaml:"removal_debounce_polls" default:"4" validate:"gte=1,lte=50"`
	RePresentMinPolls    int            `yaml:"represent_min_polls" default:"2" validate:"gte=1,lte=50"`
	FailureThreshold     int            `yaml:"failure_threshold" default:"8" validate:"gte=1"`
}

// AudioConfig represents playback backend configuration.
type AudioConfig struct {
	Backend  string         `yaml:"backend" default:"oto" validate:"required,oneof=oto mpv headless"`
	Settings map[string]any `yaml:"settings"`
}

// ResumePolicy names what the resume gesture does mid-track.
type ResumePolicy string

const (
	ResumePosition ResumePolicy = "position" // Resume from the paused position
	ResumeRestart  ResumePolicy = "restart"  // Restart the current track
)

// PlaybackConfig represents session playback policies.
type PlaybackConfig struct {
	Resume ResumePolicy `yaml:"resume" default:"position" validate:"oneof=position restart"`
	Loop   bool         `yaml:"loop"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// Default returns the configuration used when no config file is given.
func Default() (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	cfg.overrideFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return &cfg, nil
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("CARDBOX_READER_TYPE"); v != "" {
		c.Reader.Type = v
	}
	if v := os.Getenv("CARDBOX_READER_DEVICE"); v != "" {
		if c.Reader.Settings == nil {
			c.Reader.Settings = make(map[string]any)
		}
		c.Reader.Settings["device"] = v
	}
	if v := os.Getenv("CARDBOX_AUDIO_BACKEND"); v != "" {
		c.Audio.Backend = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	// The removal debounce is measured in polls; keep the confirmed removal
	// latency within a usable bound.
	latency := c.RemovalLatency()
	if latency > 10*time.Second {
		return errors.Newf("removal_debounce_polls (%d) at poll_interval_ms (%d) confirms removal after %v; must be 10s or less",
			c.Reader.RemovalDebouncePolls, c.Reader.PollIntervalMs, latency)
	}

	// The pause gesture lives in the gap between these two thresholds.
	if c.Reader.RePresentMinPolls >= c.Reader.RemovalDebouncePolls {
		return errors.Newf("represent_min_polls (%d) must be below removal_debounce_polls (%d), or re-presenting a card can never pause it",
			c.Reader.RePresentMinPolls, c.Reader.RemovalDebouncePolls)
	}

	return nil
}

// PollInterval returns the poll cycle interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Reader.PollIntervalMs) * time.Millisecond
}

// RemovalLatency returns the worst-case delay between a card leaving the
// reader and the Removed event being confirmed.
func (c *Config) RemovalLatency() time.Duration {
	return time.Duration(c.Reader.RemovalDebouncePolls) * c.PollInterval()
}
