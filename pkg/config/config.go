// Package config reads viewer settings from an optional YAML file and SV_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the project-local config file read when --config is unset.
const DefaultPath = ".sv/config.yaml"

// Config holds every tunable of the viewer.
type Config struct {
	Feeds []string `yaml:"feeds" env:"SV_FEEDS" env-separator:"," env-description:"feed files or directories"`

	Playback struct {
		Duration        time.Duration `yaml:"duration" env:"SV_PLAYBACK_DURATION" env-description:"display time per story"`
		HoldThreshold   time.Duration `yaml:"hold_threshold" env:"SV_PLAYBACK_HOLD_THRESHOLD" env-description:"press length that pauses playback"`
		SkipUnavailable bool          `yaml:"skip_unavailable" env:"SV_PLAYBACK_SKIP_UNAVAILABLE" env-description:"advance past stories whose image cannot be found"`
	} `yaml:"playback"`

	History struct {
		Enabled bool   `yaml:"enabled" env:"SV_HISTORY_ENABLED" env-description:"record viewed stories"`
		Path    string `yaml:"path" env:"SV_HISTORY_PATH" env-description:"sqlite database for view history"`
	} `yaml:"history"`

	Log struct {
		Level string `yaml:"level" env:"SV_LOG_LEVEL" env-description:"debug, info, warn or error"`
		Path  string `yaml:"path" env:"SV_LOG_PATH" env-description:"log file used while the TUI runs"`
	} `yaml:"log"`

	Watch bool `yaml:"watch" env:"SV_WATCH" env-description:"reload feeds when they change on disk"`
}

// Load reads the config file at path (if it exists) and applies environment
// overrides. An empty path falls back to DefaultPath; a missing default file
// is not an error, a missing explicit file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in settings. They live here and not in
// env-default tags: cleanenv re-applies a tag default over an explicit false
// or zero read from the file.
func Default() *Config {
	cfg := &Config{}
	cfg.Playback.Duration = 5 * time.Second
	cfg.Playback.HoldThreshold = 300 * time.Millisecond
	cfg.Playback.SkipUnavailable = true
	cfg.History.Enabled = true
	cfg.Log.Level = "info"
	cfg.Watch = true
	return cfg
}

// Usage describes every environment variable the viewer understands.
func Usage() string {
	help, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return ""
	}
	return help
}

// Validate checks the values that would otherwise break playback.
func (c *Config) Validate() error {
	if c.Playback.Duration <= 0 {
		return fmt.Errorf("playback.duration must be positive, got %s", c.Playback.Duration)
	}
	if c.Playback.HoldThreshold <= 0 {
		return fmt.Errorf("playback.hold_threshold must be positive, got %s", c.Playback.HoldThreshold)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	return nil
}

func (c *Config) applyDefaults() {
	cacheDir := filepath.Join(os.TempDir(), "sv")
	if dir, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(dir, "sv")
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(cacheDir, "history.db")
	}
	if c.Log.Path == "" {
		c.Log.Path = filepath.Join(cacheDir, "sv.log")
	}
}
