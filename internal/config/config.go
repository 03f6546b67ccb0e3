package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config struct to hold the configuration settings
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Session SessionConfig `yaml:"session"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr           string `yaml:"addr" env:"LUCKYDRAW_ADDR"`
	GinMode        string `yaml:"gin_mode" env:"LUCKYDRAW_GIN_MODE"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" env:"LUCKYDRAW_MAX_UPLOAD_BYTES"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Verbose bool   `yaml:"verbose" env:"LUCKYDRAW_LOG_VERBOSE"`
	File    string `yaml:"file" env:"LUCKYDRAW_LOG_FILE"`
}

// SessionConfig controls how long idle events are kept in memory.
type SessionConfig struct {
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"LUCKYDRAW_SESSION_IDLE_TIMEOUT"`
	JanitorInterval time.Duration `yaml:"janitor_interval" env:"LUCKYDRAW_JANITOR_INTERVAL"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"LUCKYDRAW_METRICS_ENABLED"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			GinMode:        "release",
			MaxUploadBytes: 10 << 20,
		},
		Log: LogConfig{Verbose: true},
		Session: SessionConfig{
			IdleTimeout:     time.Hour,
			JanitorInterval: 10 * time.Minute,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// LoadConfig loads the configuration from a YAML file, then applies
// environment overrides. A missing file leaves the defaults in place.
func LoadConfig(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
	}

	// --- OVERRIDE WITH ENV VARS IF PRESENT ---
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail at runtime.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must be set")
	}
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.gin_mode %q is not one of debug, release, test", c.Server.GinMode)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be positive")
	}
	if c.Session.IdleTimeout <= 0 || c.Session.JanitorInterval <= 0 {
		return errors.New("session.idle_timeout and session.janitor_interval must be positive")
	}
	return nil
}
