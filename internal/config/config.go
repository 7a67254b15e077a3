// Package config handles LifeScore configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration
type Config struct {
	// Paths
	DataDir string `json:"data_dir" env:"LIFESCORE_DATA_DIR"`

	// Server
	Server ServerConfig `json:"server" envPrefix:"LIFESCORE_SERVER_"`

	// Score cache
	Redis RedisConfig `json:"redis" envPrefix:"LIFESCORE_REDIS_"`

	// Aggregation windows
	Scoring ScoringConfig `json:"scoring" envPrefix:"LIFESCORE_SCORING_"`

	// Nightly score refresh
	Refresh RefreshConfig `json:"refresh" envPrefix:"LIFESCORE_REFRESH_"`

	// Logging
	Logging LoggingConfig `json:"logging" envPrefix:"LIFESCORE_LOG_"`
}

// ServerConfig for HTTP server
type ServerConfig struct {
	Port int    `json:"port" env:"PORT"`
	Host string `json:"host" env:"HOST"`
}

// RedisConfig for the shared score cache. Disabled means an in-process cache.
type RedisConfig struct {
	Enabled    bool   `json:"enabled" env:"ENABLED"`
	Addr       string `json:"addr" env:"ADDR"`
	Password   string `json:"password,omitempty" env:"PASSWORD"`
	DB         int    `json:"db" env:"DB"`
	TTLSeconds int    `json:"ttl_seconds" env:"TTL_SECONDS"`
}

// TTL returns the cache entry lifetime
func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

// ScoringConfig tunes the trailing windows used by the aggregator
type ScoringConfig struct {
	HealthWindowDays int `json:"health_window_days" env:"HEALTH_WINDOW_DAYS"`
	WealthWindowDays int `json:"wealth_window_days" env:"WEALTH_WINDOW_DAYS"`
}

// RefreshConfig schedules the daemon's daily recompute of every profile
type RefreshConfig struct {
	Enabled  bool   `json:"enabled" env:"ENABLED"`
	At       string `json:"at" env:"AT"`               // "15:04"
	Cron     string `json:"cron,omitempty" env:"CRON"` // Replaces At when set
	Timezone string `json:"timezone" env:"TIMEZONE"`
}

// LoggingConfig selects log format and verbosity
type LoggingConfig struct {
	Mode  string `json:"mode" env:"MODE"` // "development" or "production"
	Level string `json:"level" env:"LEVEL"`
}

// Default returns default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		DataDir: filepath.Join(home, ".lifescore"),
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			TTLSeconds: 3600,
		},
		Scoring: ScoringConfig{
			HealthWindowDays: 7,
			WealthWindowDays: 30,
		},
		Refresh: RefreshConfig{
			Enabled:  true,
			At:       "03:00",
			Timezone: "Local",
		},
		Logging: LoggingConfig{
			Mode:  "development",
			Level: "info",
		},
	}
}

// DBPath returns the SQLite database location
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "lifescore.db")
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Load loads config from file, falling back to defaults, then applies
// LIFESCORE_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.json")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot run with
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Scoring.HealthWindowDays <= 0 || c.Scoring.WealthWindowDays <= 0 {
		return fmt.Errorf("scoring windows must be positive")
	}
	if c.Refresh.Enabled && c.Refresh.Cron == "" {
		if _, err := time.Parse("15:04", c.Refresh.At); err != nil {
			return fmt.Errorf("refresh.at %q: want HH:MM", c.Refresh.At)
		}
	}
	return nil
}

// Save saves config to file
func (c *Config) Save(path string) error {
	if path == "" {
		path = filepath.Join(c.DataDir, "config.json")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	// Don't save the redis password to file
	safeCfg := *c
	safeCfg.Redis.Password = ""

	data, err := json.MarshalIndent(safeCfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
