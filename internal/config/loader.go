package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	SeedDir      string `json:"seed_dir" yaml:"seed_dir" toml:"seed_dir"`
	LogLevel     string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat    string `json:"log_format" yaml:"log_format" toml:"log_format"`
	Debug        bool   `json:"debug" yaml:"debug" toml:"debug"`
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	MemWatchEnabled        bool    `json:"mem_watch_enabled" yaml:"mem_watch_enabled" toml:"mem_watch_enabled"`
	MemWatchInterval       string  `json:"mem_watch_interval" yaml:"mem_watch_interval" toml:"mem_watch_interval"`
	MemMinAvailablePercent float64 `json:"mem_min_available_percent" yaml:"mem_min_available_percent" toml:"mem_min_available_percent"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Defaults returns the configuration used when no file or flag sets a value.
func Defaults() Config {
	return Config{
		Addr:                   ":8080",
		LogLevel:               "info",
		LogFormat:              "console",
		MaxBodyBytes:           1 << 20,
		MemWatchInterval:       "5s",
		MemMinAvailablePercent: 10,
	}
}

// ApplyDefaults fills unset fields of cfg from Defaults.
func ApplyDefaults(cfg Config) Config {
	d := Defaults()
	if cfg.Addr == "" {
		cfg.Addr = d.Addr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = d.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = d.LogFormat
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = d.MaxBodyBytes
	}
	if cfg.MemWatchInterval == "" {
		cfg.MemWatchInterval = d.MemWatchInterval
	}
	if cfg.MemMinAvailablePercent <= 0 {
		cfg.MemMinAvailablePercent = d.MemMinAvailablePercent
	}
	return cfg
}

// MemWatchEvery parses MemWatchInterval.
func (c Config) MemWatchEvery() (time.Duration, error) {
	d, err := time.ParseDuration(c.MemWatchInterval)
	if err != nil {
		return 0, fmt.Errorf("mem_watch_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("mem_watch_interval must be positive, got %s", d)
	}
	return d, nil
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
