package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/daimatz/invokergen/pkg/logging"
	"github.com/daimatz/invokergen/pkg/observability"
	"gopkg.in/yaml.v3"
)

// DebugConfig enables the diagnostic dump of generated classes.
type DebugConfig struct {
	Location string `yaml:"location" toml:"location"` // directory; empty disables the dump
	Trace    bool   `yaml:"trace" toml:"trace"`       // also write a disassembly
}

// LoaderConfig selects the loading strategies to probe, in order.
type LoaderConfig struct {
	Strategies []string `yaml:"strategies" toml:"strategies"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr" toml:"addr"` // e.g. ":9464"; empty disables serving
}

// Config is the complete configuration.
type Config struct {
	Naming    string               `yaml:"naming" toml:"naming"`
	LogLevel  string               `yaml:"log_level" toml:"log_level"`
	ClassPath string               `yaml:"classpath" toml:"classpath"`
	Debug     DebugConfig          `yaml:"debug" toml:"debug"`
	Loader    LoaderConfig         `yaml:"loader" toml:"loader"`
	Metrics   MetricsConfig        `yaml:"metrics" toml:"metrics"`
	Tracing   observability.Config `yaml:"tracing" toml:"tracing"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Naming:   "unique",
		LogLevel: "info",
		Loader: LoaderConfig{
			Strategies: []string{"direct", "memory"},
		},
		Tracing: observability.Config{
			ServiceName: "invokergen",
			SampleRate:  1.0,
		},
	}
}

// LoadFromFile loads configuration from a YAML (.yaml, .yml) or TOML
// (.toml) file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parse %s: unknown keys %v", path, undecoded)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("INVOKERGEN_NAMING"); v != "" {
		cfg.Naming = v
	}
	if v := os.Getenv("INVOKERGEN_DEBUG_LOCATION"); v != "" {
		cfg.Debug.Location = v
	}
	if v := os.Getenv("INVOKERGEN_DEBUG_TRACE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug.Trace = b
		}
	}
	if v := os.Getenv("INVOKERGEN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("INVOKERGEN_CLASSPATH"); v != "" {
		cfg.ClassPath = v
	}
	if v := os.Getenv("INVOKERGEN_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

// Validate checks values that cannot be checked by decoding.
func (c *Config) Validate() error {
	switch c.Naming {
	case "", "unique", "stable":
	default:
		return fmt.Errorf("naming: unknown policy %q (want unique or stable)", c.Naming)
	}
	if c.LogLevel != "" {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	seen := make(map[string]bool)
	for _, s := range c.Loader.Strategies {
		if s != "direct" && s != "memory" {
			return fmt.Errorf("loader.strategies: unknown strategy %q", s)
		}
		if seen[s] {
			return fmt.Errorf("loader.strategies: %q listed twice", s)
		}
		seen[s] = true
	}
	if c.Debug.Trace && c.Debug.Location == "" {
		return fmt.Errorf("debug.trace requires debug.location")
	}
	if r := c.Tracing.SampleRate; r < 0 || r > 1 {
		return fmt.Errorf("tracing.sample_rate: %v is outside [0, 1]", r)
	}
	return nil
}
