// Package config loads the heartbeat daemon configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/reugn/go-heartbeat/sampler"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level daemon configuration.
type Config struct {
	// Interval between two samples.
	Interval time.Duration `yaml:"interval"`
	// Heartbeat is the length of a metric window.
	Heartbeat time.Duration `yaml:"heartbeat"`
	// ZeroDeltaPolicy is "emit-zero" or "skip".
	ZeroDeltaPolicy string `yaml:"zero_delta_policy"`
	// Core1Split reports the usage of the second CPU separately.
	Core1Split bool   `yaml:"core1_split"`
	LogLevel   string `yaml:"log_level"`
	Sinks      Sinks  `yaml:"sinks"`
}

// Sinks configures the metric sinks in addition to the in-memory store.
type Sinks struct {
	Prometheus PrometheusSink `yaml:"prometheus"`
	Redis      RedisSink      `yaml:"redis"`
}

// PrometheusSink configures the Prometheus exporter.
type PrometheusSink struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Namespace string `yaml:"namespace"`
}

// RedisSink configures the Redis hash sink.
type RedisSink struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Hash     string        `yaml:"hash"`
	TTL      time.Duration `yaml:"ttl"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Interval:        time.Second,
		Heartbeat:       time.Minute,
		ZeroDeltaPolicy: sampler.ZeroDeltaEmitZero.String(),
		LogLevel:        "info",
		Sinks: Sinks{
			Prometheus: PrometheusSink{
				Listen:    ":9464",
				Namespace: "heartbeat",
			},
			Redis: RedisSink{
				Addr: "localhost:6379",
				Hash: "heartbeat",
			},
		},
	}
}

// Load reads the configuration file at path on top of the defaults.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %v", c.Interval))
	}
	if c.Heartbeat < c.Interval {
		errs = append(errs, fmt.Errorf("heartbeat %v is shorter than interval %v",
			c.Heartbeat, c.Interval))
	}
	if _, err := sampler.ParseZeroDeltaPolicy(c.ZeroDeltaPolicy); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Sinks.Prometheus.Enabled && c.Sinks.Prometheus.Listen == "" {
		errs = append(errs, errors.New("prometheus sink requires a listen address"))
	}
	if c.Sinks.Redis.Enabled {
		if c.Sinks.Redis.Addr == "" {
			errs = append(errs, errors.New("redis sink requires an address"))
		}
		if c.Sinks.Redis.Hash == "" {
			errs = append(errs, errors.New("redis sink requires a hash key"))
		}
		if c.Sinks.Redis.TTL < 0 {
			errs = append(errs, fmt.Errorf("redis ttl must not be negative, got %v", c.Sinks.Redis.TTL))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Policy returns the configured zero delta policy.
func (c *Config) Policy() sampler.ZeroDeltaPolicy {
	policy, _ := sampler.ParseZeroDeltaPolicy(c.ZeroDeltaPolicy)
	return policy
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
