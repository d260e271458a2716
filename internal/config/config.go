package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Session SessionConfig `yaml:"session"`
	Watch   WatchConfig   `yaml:"watch"`
	Stats   StatsConfig   `yaml:"stats"`
}

// SessionConfig holds the defaults applied to every long-poll session.
type SessionConfig struct {
	Lifetime           time.Duration `yaml:"lifetime"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	TransactionTimeout time.Duration `yaml:"transaction_timeout"`
	// TeardownTimeout bounds the wait for an in-flight transaction on
	// destroy or expiry. Zero waits forever.
	TeardownTimeout time.Duration `yaml:"teardown_timeout"`
	EventBuffer     int           `yaml:"event_buffer"`
}

// WatchConfig selects what pollwatch observes.
type WatchConfig struct {
	Key       string  `yaml:"key"`
	Source    string  `yaml:"source"` // cpu, mem, load, procs, file
	Path      string  `yaml:"path"`
	Threshold float64 `yaml:"threshold"`
	Count     int     `yaml:"count"` // 0 polls until interrupted
}

type StatsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Dir          string        `yaml:"dir"` // empty uses the XDG state dir
	SaveInterval time.Duration `yaml:"save_interval"`
}

var validSources = map[string]bool{
	"cpu":   true,
	"mem":   true,
	"load":  true,
	"procs": true,
	"file":  true,
}

func defaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			Lifetime:           time.Minute,
			PollInterval:       250 * time.Millisecond,
			TransactionTimeout: 10 * time.Second,
			EventBuffer:        256,
		},
		Watch: WatchConfig{
			Key:       "cpu",
			Source:    "cpu",
			Threshold: 5,
		},
		Stats: StatsConfig{
			Enabled:      true,
			SaveInterval: 30 * time.Second,
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	var errs []error
	if c.Session.Lifetime <= 0 {
		errs = append(errs, fmt.Errorf("session.lifetime must be positive, got %v", c.Session.Lifetime))
	}
	if c.Session.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("session.poll_interval must be positive, got %v", c.Session.PollInterval))
	}
	if c.Session.TransactionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session.transaction_timeout must be positive, got %v", c.Session.TransactionTimeout))
	}
	if c.Session.TeardownTimeout < 0 {
		errs = append(errs, fmt.Errorf("session.teardown_timeout must not be negative, got %v", c.Session.TeardownTimeout))
	}
	if c.Session.EventBuffer < 0 {
		errs = append(errs, fmt.Errorf("session.event_buffer must not be negative, got %d", c.Session.EventBuffer))
	}
	if c.Watch.Key == "" {
		errs = append(errs, errors.New("watch.key is required"))
	}
	if !validSources[c.Watch.Source] {
		errs = append(errs, fmt.Errorf("watch.source %q is not one of cpu, mem, load, procs, file", c.Watch.Source))
	}
	if c.Watch.Source == "file" && c.Watch.Path == "" {
		errs = append(errs, errors.New("watch.path is required for the file source"))
	}
	if c.Watch.Threshold < 0 {
		errs = append(errs, fmt.Errorf("watch.threshold must not be negative, got %v", c.Watch.Threshold))
	}
	if c.Stats.Enabled && c.Stats.SaveInterval <= 0 {
		errs = append(errs, fmt.Errorf("stats.save_interval must be positive, got %v", c.Stats.SaveInterval))
	}
	return errors.Join(errs...)
}
