// Package config loads the layered configuration consumed by every other
// component: built-in defaults, overridden by .sailing/config.yaml,
// overridden by SAILING_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EffortMap resolves a symbolic effort estimate to hours.
type EffortMap map[string]float64

// DefaultEffortMap is the built-in table referenced by spec.md §4.D.
func DefaultEffortMap() EffortMap {
	return EffortMap{
		"1h": 1,
		"2h": 2,
		"4h": 4,
		"1d": 8,
		"2d": 16,
		"1w": 40,
	}
}

// Watchdog holds the agent budget, timeout and kill-grace settings. They are
// loaded and parsed; no component enforces the budget or the timeout.
type Watchdog struct {
	MaxBudgetUSD    float64       `yaml:"max_budget_usd"`
	TimeoutDuration time.Duration `yaml:"-"`
	Timeout         string        `yaml:"watchdog_timeout"`
	GraceDuration   time.Duration `yaml:"-"`
	Grace           string        `yaml:"kill_grace_period"`
}

// GC controls garbage-collection defaults.
type GC struct {
	IntervalDuration time.Duration `yaml:"-"`
	Interval         string        `yaml:"interval"`
	AutoFix          bool          `yaml:"auto_fix"`
	AllowUnsafe      bool          `yaml:"allow_unsafe"`
}

// Notify controls the change-notification bus.
type Notify struct {
	DebounceDuration time.Duration `yaml:"-"`
	Debounce         string        `yaml:"debounce"`
}

// PR configures the optional pull-request-creation seam reap uses once an
// agent's branch carries committed work. Provider "" means unconfigured:
// reap still completes, it simply never opens a PR.
type PR struct {
	Provider string `yaml:"provider"`
}

// Config is the fully-resolved configuration tree.
type Config struct {
	DefaultEffortHours float64   `yaml:"default_effort_hours"`
	Effort             EffortMap `yaml:"effort"`
	Watchdog           Watchdog  `yaml:"watchdog"`
	GC                 GC        `yaml:"gc"`
	Notify             Notify    `yaml:"notify"`
	PR                 PR        `yaml:"pr"`
	LogLevel           string    `yaml:"log_level"`
}

// Default returns the built-in configuration applied before any file or
// environment overrides.
func Default() *Config {
	return &Config{
		DefaultEffortHours: 4,
		Effort:             DefaultEffortMap(),
		Watchdog: Watchdog{
			MaxBudgetUSD:    5.0,
			TimeoutDuration: 30 * time.Minute,
			Timeout:         "30m",
			GraceDuration:   10 * time.Second,
			Grace:           "10s",
		},
		GC: GC{
			IntervalDuration: time.Hour,
			Interval:         "1h",
			AutoFix:          false,
			AllowUnsafe:      false,
		},
		Notify: Notify{
			DebounceDuration: 200 * time.Millisecond,
			Debounce:         "200ms",
		},
		LogLevel: "info",
	}
}

// Load builds the effective configuration: defaults, then configPath (if it
// exists) merged in, then environment overrides. configPath not existing is
// not an error — it simply means defaults-only.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", configPath, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := resolveDurations(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SAILING_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SAILING_MAX_BUDGET_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Watchdog.MaxBudgetUSD = f
		}
	}
	if v := os.Getenv("SAILING_WATCHDOG_TIMEOUT"); v != "" {
		cfg.Watchdog.Timeout = v
	}
	if v := os.Getenv("SAILING_GC_AUTO_FIX"); v != "" {
		cfg.GC.AutoFix = strings.EqualFold(v, "true") || v == "1"
	}
}

func resolveDurations(cfg *Config) error {
	var err error
	if cfg.Watchdog.TimeoutDuration, err = time.ParseDuration(cfg.Watchdog.Timeout); err != nil {
		return fmt.Errorf("config: watchdog.watchdog_timeout: %w", err)
	}
	if cfg.Watchdog.GraceDuration, err = time.ParseDuration(cfg.Watchdog.Grace); err != nil {
		return fmt.Errorf("config: watchdog.kill_grace_period: %w", err)
	}
	if cfg.GC.IntervalDuration, err = time.ParseDuration(cfg.GC.Interval); err != nil {
		return fmt.Errorf("config: gc.interval: %w", err)
	}
	if cfg.Notify.DebounceDuration, err = time.ParseDuration(cfg.Notify.Debounce); err != nil {
		return fmt.Errorf("config: notify.debounce: %w", err)
	}
	return nil
}

// EffortHours resolves a symbolic effort estimate to hours, falling back to
// the configured default when sym is empty or unknown.
func (c *Config) EffortHours(sym string) float64 {
	if sym == "" {
		return c.DefaultEffortHours
	}
	if h, ok := c.Effort[sym]; ok {
		return h
	}
	return c.DefaultEffortHours
}
