// Package config provides YAML-based configuration loading for Signalbox.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvDB      = "SIGNALBOX_DB"
	EnvDriver  = "SIGNALBOX_DRIVER"
	EnvDeliver = "SIGNALBOX_DELIVER"
)

// Config is the top-level Signalbox configuration, loaded from signalbox.yaml.
type Config struct {
	DefaultGroup string          `yaml:"default_group"`
	Storage      StorageConfig   `yaml:"storage"`
	Delivery     DeliveryConfig  `yaml:"delivery"`
	Sweep        SweepConfig     `yaml:"sweep"`
	Dashboard    DashboardConfig `yaml:"dashboard"`
}

// StorageConfig selects the shared directory backend.
type StorageConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" (default) or "mysql"
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
}

// DeliveryConfig controls how text reaches a pane.
type DeliveryConfig struct {
	// Command is an external program invoked as `<command> <address> <text>`.
	// Empty means use tmux send-keys directly.
	Command string        `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
	// Notify is a shell command template run for urgent messages, e.g.
	// "notify-send 'signalbox' '{{.From}}: {{.Content}}'".
	Notify string `yaml:"notify"`
}

// SweepConfig schedules removal of agents whose pane no longer exists.
type SweepConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// DashboardConfig holds the read-only HTTP API settings.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// LoadOrDefault behaves like Load but treats a missing file as empty.
func LoadOrDefault(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays environment variables onto file values.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvDriver)); v != "" {
		c.Storage.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDB)); v != "" {
		if c.Storage.Driver == "mysql" {
			c.Storage.Database = v
		} else {
			c.Storage.Path = v
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvDeliver)); v != "" {
		c.Delivery.Command = v
	}
}

// DefaultDBPath is ~/.signalbox/signalbox.db, or a relative path when the
// home directory cannot be determined.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".signalbox", "signalbox.db")
	}
	return filepath.Join(home, ".signalbox", "signalbox.db")
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.DefaultGroup == "" {
		c.DefaultGroup = "default"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		c.Storage.Path = DefaultDBPath()
	}
	if c.Storage.Driver == "mysql" {
		if c.Storage.Host == "" {
			c.Storage.Host = "127.0.0.1"
		}
		if c.Storage.Port == 0 {
			c.Storage.Port = 3306
		}
		if c.Storage.Database == "" {
			c.Storage.Database = "signalbox"
		}
		if c.Storage.User == "" {
			c.Storage.User = "root"
		}
	}
	if c.Delivery.Timeout == 0 {
		c.Delivery.Timeout = 10 * time.Second
	}
	if c.Sweep.Schedule == "" {
		c.Sweep.Schedule = "*/5 * * * *"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// CronParser accepts standard 5-field expressions (minute, hour, dom, month, dow).
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Storage.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("storage.driver %q must be sqlite or mysql", c.Storage.Driver))
	}
	if c.Delivery.Timeout < 0 {
		errs = append(errs, "delivery.timeout must be positive")
	}
	if _, err := CronParser.Parse(c.Sweep.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("sweep.schedule %q: %v", c.Sweep.Schedule, err))
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Sprintf("dashboard.port %d out of range", c.Dashboard.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
