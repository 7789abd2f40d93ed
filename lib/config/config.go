// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local machines and tests.
	Development Environment = "development"
	// Production is for real deployments.
	Production Environment = "production"
)

// Config is the klogd configuration.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// StateDirectory holds the mapped message buffer by default.
	StateDirectory string `yaml:"state_directory"`

	// Buffer configures the message buffer.
	Buffer BufferConfig `yaml:"buffer"`

	// Device configures the log device.
	Device DeviceConfig `yaml:"device"`

	// Socket configures the device socket.
	Socket SocketConfig `yaml:"socket"`

	// Console configures the system console.
	Console ConsoleConfig `yaml:"console"`

	// Collector optionally binds a forwarding target at startup.
	Collector CollectorConfig `yaml:"collector"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Buffer    *BufferConfig    `yaml:"buffer,omitempty"`
	Socket    *SocketConfig    `yaml:"socket,omitempty"`
	Console   *ConsoleConfig   `yaml:"console,omitempty"`
	Collector *CollectorConfig `yaml:"collector,omitempty"`
}

// BufferConfig configures the message buffer.
type BufferConfig struct {
	// Path is the file the buffer is mapped from, so its contents
	// survive a daemon restart. Empty keeps the buffer in memory.
	// Default: ${KLOG_STATE}/msgbuf
	Path string `yaml:"path"`

	// Capacity is the usable size in bytes.
	// Default: 65536
	Capacity int `yaml:"capacity"`
}

// DeviceConfig configures the log device.
type DeviceConfig struct {
	// TickInterval is the deferred notifier period.
	// Default: 50ms
	TickInterval string `yaml:"tick_interval"`

	// MaxLine bounds injected messages.
	// Default: 8192
	MaxLine int `yaml:"max_line"`

	// PrivilegedUIDs may bind forwarding targets and write log lines.
	// Default: [0]
	PrivilegedUIDs []int `yaml:"privileged_uids"`
}

// SocketConfig configures the device socket.
type SocketConfig struct {
	// Path is the Unix socket klogd listens on.
	// Default: /run/klog/klogd.sock
	Path string `yaml:"path"`

	// Mode is the octal permission string applied to the socket.
	// Injection is open to every local user, so the default is
	// world-writable; device operations check peer credentials.
	// Default: "0666"
	Mode string `yaml:"mode"`
}

// ConsoleConfig configures the system console.
type ConsoleConfig struct {
	// Device is the structured console, a terminal or file opened for
	// appending. Empty leaves only the raw console.
	Device string `yaml:"device"`

	// Raw enables per-character output on standard error when no
	// structured console is attached.
	// Default: true (development), false (production)
	Raw bool `yaml:"raw"`

	// BufferCapacity sizes the console message buffer. Zero disables
	// it.
	// Default: 16384
	BufferCapacity int `yaml:"buffer_capacity"`
}

// CollectorConfig names a collector to bind at startup.
type CollectorConfig struct {
	// Network is "unix", "unixgram", "unixpacket", or "tcp".
	Network string `yaml:"network"`

	// Address is the collector's socket path or host:port.
	Address string `yaml:"address"`

	// BindAtStart binds the collector as soon as klogd starts.
	BindAtStart bool `yaml:"bind_at_start"`
}

// Default returns the default configuration, used as the base before
// the config file is applied.
func Default() *Config {
	return &Config{
		Environment:    Development,
		StateDirectory: "${KLOG_STATE:-/var/lib/klog}",
		Buffer: BufferConfig{
			Path:     "${KLOG_STATE}/msgbuf",
			Capacity: 64 * 1024,
		},
		Device: DeviceConfig{
			TickInterval:   "50ms",
			MaxLine:        8192,
			PrivilegedUIDs: []int{0},
		},
		Socket: SocketConfig{
			Path: "/run/klog/klogd.sock",
			Mode: "0666",
		},
		Console: ConsoleConfig{
			Raw:            true,
			BufferCapacity: 16 * 1024,
		},
	}
}

// Load loads configuration from the file named by KLOG_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("KLOG_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("KLOG_CONFIG environment variable not set; " +
			"set it to the path of your klogd.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// loadFile merges one file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is valid YAML once comments and trailing commas are gone.
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{
				Console: &ConsoleConfig{Raw: false},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Buffer != nil {
		if overrides.Buffer.Path != "" {
			c.Buffer.Path = overrides.Buffer.Path
		}
		if overrides.Buffer.Capacity != 0 {
			c.Buffer.Capacity = overrides.Buffer.Capacity
		}
	}

	if overrides.Socket != nil {
		if overrides.Socket.Path != "" {
			c.Socket.Path = overrides.Socket.Path
		}
		if overrides.Socket.Mode != "" {
			c.Socket.Mode = overrides.Socket.Mode
		}
	}

	if overrides.Console != nil {
		if overrides.Console.Device != "" {
			c.Console.Device = overrides.Console.Device
		}
		// Raw is a bool, so it always applies.
		c.Console.Raw = overrides.Console.Raw
		if overrides.Console.BufferCapacity != 0 {
			c.Console.BufferCapacity = overrides.Console.BufferCapacity
		}
	}

	if overrides.Collector != nil {
		c.Collector = *overrides.Collector
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.StateDirectory = expandVars(c.StateDirectory, vars)
	vars["KLOG_STATE"] = c.StateDirectory

	c.Buffer.Path = expandVars(c.Buffer.Path, vars)
	c.Socket.Path = expandVars(c.Socket.Path, vars)
	c.Console.Device = expandVars(c.Console.Device, vars)
	if c.Collector.Network != "tcp" {
		c.Collector.Address = expandVars(c.Collector.Address, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// TickInterval parses Device.TickInterval.
func (c *Config) TickInterval() (time.Duration, error) {
	interval, err := time.ParseDuration(c.Device.TickInterval)
	if err != nil {
		return 0, fmt.Errorf("device.tick_interval: %w", err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("device.tick_interval must be positive, got %s", interval)
	}
	return interval, nil
}

// SocketMode parses Socket.Mode.
func (c *Config) SocketMode() (os.FileMode, error) {
	mode, err := strconv.ParseUint(c.Socket.Mode, 8, 32)
	if err != nil || mode > 0o777 {
		return 0, fmt.Errorf("socket.mode %q is not an octal permission", c.Socket.Mode)
	}
	return os.FileMode(mode), nil
}

// Privileged reports whether uid is listed in Device.PrivilegedUIDs.
func (c *Config) Privileged(uid int) bool {
	for _, privileged := range c.Device.PrivilegedUIDs {
		if privileged == uid {
			return true
		}
	}
	return false
}

var collectorNetworks = []string{"unix", "unixgram", "unixpacket", "tcp"}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Buffer.Capacity < 2 {
		errs = append(errs, fmt.Errorf("buffer.capacity must be at least 2, got %d", c.Buffer.Capacity))
	}
	if c.Console.BufferCapacity < 0 {
		errs = append(errs, fmt.Errorf("console.buffer_capacity must not be negative"))
	}
	if _, err := c.TickInterval(); err != nil {
		errs = append(errs, err)
	}
	if c.Device.MaxLine <= 0 {
		errs = append(errs, fmt.Errorf("device.max_line must be positive, got %d", c.Device.MaxLine))
	}
	if c.Socket.Path == "" {
		errs = append(errs, fmt.Errorf("socket.path is required"))
	}
	if _, err := c.SocketMode(); err != nil {
		errs = append(errs, err)
	}
	if c.Collector.BindAtStart {
		if !contains(collectorNetworks, c.Collector.Network) {
			errs = append(errs, fmt.Errorf("collector.network must be one of: %v", collectorNetworks))
		}
		if c.Collector.Address == "" {
			errs = append(errs, fmt.Errorf("collector.address is required with bind_at_start"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the directories klogd writes into.
func (c *Config) EnsurePaths() error {
	directories := []string{filepath.Dir(c.Socket.Path)}
	if c.Buffer.Path != "" {
		directories = append(directories, filepath.Dir(c.Buffer.Path))
	}
	for _, directory := range directories {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", directory, err)
		}
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
