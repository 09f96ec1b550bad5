// Package config loads and validates the data logger settings.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the default config file location
const EnvConfigPath = "DATALOGGER_CONFIG"

// RunForever is the total runtime that logs until interrupted
const RunForever = -1

// Config holds the complete application configuration.
type Config struct {
	Save     SaveConfig     `yaml:"save"`
	Commands CommandsConfig `yaml:"commands"`
	Times    TimesConfig    `yaml:"times"`
	Serial   SerialConfig   `yaml:"serial"`
	Connect  ConnectConfig  `yaml:"connect"`
	Log      LogConfig      `yaml:"log"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// SaveConfig describes the output file.
type SaveConfig struct {
	Path      string `yaml:"path"`      // relative paths resolve under the home directory
	Name      string `yaml:"name"`      // base file name
	Extension string `yaml:"extension"` // e.g. ".csv"
	OnError   bool   `yaml:"on_error"`  // write partial samples when the run fails
}

// CommandsConfig holds the instrument commands.
type CommandsConfig struct {
	Setup string `yaml:"setup"`
	Send  string `yaml:"send"`
}

// TimesConfig holds the sampling cadence, in seconds.
type TimesConfig struct {
	SampleTime   float64 `yaml:"sample_time"`
	TotalRuntime float64 `yaml:"total_runtime"` // RunForever to log until interrupted
}

// SerialConfig holds serial line settings.
type SerialConfig struct {
	BaudRate    int           `yaml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// ConnectConfig holds the discovery retry policy.
type ConnectConfig struct {
	Attempts   int           `yaml:"attempts"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Dir   string `yaml:"dir"` // empty logs to stderr
	Debug bool   `yaml:"debug"`
}

// MonitorConfig holds the live monitor settings.
type MonitorConfig struct {
	Addr string `yaml:"addr"` // empty disables the monitor
}

// ConfigError reports an invalid setting found before any device I/O.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Save: SaveConfig{
			Path:      "Desktop",
			Name:      "Data",
			Extension: ".csv",
			OnError:   true,
		},
		Commands: CommandsConfig{
			Setup: "F1RAN5",
			Send:  "T3",
		},
		Times: TimesConfig{
			SampleTime:   0.5,
			TotalRuntime: RunForever,
		},
		Serial: SerialConfig{
			BaudRate:    9600,
			ReadTimeout: 500 * time.Millisecond,
		},
		Connect: ConnectConfig{
			Attempts:   7,
			RetryDelay: 2 * time.Second,
		},
	}
}

// DefaultPath returns the config file location, honoring DATALOGGER_CONFIG.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".datalogger", "config.yaml")
}

// Load reads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Write saves the configuration to a YAML file.
func (c *Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SaveDir resolves the output directory. A leading "~" and relative paths
// resolve under the user's home directory.
func (c *Config) SaveDir() (string, error) {
	p := c.Save.Path
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if p == "~" {
		return home, nil
	}
	p = strings.TrimPrefix(p, "~"+string(filepath.Separator))
	p = strings.TrimPrefix(p, "~/")
	return filepath.Join(home, p), nil
}

// Validate checks the settings that must hold before any port is opened.
func (c *Config) Validate() error {
	st, rt := c.Times.SampleTime, c.Times.TotalRuntime
	if math.IsNaN(st) || st <= 0 {
		return &ConfigError{Field: "times.sample_time", Reason: "must be greater than zero"}
	}
	if period := st * float64(time.Second); period < 1 || period >= math.MaxInt64 {
		return &ConfigError{Field: "times.sample_time", Reason: fmt.Sprintf("%v s is not a usable period", st)}
	}
	if math.IsNaN(rt) || math.IsInf(rt, 0) {
		return &ConfigError{Field: "times.total_runtime", Reason: "must be a finite number of seconds or -1"}
	}
	if rt >= 0 && math.Round(rt/st) >= math.MaxInt {
		return &ConfigError{Field: "times.total_runtime", Reason: "too many samples for the sample time"}
	}
	if strings.TrimSpace(c.Commands.Send) == "" {
		return &ConfigError{Field: "commands.send", Reason: "must not be empty"}
	}
	if strings.TrimSpace(c.Save.Name) == "" {
		return &ConfigError{Field: "save.name", Reason: "must not be empty"}
	}
	if c.Serial.BaudRate <= 0 {
		return &ConfigError{Field: "serial.baud_rate", Reason: "must be greater than zero"}
	}
	if c.Serial.ReadTimeout <= 0 {
		return &ConfigError{Field: "serial.read_timeout", Reason: "must be greater than zero"}
	}
	if c.Connect.Attempts < 1 {
		return &ConfigError{Field: "connect.attempts", Reason: "must be at least 1"}
	}
	if c.Connect.RetryDelay < 0 {
		return &ConfigError{Field: "connect.retry_delay", Reason: "must not be negative"}
	}

	dir, err := c.SaveDir()
	if err != nil {
		return &ConfigError{Field: "save.path", Reason: err.Error()}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return &ConfigError{Field: "save.path", Reason: fmt.Sprintf("%s does not exist", dir)}
	}
	if !info.IsDir() {
		return &ConfigError{Field: "save.path", Reason: fmt.Sprintf("%s is not a directory", dir)}
	}
	return nil
}
