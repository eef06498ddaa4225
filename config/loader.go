// Package config provides configuration loading and parsing functionality
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFormat represents the configuration file format
type ConfigFormat string

const (
	FormatYAML ConfigFormat = "yaml"
	FormatJSON ConfigFormat = "json"
)

// DefaultEnvPrefix prefixes every environment override, as in IOT_LOG_LEVEL.
const DefaultEnvPrefix = "IOT"

// Loader handles configuration loading from various sources
type Loader struct {
	// Configuration search paths
	searchPaths []string

	// Environment variable prefix
	envPrefix string

	// Default configuration
	defaultConfig *Config

	// Environment lookup, os.LookupEnv unless replaced in tests
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	paths := []string{
		".",
		"./config",
		"./configs",
		"/etc/iot",
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".iot"))
	}

	return &Loader{
		searchPaths:   paths,
		envPrefix:     DefaultEnvPrefix,
		defaultConfig: DefaultConfig(),
		lookupEnv:     os.LookupEnv,
	}
}

// SetSearchPaths sets the configuration file search paths
func (l *Loader) SetSearchPaths(paths []string) *Loader {
	l.searchPaths = paths
	return l
}

// SetEnvPrefix sets the environment variable prefix
func (l *Loader) SetEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// SetDefaultConfig sets the default configuration
func (l *Loader) SetDefaultConfig(config *Config) *Loader {
	l.defaultConfig = config
	return l
}

// Load loads configuration from the specified file, or from defaults and
// the environment when filename is empty.
func (l *Loader) Load(filename string) (*Config, error) {
	if filename == "" {
		return l.finish(l.defaults())
	}
	return l.loadFromFile(filename)
}

// LoadFromFile loads configuration from a specific file
func (l *Loader) LoadFromFile(filename string) (*Config, error) {
	return l.loadFromFile(filename)
}

// LoadFromReader loads configuration from an io.Reader. Environment
// overrides are not applied.
func (l *Loader) LoadFromReader(reader io.Reader, format ConfigFormat) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration data: %w", err)
	}

	config := l.defaults()
	if err := parseConfig(data, format, config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// AutoLoad automatically discovers and loads configuration
func (l *Loader) AutoLoad() (*Config, error) {
	configFile, err := l.findConfigFile()
	if errors.Is(err, ErrConfigFileNotFound) {
		return l.finish(l.defaults())
	}
	if err != nil {
		return nil, err
	}
	return l.loadFromFile(configFile)
}

// findConfigFile searches for configuration files in search paths
func (l *Loader) findConfigFile() (string, error) {
	filenames := []string{
		"iot.yaml", "iot.yml",
		"config.yaml", "config.yml",
		"iot.json", "config.json",
	}

	for _, searchPath := range l.searchPaths {
		for _, filename := range filenames {
			fullPath := filepath.Join(searchPath, filename)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
	}

	return "", ErrConfigFileNotFound
}

// loadFromFile reads filename over the defaults, then applies environment
// overrides and validates.
func (l *Loader) loadFromFile(filename string) (*Config, error) {
	format, err := formatOf(filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	config := l.defaults()
	if err := parseConfig(data, format, config); err != nil {
		return nil, fmt.Errorf("config file %s: %w", filename, err)
	}

	return l.finish(config)
}

func (l *Loader) finish(config *Config) (*Config, error) {
	if err := l.loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// defaults returns a copy of the default configuration to decode into.
func (l *Loader) defaults() *Config {
	if l.defaultConfig == nil {
		return DefaultConfig()
	}
	config := *l.defaultConfig
	return &config
}

func formatOf(filename string) (ConfigFormat, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}
}

// parseConfig decodes data into config. Fields missing from data keep the
// value config already has.
func parseConfig(data []byte, format ConfigFormat, config *Config) error {
	switch format {
	case FormatYAML:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("%w: YAML: %v", ErrConfigParseError, err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("%w: JSON: %v", ErrConfigParseError, err)
		}
	default:
		return fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
	}

	return nil
}

// loadFromEnv loads configuration overrides from environment variables
func (l *Loader) loadFromEnv(config *Config) error {
	// App configuration
	if val, ok := l.env("APP_NAME"); ok {
		config.App.Name = val
	}
	if val, ok := l.env("APP_VERSION"); ok {
		config.App.Version = val
	}
	if val, ok := l.env("APP_ENVIRONMENT"); ok {
		config.App.Environment = Environment(val)
	}
	if val, ok := l.env("APP_DEBUG"); ok {
		config.App.Debug = strings.ToLower(val) == "true"
	}

	// Log configuration
	if val, ok := l.env("LOG_LEVEL"); ok {
		config.Log.Level = LogLevel(strings.ToLower(val))
	}
	if val, ok := l.env("LOG_FORMAT"); ok {
		config.Log.Format = val
	}

	// Actor configuration
	if err := l.envInt("ACTOR_DEFAULT_MAILBOX_SIZE", &config.Actor.DefaultMailboxSize); err != nil {
		return err
	}
	if err := l.envDuration("ACTOR_CALL_TIMEOUT", &config.Actor.Timeouts.Call); err != nil {
		return err
	}
	if err := l.envDuration("ACTOR_SHUTDOWN_TIMEOUT", &config.Actor.Timeouts.Shutdown); err != nil {
		return err
	}

	// Device configuration
	if err := l.envDuration("DEVICE_QUERY_TIMEOUT", &config.Device.QueryTimeout); err != nil {
		return err
	}

	// Monitor configuration
	if val, ok := l.env("MONITOR_ENABLED"); ok {
		config.Monitor.Enabled = strings.ToLower(val) == "true"
	}
	if val, ok := l.env("MONITOR_ENDPOINT"); ok {
		config.Monitor.Endpoint = val
	}
	if val, ok := l.env("MONITOR_TRACES"); ok {
		config.Monitor.Traces = strings.ToLower(val) == "true"
	}
	if val, ok := l.env("MONITOR_TRACE_SAMPLE_RATE"); ok {
		rate, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("%w: %s_MONITOR_TRACE_SAMPLE_RATE=%q: %v", ErrEnvironmentVarError, l.envPrefix, val, err)
		}
		config.Monitor.TraceSampleRate = rate
	}

	return nil
}

func (l *Loader) env(name string) (string, bool) {
	lookup := l.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	val, ok := lookup(l.envPrefix + "_" + name)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

func (l *Loader) envInt(name string, out *int) error {
	val, ok := l.env(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%w: %s_%s=%q: %v", ErrEnvironmentVarError, l.envPrefix, name, val, err)
	}
	*out = n
	return nil
}

func (l *Loader) envDuration(name string, out *time.Duration) error {
	val, ok := l.env(name)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("%w: %s_%s=%q: %v", ErrEnvironmentVarError, l.envPrefix, name, val, err)
	}
	*out = d
	return nil
}
