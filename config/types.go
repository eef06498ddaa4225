// Package config provides configuration management for the IoT hub
package config

import (
	"time"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// String returns the string representation of Environment
func (e Environment) String() string {
	return string(e)
}

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvTesting, EnvStaging, EnvProduction:
		return true
	default:
		return false
	}
}

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	return string(l)
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelFatal:
		return true
	default:
		return false
	}
}

// Config represents the complete hub configuration
type Config struct {
	// Application configuration
	App AppConfig `yaml:"app" json:"app"`

	// Logging configuration
	Log LogConfig `yaml:"log" json:"log"`

	// Actor system configuration
	Actor ActorConfig `yaml:"actor" json:"actor"`

	// Device telemetry configuration
	Device DeviceConfig `yaml:"device" json:"device"`

	// Monitoring configuration
	Monitor MonitorConfig `yaml:"monitor" json:"monitor"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	// Application name
	Name string `yaml:"name" json:"name"`

	// Application version
	Version string `yaml:"version" json:"version"`

	// Deployment environment
	Environment Environment `yaml:"environment" json:"environment"`

	// Debug mode
	Debug bool `yaml:"debug" json:"debug"`

	// Application description
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	// Log level
	Level LogLevel `yaml:"level" json:"level"`

	// Log format (json, text)
	Format string `yaml:"format" json:"format"`
}

// ActorConfig contains actor system configuration
type ActorConfig struct {
	// Default actor mailbox size
	DefaultMailboxSize int `yaml:"default_mailbox_size" json:"default_mailbox_size"`

	// Actor timeout settings
	Timeouts ActorTimeoutConfig `yaml:"timeouts" json:"timeouts"`
}

// ActorTimeoutConfig contains actor timeout settings
type ActorTimeoutConfig struct {
	// Per-message processing deadline
	Process time.Duration `yaml:"process" json:"process"`

	// Actor system shutdown timeout
	Shutdown time.Duration `yaml:"shutdown" json:"shutdown"`

	// Call timeout
	Call time.Duration `yaml:"call" json:"call"`
}

// DeviceConfig contains the device manager settings
type DeviceConfig struct {
	// Default deadline of a bulk read
	QueryTimeout time.Duration `yaml:"query_timeout" json:"query_timeout"`

	// Mailbox sizes; zero uses actor.default_mailbox_size
	GroupMailboxSize  int `yaml:"group_mailbox_size" json:"group_mailbox_size"`
	DeviceMailboxSize int `yaml:"device_mailbox_size" json:"device_mailbox_size"`
	QueryMailboxSize  int `yaml:"query_mailbox_size" json:"query_mailbox_size"`
}

// MonitorConfig contains monitoring configuration
type MonitorConfig struct {
	// Enable metrics
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Metrics export interval
	MetricsInterval time.Duration `yaml:"metrics_interval" json:"metrics_interval"`

	// OTLP/gRPC collector endpoint; metrics stay in process when empty
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// Trace hub requests
	Traces bool `yaml:"traces" json:"traces"`

	// Fraction of root spans sampled, 0 to 1
	TraceSampleRate float64 `yaml:"trace_sample_rate" json:"trace_sample_rate"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "iot-hub",
			Version:     "1.0.0",
			Environment: EnvDevelopment,
			Debug:       true,
			Description: "IoT device telemetry hub",
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: "text",
		},
		Actor: ActorConfig{
			DefaultMailboxSize: 1000,
			Timeouts: ActorTimeoutConfig{
				Process:  30 * time.Second,
				Shutdown: 10 * time.Second,
				Call:     30 * time.Second,
			},
		},
		Device: DeviceConfig{
			QueryTimeout: 3 * time.Second,
		},
		Monitor: MonitorConfig{
			Enabled:         true,
			MetricsInterval: 10 * time.Second,
			TraceSampleRate: 1,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate app config
	if c.App.Name == "" {
		return ErrInvalidAppName
	}
	if !c.App.Environment.IsValid() {
		return ErrInvalidEnvironment
	}

	// Validate log config
	if !c.Log.Level.IsValid() {
		return ErrInvalidLogLevel
	}

	// Validate actor config
	if c.Actor.DefaultMailboxSize <= 0 {
		return ErrInvalidMailboxSize
	}
	if c.Device.GroupMailboxSize < 0 || c.Device.DeviceMailboxSize < 0 || c.Device.QueryMailboxSize < 0 {
		return ErrInvalidMailboxSize
	}

	// Validate device config
	if c.Device.QueryTimeout <= 0 {
		return ErrInvalidQueryTimeout
	}
	if c.Actor.Timeouts.Call > 0 && c.Actor.Timeouts.Call <= c.Device.QueryTimeout {
		return ErrCallTimeoutTooShort
	}

	if c.Monitor.Enabled && c.Monitor.Endpoint != "" && c.Monitor.MetricsInterval <= 0 {
		return ErrInvalidMetricsInterval
	}
	if c.Monitor.TraceSampleRate < 0 || c.Monitor.TraceSampleRate > 1 {
		return ErrInvalidTraceSampleRate
	}

	return nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// GetLogLevel returns the log level
func (c *Config) GetLogLevel() LogLevel {
	return c.Log.Level
}

// IsDebugEnabled returns true if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == EnvDevelopment
}
