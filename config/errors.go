// Package config provides error definitions for configuration management
package config

import "errors"

// Configuration validation errors
var (
	ErrInvalidAppName         = errors.New("invalid application name")
	ErrInvalidEnvironment     = errors.New("invalid environment")
	ErrInvalidLogLevel        = errors.New("invalid log level")
	ErrInvalidMailboxSize     = errors.New("invalid mailbox size")
	ErrInvalidQueryTimeout    = errors.New("invalid query timeout")
	ErrCallTimeoutTooShort    = errors.New("call timeout must exceed query timeout")
	ErrInvalidMetricsInterval = errors.New("invalid metrics interval")
	ErrInvalidTraceSampleRate = errors.New("trace sample rate must be between 0 and 1")
)

// Configuration loading errors
var (
	ErrConfigFileNotFound  = errors.New("configuration file not found")
	ErrConfigParseError    = errors.New("configuration parse error")
	ErrUnsupportedFormat   = errors.New("unsupported configuration format")
	ErrEnvironmentVarError = errors.New("environment variable error")
	ErrConfigWatchError    = errors.New("configuration watch error")
)
