package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEnv builds a lookup function over a fixed environment.
func fakeEnv(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func newTestLoader(vars map[string]string) *Loader {
	l := NewLoader().SetSearchPaths(nil)
	l.lookupEnv = fakeEnv(vars)
	return l
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestDefaultConfig tests the default configuration
func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	require.NoError(t, config.Validate())
	assert.Equal(t, "iot-hub", config.App.Name)
	assert.Equal(t, 3*time.Second, config.Device.QueryTimeout)
	assert.Equal(t, 1000, config.Actor.DefaultMailboxSize)
	assert.True(t, config.IsDevelopment())
	assert.False(t, config.IsProduction())
	assert.True(t, config.IsDebugEnabled())
	assert.Equal(t, LogLevelInfo, config.GetLogLevel())
}

// TestConfigValidation tests configuration validation
func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:   "empty app name",
			mutate: func(c *Config) { c.App.Name = "" },
			want:   ErrInvalidAppName,
		},
		{
			name:   "invalid environment",
			mutate: func(c *Config) { c.App.Environment = "moon" },
			want:   ErrInvalidEnvironment,
		},
		{
			name:   "invalid log level",
			mutate: func(c *Config) { c.Log.Level = "loud" },
			want:   ErrInvalidLogLevel,
		},
		{
			name:   "zero mailbox",
			mutate: func(c *Config) { c.Actor.DefaultMailboxSize = 0 },
			want:   ErrInvalidMailboxSize,
		},
		{
			name:   "negative device mailbox",
			mutate: func(c *Config) { c.Device.DeviceMailboxSize = -1 },
			want:   ErrInvalidMailboxSize,
		},
		{
			name:   "zero query timeout",
			mutate: func(c *Config) { c.Device.QueryTimeout = 0 },
			want:   ErrInvalidQueryTimeout,
		},
		{
			name:   "call timeout below query timeout",
			mutate: func(c *Config) { c.Actor.Timeouts.Call = time.Second },
			want:   ErrCallTimeoutTooShort,
		},
		{
			name:   "call timeout disabled",
			mutate: func(c *Config) { c.Actor.Timeouts.Call = 0 },
		},
		{
			name: "export without interval",
			mutate: func(c *Config) {
				c.Monitor.Endpoint = "localhost:4317"
				c.Monitor.MetricsInterval = 0
			},
			want: ErrInvalidMetricsInterval,
		},
		{
			name:   "trace sample rate above one",
			mutate: func(c *Config) { c.Monitor.TraceSampleRate = 1.5 },
			want:   ErrInvalidTraceSampleRate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// TestEnvironment tests environment validation
func TestEnvironment(t *testing.T) {
	tests := []struct {
		env   Environment
		valid bool
	}{
		{EnvDevelopment, true},
		{EnvTesting, true},
		{EnvStaging, true},
		{EnvProduction, true},
		{Environment("invalid"), false},
		{Environment(""), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, tt.env.IsValid(), "environment %q", tt.env)
	}
}

// TestLogLevel tests log level validation
func TestLogLevel(t *testing.T) {
	tests := []struct {
		level LogLevel
		valid bool
	}{
		{LogLevelTrace, true},
		{LogLevelDebug, true},
		{LogLevelInfo, true},
		{LogLevelWarn, true},
		{LogLevelError, true},
		{LogLevelFatal, true},
		{LogLevel("invalid"), false},
		{LogLevel(""), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, tt.level.IsValid(), "level %q", tt.level)
	}
}

// TestLoadYAMLFile tests that a partial YAML file is merged over defaults
func TestLoadYAMLFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "iot.yaml", `
app:
  name: greenhouse
  environment: production
  debug: false
log:
  level: debug
device:
  query_timeout: 1500ms
  query_mailbox_size: 64
`)

	config, err := newTestLoader(nil).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "greenhouse", config.App.Name)
	assert.Equal(t, EnvProduction, config.App.Environment)
	assert.False(t, config.App.Debug)
	assert.Equal(t, LogLevelDebug, config.Log.Level)
	assert.Equal(t, 1500*time.Millisecond, config.Device.QueryTimeout)
	assert.Equal(t, 64, config.Device.QueryMailboxSize)

	// Untouched sections keep their defaults.
	assert.Equal(t, "text", config.Log.Format)
	assert.Equal(t, 1000, config.Actor.DefaultMailboxSize)
	assert.Equal(t, 30*time.Second, config.Actor.Timeouts.Call)
}

// TestLoadJSONReader tests loading JSON from a reader
func TestLoadJSONReader(t *testing.T) {
	config, err := newTestLoader(nil).LoadFromReader(strings.NewReader(`{
		"app": {"name": "json-app", "environment": "testing"},
		"device": {"query_timeout": 2000000000}
	}`), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "json-app", config.App.Name)
	assert.Equal(t, EnvTesting, config.App.Environment)
	assert.Equal(t, 2*time.Second, config.Device.QueryTimeout)
}

// TestLoadErrors tests loader failure modes
func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	loader := newTestLoader(nil)

	_, err := loader.Load(writeFile(t, dir, "iot.toml", "x = 1"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = loader.Load(writeFile(t, dir, "broken.yaml", "app: [unclosed"))
	assert.ErrorIs(t, err, ErrConfigParseError)

	_, err = loader.Load(writeFile(t, dir, "invalid.yaml", "log:\n  level: loud\n"))
	assert.ErrorIs(t, err, ErrInvalidLogLevel)

	_, err = loader.Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = loader.LoadFromReader(strings.NewReader("{}"), ConfigFormat("ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

// TestEnvironmentOverrides tests IOT_* overrides
func TestEnvironmentOverrides(t *testing.T) {
	loader := newTestLoader(map[string]string{
		"IOT_APP_NAME":                   "from-env",
		"IOT_LOG_LEVEL":                  "WARN",
		"IOT_DEVICE_QUERY_TIMEOUT":       "750ms",
		"IOT_ACTOR_DEFAULT_MAILBOX_SIZE": "64",
		"IOT_MONITOR_ENABLED":            "false",
		"IOT_MONITOR_TRACES":             "true",
		"IOT_MONITOR_TRACE_SAMPLE_RATE":  "0.25",
	})

	config, err := loader.Load("")
	require.NoError(t, err)

	assert.Equal(t, "from-env", config.App.Name)
	assert.Equal(t, LogLevelWarn, config.Log.Level)
	assert.Equal(t, 750*time.Millisecond, config.Device.QueryTimeout)
	assert.Equal(t, 64, config.Actor.DefaultMailboxSize)
	assert.False(t, config.Monitor.Enabled)
	assert.True(t, config.Monitor.Traces)
	assert.Equal(t, 0.25, config.Monitor.TraceSampleRate)

	// The loader's defaults are not modified by overrides.
	assert.Equal(t, "iot-hub", loader.defaultConfig.App.Name)
}

// TestEnvironmentOverrideErrors tests malformed overrides
func TestEnvironmentOverrideErrors(t *testing.T) {
	for name, value := range map[string]string{
		"IOT_DEVICE_QUERY_TIMEOUT":       "soon",
		"IOT_ACTOR_DEFAULT_MAILBOX_SIZE": "many",
		"IOT_MONITOR_TRACE_SAMPLE_RATE":  "half",
	} {
		_, err := newTestLoader(map[string]string{name: value}).Load("")
		assert.ErrorIs(t, err, ErrEnvironmentVarError, name)
	}
}

// TestCustomEnvPrefix tests SetEnvPrefix
func TestCustomEnvPrefix(t *testing.T) {
	loader := newTestLoader(map[string]string{
		"HUB_APP_NAME": "custom",
		"IOT_APP_NAME": "ignored",
	}).SetEnvPrefix("HUB")

	config, err := loader.Load("")
	require.NoError(t, err)
	assert.Equal(t, "custom", config.App.Name)
}

// TestAutoLoad tests configuration discovery
func TestAutoLoad(t *testing.T) {
	dir := t.TempDir()

	loader := newTestLoader(nil).SetSearchPaths([]string{dir})
	config, err := loader.AutoLoad()
	require.NoError(t, err)
	assert.Equal(t, "iot-hub", config.App.Name)

	writeFile(t, dir, "iot.yml", "app:\n  name: discovered\n")
	config, err = loader.AutoLoad()
	require.NoError(t, err)
	assert.Equal(t, "discovered", config.App.Name)
}

// TestWatcherReload tests reloading and change callbacks
func TestWatcherReload(t *testing.T) {
	path := writeFile(t, t.TempDir(), "iot.yaml", "device:\n  query_timeout: 1s\n")

	watcher, err := NewWatcher(path, newTestLoader(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, watcher.GetConfig().Device.QueryTimeout)

	changes := make(chan [2]time.Duration, 1)
	watcher.OnConfigChange(func(oldConfig, newConfig *Config) {
		changes <- [2]time.Duration{oldConfig.Device.QueryTimeout, newConfig.Device.QueryTimeout}
	})

	writeFile(t, filepath.Dir(path), "iot.yaml", "device:\n  query_timeout: 2s\n")
	require.NoError(t, watcher.Reload())

	select {
	case change := <-changes:
		assert.Equal(t, [2]time.Duration{time.Second, 2 * time.Second}, change)
	case <-time.After(time.Second):
		t.Fatal("callback not called")
	}
	assert.Equal(t, 2*time.Second, watcher.GetConfig().Device.QueryTimeout)

	// An invalid file keeps the last good configuration.
	writeFile(t, filepath.Dir(path), "iot.yaml", "device:\n  query_timeout: 0s\n")
	assert.ErrorIs(t, watcher.Reload(), ErrInvalidQueryTimeout)
	assert.Equal(t, 2*time.Second, watcher.GetConfig().Device.QueryTimeout)

	require.NoError(t, watcher.Stop())
}

// TestWatcherFileEvents tests hot reload driven by fsnotify
func TestWatcherFileEvents(t *testing.T) {
	path := writeFile(t, t.TempDir(), "iot.yaml", "log:\n  level: info\n")

	watcher, err := NewWatcher(path, newTestLoader(nil), nil)
	require.NoError(t, err)
	watcher.SetDebounce(20 * time.Millisecond)

	var mu sync.Mutex
	var levels []LogLevel
	watcher.OnConfigChange(func(_, newConfig *Config) {
		mu.Lock()
		defer mu.Unlock()
		levels = append(levels, newConfig.Log.Level)
	})

	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	writeFile(t, filepath.Dir(path), "iot.yaml", "log:\n  level: debug\n")

	assert.Eventually(t, func() bool {
		return watcher.GetConfig().Log.Level == LogLevelDebug
	}, 5*time.Second, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(levels) > 0 && levels[len(levels)-1] == LogLevelDebug
	}, 5*time.Second, 20*time.Millisecond)
}

// TestNewWatcherErrors tests watcher construction failures
func TestNewWatcherErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewWatcher(filepath.Join(dir, "iot.txt"), newTestLoader(nil), nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = NewWatcher(filepath.Join(dir, "missing.yaml"), newTestLoader(nil), nil)
	assert.Error(t, err)
}
