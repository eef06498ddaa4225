// Package config provides configuration watching and hot-reload functionality
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/najoast/sngo-iot/logger"
)

// DefaultDebounce coalesces bursts of writes to the config file.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches configuration files for changes and provides hot-reload functionality
type Watcher struct {
	// Configuration file path
	configFile string

	// Configuration loader
	loader *Loader

	// Current configuration
	config   *Config
	configMu sync.RWMutex

	// File system watcher
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration

	// Event callbacks
	callbacks   []ConfigChangeCallback
	callbacksMu sync.RWMutex

	log *logger.Logger

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc

	// Wait group for goroutines
	wg sync.WaitGroup
}

// ConfigChangeCallback is called when configuration changes
type ConfigChangeCallback func(oldConfig, newConfig *Config)

// NewWatcher creates a new configuration watcher and loads the file once.
func NewWatcher(configFile string, loader *Loader, log *logger.Logger) (*Watcher, error) {
	if _, err := formatOf(configFile); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	absPath, err := filepath.Abs(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	// Load initial configuration
	config, err := loader.LoadFromFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	// Create file system watcher
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigWatchError, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		configFile: absPath,
		loader:     loader,
		config:     config,
		fsWatcher:  fsWatcher,
		debounce:   DefaultDebounce,
		log:        log.With("component", "config-watcher", "file", absPath),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// SetDebounce changes how long the watcher waits after the last write
// before reloading. It must be called before Start.
func (w *Watcher) SetDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Start starts watching the configuration file
func (w *Watcher) Start() error {
	// Watch the directory so editors that replace the file are seen too.
	if err := w.fsWatcher.Add(filepath.Dir(w.configFile)); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigWatchError, err)
	}

	w.wg.Add(1)
	go w.watchLoop()

	w.log.Info("watching configuration")
	return nil
}

// Stop stops watching the configuration file
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

// GetConfig returns the current configuration
func (w *Watcher) GetConfig() *Config {
	w.configMu.RLock()
	defer w.configMu.RUnlock()
	return w.config
}

// OnConfigChange registers a callback for configuration changes
func (w *Watcher) OnConfigChange(callback ConfigChangeCallback) {
	w.callbacksMu.Lock()
	defer w.callbacksMu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Reload manually reloads the configuration
func (w *Watcher) Reload() error {
	return w.reloadConfig()
}

// watchLoop watches for file system events
func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != w.configFile {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(w.debounce, func() {
					if err := w.reloadConfig(); err != nil {
						w.log.Error("failed to reload config", "error", err)
					}
				})
			} else if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.log.Warn("config file was removed or renamed; keeping current configuration")
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Error("config watcher error", "error", err)
		}
	}
}

// reloadConfig reloads the configuration from file. An invalid file keeps
// the current configuration.
func (w *Watcher) reloadConfig() error {
	newConfig, err := w.loader.LoadFromFile(w.configFile)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	w.configMu.Lock()
	oldConfig := w.config
	w.config = newConfig
	w.configMu.Unlock()

	w.notifyCallbacks(oldConfig, newConfig)

	w.log.Info("configuration reloaded")
	return nil
}

// notifyCallbacks notifies all registered callbacks of configuration changes
func (w *Watcher) notifyCallbacks(oldConfig, newConfig *Config) {
	w.callbacksMu.RLock()
	callbacks := make([]ConfigChangeCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.callbacksMu.RUnlock()

	for _, callback := range callbacks {
		// Call callback in a separate goroutine to avoid blocking
		go func(cb ConfigChangeCallback) {
			defer func() {
				if r := recover(); r != nil {
					w.log.Error("config change callback panicked", "panic", r)
				}
			}()
			cb(oldConfig, newConfig)
		}(callback)
	}
}
