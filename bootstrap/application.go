package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/najoast/sngo-iot/config"
	"github.com/najoast/sngo-iot/core"
	"github.com/najoast/sngo-iot/device"
	"github.com/najoast/sngo-iot/iot"
	"github.com/najoast/sngo-iot/logger"
)

// Core service names, in start order.
const (
	ServiceTelemetry     = "telemetry"
	ServiceActorSystem   = "actor-system"
	ServiceDeviceHub     = "device-hub"
	ServiceConfigWatcher = "config-watcher"
)

var _ Application = (*DefaultApplication)(nil)

// DefaultApplication runs the hub services under a lifecycle manager.
type DefaultApplication struct {
	cfg        *config.Config
	configFile string
	loader     *config.Loader
	readers    []sdkmetric.Reader
	processors []sdktrace.SpanProcessor
	log        *logger.Logger

	container        *DefaultContainer
	lifecycleManager *DefaultLifecycleManager

	mutex      sync.RWMutex
	configured bool
	running    bool

	shutdownChan chan os.Signal
}

// NewApplication creates an unconfigured application. A nil log discards
// output.
func NewApplication(log *logger.Logger) *DefaultApplication {
	if log == nil {
		log = logger.Nop()
	}
	container := NewContainer()
	return &DefaultApplication{
		loader:           config.NewLoader(),
		log:              log,
		container:        container,
		lifecycleManager: NewLifecycleManager(container, log),
		shutdownChan:     make(chan os.Signal, 1),
	}
}

// Configure validates cfg and registers the core services built from it.
// It may be called once, before Run.
func (app *DefaultApplication) Configure(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return &ApplicationError{Operation: "configure", Err: err}
	}

	app.mutex.Lock()
	defer app.mutex.Unlock()

	if app.running {
		return fmt.Errorf("cannot configure application while running")
	}
	if app.configured {
		return fmt.Errorf("application is already configured")
	}

	app.cfg = cfg
	if err := app.container.RegisterInstance(KeyConfig, cfg); err != nil {
		return err
	}
	if err := app.container.RegisterInstance(KeyLogger, app.log); err != nil {
		return err
	}
	if err := app.registerCoreServices(); err != nil {
		return err
	}
	app.configured = true
	return nil
}

func (app *DefaultApplication) registerCoreServices() error {
	lm := app.lifecycleManager
	if t := app.cfg.Actor.Timeouts; t.Shutdown > 0 {
		lm.SetTimeout(t.Shutdown)
	}

	if err := lm.Register(ServiceTelemetry, NewTelemetryService(app.cfg, app.log, app.readers, app.processors)); err != nil {
		return err
	}
	if err := lm.Register(ServiceActorSystem, &ActorSystemService{app: app}); err != nil {
		return err
	}
	if err := lm.Register(ServiceDeviceHub, &HubService{app: app}, ServiceTelemetry, ServiceActorSystem); err != nil {
		return err
	}
	if app.configFile != "" {
		if err := lm.Register(ServiceConfigWatcher, &ConfigWatcherService{app: app}, ServiceDeviceHub); err != nil {
			return err
		}
	}
	return nil
}

// Start starts every service without waiting for a shutdown signal.
func (app *DefaultApplication) Start(ctx context.Context) error {
	app.mutex.Lock()
	if !app.configured {
		app.mutex.Unlock()
		return fmt.Errorf("application is not configured")
	}
	if app.running {
		app.mutex.Unlock()
		return fmt.Errorf("application is already running")
	}
	app.running = true
	app.mutex.Unlock()

	if err := app.lifecycleManager.Start(ctx); err != nil {
		app.mutex.Lock()
		app.running = false
		app.mutex.Unlock()
		return fmt.Errorf("failed to start services: %w", err)
	}

	app.log.Info("application started",
		"name", app.cfg.App.Name, "version", app.cfg.App.Version, "environment", app.cfg.App.Environment)
	return nil
}

// Run starts the application and blocks until ctx ends or SIGINT/SIGTERM
// arrives, then shuts down.
func (app *DefaultApplication) Run(ctx context.Context) error {
	signal.Notify(app.shutdownChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(app.shutdownChan)

	if err := app.Start(ctx); err != nil {
		return err
	}

	select {
	case sig := <-app.shutdownChan:
		app.log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		app.log.Info("context cancelled, shutting down")
	}

	return app.Shutdown(context.Background())
}

// Shutdown stops every service in reverse start order, bounded by the
// configured shutdown timeout.
func (app *DefaultApplication) Shutdown(ctx context.Context) error {
	app.mutex.Lock()
	if !app.running {
		app.mutex.Unlock()
		return nil
	}
	app.running = false
	app.mutex.Unlock()

	shutdownCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout := app.cfg.Actor.Timeouts.Shutdown; timeout > 0 {
		shutdownCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	if err := app.lifecycleManager.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop services: %w", err)
	}
	app.log.Info("application stopped")
	app.log.Sync()
	return nil
}

// Container returns the dependency injection container
func (app *DefaultApplication) Container() Container {
	return app.container
}

// LifecycleManager returns the lifecycle manager
func (app *DefaultApplication) LifecycleManager() LifecycleManager {
	return app.lifecycleManager
}

// Hub returns the running device hub.
func (app *DefaultApplication) Hub() (*iot.Hub, error) {
	return Resolve[*iot.Hub](app.container, KeyHub)
}

// Config returns the configuration the application was built with.
func (app *DefaultApplication) Config() *config.Config {
	app.mutex.RLock()
	defer app.mutex.RUnlock()
	return app.cfg
}

// ActorSystemService owns the actor system.
type ActorSystemService struct {
	app    *DefaultApplication
	system core.ActorSystem
}

func (s *ActorSystemService) Name() string {
	return ServiceActorSystem
}

func (s *ActorSystemService) Start(ctx context.Context) error {
	cfg := s.app.cfg.Actor
	s.system = core.NewActorSystem(
		core.WithLogger(s.app.log),
		core.WithDefaultActorOptions(core.ActorOptions{
			MailboxSize:    cfg.DefaultMailboxSize,
			ProcessTimeout: cfg.Timeouts.Process,
		}),
		core.WithCallTimeout(cfg.Timeouts.Call),
	)
	return s.app.container.RegisterInstance(KeyActorSystem, s.system)
}

func (s *ActorSystemService) Stop(ctx context.Context) error {
	if s.system == nil {
		return nil
	}
	return s.system.Shutdown(ctx)
}

func (s *ActorSystemService) Health(ctx context.Context) (HealthStatus, error) {
	if s.system == nil {
		return HealthStatus{
			State:     HealthUnhealthy,
			Message:   "actor system not initialized",
			LastCheck: time.Now(),
		}, nil
	}
	return HealthStatus{
		State:     HealthHealthy,
		LastCheck: time.Now(),
		Data: map[string]interface{}{
			"actors":   len(s.system.Stats()),
			"services": len(s.system.ListServices()),
		},
	}, nil
}

// HubService starts the device manager and exposes it as an iot.Hub.
type HubService struct {
	app *DefaultApplication
	hub *iot.Hub
}

func (s *HubService) Name() string {
	return ServiceDeviceHub
}

func (s *HubService) Start(ctx context.Context) error {
	system, err := Resolve[core.ActorSystem](s.app.container, KeyActorSystem)
	if err != nil {
		return err
	}

	telemetry, ok := s.app.lifecycleManager.GetService(ServiceTelemetry)
	if !ok {
		return fmt.Errorf("service %s is not registered", ServiceTelemetry)
	}
	ts := telemetry.(*TelemetryService)
	metrics, err := device.NewMetrics(ts.MeterProvider())
	if err != nil {
		return err
	}
	var hubOpts []iot.Option
	if tracer := ts.Tracer(); tracer != nil {
		hubOpts = append(hubOpts, iot.WithTracer(tracer))
	}

	cfg := s.app.cfg.Device
	hub, err := iot.New(system, device.Options{
		QueryTimeout:      cfg.QueryTimeout,
		GroupMailboxSize:  cfg.GroupMailboxSize,
		DeviceMailboxSize: cfg.DeviceMailboxSize,
		QueryMailboxSize:  cfg.QueryMailboxSize,
		Logger:            s.app.log,
		Metrics:           metrics,
	}, hubOpts...)
	if err != nil {
		return err
	}
	s.hub = hub
	return s.app.container.RegisterInstance(KeyHub, hub)
}

func (s *HubService) Stop(ctx context.Context) error {
	if s.hub == nil {
		return nil
	}
	err := s.hub.Close()
	if errors.Is(err, core.ErrActorNotFound) {
		return nil
	}
	return err
}

func (s *HubService) Health(ctx context.Context) (HealthStatus, error) {
	if s.hub == nil {
		return HealthStatus{State: HealthStopped, LastCheck: time.Now()}, nil
	}
	groups, err := s.hub.Groups(ctx)
	if err != nil {
		return HealthStatus{}, err
	}
	return HealthStatus{
		State:     HealthHealthy,
		LastCheck: time.Now(),
		Data:      map[string]interface{}{"groups": len(groups)},
	}, nil
}

// ConfigWatcherService reloads the configuration file and applies the
// settings that can change at runtime: the log level and the default query
// timeout.
type ConfigWatcherService struct {
	app      *DefaultApplication
	watcher  *config.Watcher
	debounce time.Duration
}

func (s *ConfigWatcherService) Name() string {
	return ServiceConfigWatcher
}

func (s *ConfigWatcherService) Start(ctx context.Context) error {
	watcher, err := config.NewWatcher(s.app.configFile, s.app.loader, s.app.log)
	if err != nil {
		return err
	}
	if s.debounce > 0 {
		watcher.SetDebounce(s.debounce)
	}
	watcher.OnConfigChange(s.apply)
	if err := watcher.Start(); err != nil {
		_ = watcher.Stop()
		return err
	}
	s.watcher = watcher
	return nil
}

func (s *ConfigWatcherService) apply(oldConfig, newConfig *config.Config) {
	log := s.app.log
	if oldConfig.Log.Level != newConfig.Log.Level {
		if log.SetLevel(string(newConfig.Log.Level)) {
			log.Info("log level changed", "level", newConfig.Log.Level)
		}
	}

	if oldConfig.Device.QueryTimeout != newConfig.Device.QueryTimeout {
		hub, err := s.app.Hub()
		if err != nil {
			log.Warn("cannot apply query timeout", "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), newConfig.Actor.Timeouts.Call)
		defer cancel()
		if err := hub.SetQueryTimeout(ctx, newConfig.Device.QueryTimeout); err != nil {
			log.Warn("cannot apply query timeout", "error", err)
		}
	}
}

func (s *ConfigWatcherService) Stop(ctx context.Context) error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Stop()
	s.watcher = nil
	return err
}

func (s *ConfigWatcherService) Health(ctx context.Context) (HealthStatus, error) {
	if s.watcher == nil {
		return HealthStatus{State: HealthStopped, LastCheck: time.Now()}, nil
	}
	return HealthStatus{
		State:     HealthHealthy,
		LastCheck: time.Now(),
		Data:      map[string]interface{}{"file": s.app.configFile},
	}, nil
}

// ApplicationBuilder helps build and configure applications
type ApplicationBuilder struct {
	log        *logger.Logger
	cfg        *config.Config
	configFile string
	debounce   time.Duration
	readers    []sdkmetric.Reader
	processors []sdktrace.SpanProcessor
	services   []builderService
	err        error
}

type builderService struct {
	name    string
	service Service
	deps    []string
}

// NewApplicationBuilder creates a new application builder
func NewApplicationBuilder() *ApplicationBuilder {
	return &ApplicationBuilder{}
}

// WithLogger sets the logger shared by every service.
func (b *ApplicationBuilder) WithLogger(log *logger.Logger) *ApplicationBuilder {
	b.log = log
	return b
}

// WithConfig sets the configuration
func (b *ApplicationBuilder) WithConfig(cfg *config.Config) *ApplicationBuilder {
	b.cfg = cfg
	return b
}

// WithConfigFile loads the configuration from filename and watches it for
// changes while the application runs.
func (b *ApplicationBuilder) WithConfigFile(filename string) *ApplicationBuilder {
	cfg, err := config.NewLoader().LoadFromFile(filename)
	if err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}
	b.cfg = cfg
	b.configFile = filename
	return b
}

// WithReloadDebounce overrides the config watcher debounce.
func (b *ApplicationBuilder) WithReloadDebounce(d time.Duration) *ApplicationBuilder {
	b.debounce = d
	return b
}

// WithMetricReader attaches an extra reader to the meter provider.
func (b *ApplicationBuilder) WithMetricReader(reader sdkmetric.Reader) *ApplicationBuilder {
	b.readers = append(b.readers, reader)
	return b
}

// WithSpanProcessor attaches an extra span processor to the tracer
// provider. It has no effect unless monitor.traces is on.
func (b *ApplicationBuilder) WithSpanProcessor(processor sdktrace.SpanProcessor) *ApplicationBuilder {
	b.processors = append(b.processors, processor)
	return b
}

// WithService registers an extra service started after its deps.
func (b *ApplicationBuilder) WithService(name string, service Service, deps ...string) *ApplicationBuilder {
	b.services = append(b.services, builderService{name: name, service: service, deps: deps})
	return b
}

// Build builds the configured application
func (b *ApplicationBuilder) Build() (*DefaultApplication, error) {
	if b.err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", b.err)
	}

	cfg := b.cfg
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	log := b.log
	if log == nil {
		var err error
		if log, err = logger.New(string(cfg.GetLogLevel()), cfg.Log.Format); err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	app := NewApplication(log)
	app.configFile = b.configFile
	app.readers = b.readers
	app.processors = b.processors
	if err := app.Configure(cfg); err != nil {
		return nil, fmt.Errorf("failed to configure application: %w", err)
	}

	if watcher, ok := app.lifecycleManager.GetService(ServiceConfigWatcher); ok && b.debounce > 0 {
		watcher.(*ConfigWatcherService).debounce = b.debounce
	}

	for _, s := range b.services {
		if err := app.lifecycleManager.Register(s.name, s.service, s.deps...); err != nil {
			return nil, err
		}
	}
	return app, nil
}
