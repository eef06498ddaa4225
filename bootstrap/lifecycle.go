package bootstrap

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/najoast/sngo-iot/logger"
)

const (
	defaultServiceTimeout = 30 * time.Second
	healthCheckTimeout    = 5 * time.Second
	eventBufferSize       = 100
)

// DefaultLifecycleManager starts services in dependency order and stops them
// in reverse.
type DefaultLifecycleManager struct {
	services     map[string]Service
	dependencies map[string][]string

	// startOrder lists the services that started successfully, in order
	startOrder []string

	container Container
	log       *logger.Logger
	mutex     sync.RWMutex
	started   bool
	stopping  bool

	eventChan chan LifecycleEvent
	listeners []func(LifecycleEvent)
	timeout   time.Duration
}

// NewLifecycleManager creates a new lifecycle manager. A nil log discards
// output.
func NewLifecycleManager(container Container, log *logger.Logger) *DefaultLifecycleManager {
	if log == nil {
		log = logger.Nop()
	}
	return &DefaultLifecycleManager{
		services:     make(map[string]Service),
		dependencies: make(map[string][]string),
		container:    container,
		log:          log.With("component", "lifecycle"),
		eventChan:    make(chan LifecycleEvent, eventBufferSize),
		timeout:      defaultServiceTimeout,
	}
}

// Register registers a service with the lifecycle manager
func (lm *DefaultLifecycleManager) Register(name string, service Service, deps ...string) error {
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if service == nil {
		return fmt.Errorf("service cannot be nil")
	}

	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if lm.started {
		return fmt.Errorf("cannot register service %s: lifecycle manager already started", name)
	}
	if _, exists := lm.services[name]; exists {
		return fmt.Errorf("service %s is already registered", name)
	}

	lm.services[name] = service
	lm.dependencies[name] = deps

	lm.broadcastEvent(LifecycleEvent{
		Type:    EventServiceRegistered,
		Service: name,
		Data:    map[string]interface{}{"dependencies": deps},
	})
	return nil
}

// Start starts all services in dependency order. When a service fails to
// start, the ones already running are stopped again before returning.
func (lm *DefaultLifecycleManager) Start(ctx context.Context) error {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if lm.started {
		return fmt.Errorf("lifecycle manager already started")
	}

	startOrder, err := lm.calculateStartOrder()
	if err != nil {
		return fmt.Errorf("failed to calculate start order: %w", err)
	}

	lm.log.Info("starting services", "order", startOrder)
	lm.broadcastEvent(LifecycleEvent{
		Type: EventLifecycleStarting,
		Data: map[string]interface{}{"order": startOrder},
	})

	for _, serviceName := range startOrder {
		service := lm.services[serviceName]
		lm.broadcastEvent(LifecycleEvent{Type: EventServiceStarting, Service: serviceName})

		startCtx, cancel := context.WithTimeout(ctx, lm.timeout)
		err := service.Start(startCtx)
		cancel()

		if err != nil {
			lm.log.Error("service failed to start", "service", serviceName, "error", err)
			lm.broadcastEvent(LifecycleEvent{Type: EventServiceStartFailed, Service: serviceName, Error: err})
			lm.stopStarted(context.WithoutCancel(ctx))
			return &ApplicationError{Operation: "start", Service: serviceName, Err: err}
		}

		lm.startOrder = append(lm.startOrder, serviceName)
		lm.log.Debug("service started", "service", serviceName)
		lm.broadcastEvent(LifecycleEvent{Type: EventServiceStarted, Service: serviceName})
	}

	lm.started = true
	lm.broadcastEvent(LifecycleEvent{Type: EventLifecycleStarted})
	return nil
}

// Stop stops all services in reverse start order
func (lm *DefaultLifecycleManager) Stop(ctx context.Context) error {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if !lm.started {
		return nil
	}
	if lm.stopping {
		return fmt.Errorf("lifecycle manager already stopping")
	}

	lm.stopping = true
	lm.log.Info("stopping services")
	lm.broadcastEvent(LifecycleEvent{Type: EventLifecycleStopping})

	lastError := lm.stopStarted(ctx)

	lm.started = false
	lm.stopping = false
	lm.broadcastEvent(LifecycleEvent{Type: EventLifecycleStopped})
	return lastError
}

// stopStarted stops everything in startOrder, newest first, and clears it.
// Callers hold lm.mutex.
func (lm *DefaultLifecycleManager) stopStarted(ctx context.Context) error {
	var lastError error
	for i := len(lm.startOrder) - 1; i >= 0; i-- {
		serviceName := lm.startOrder[i]
		service := lm.services[serviceName]
		lm.broadcastEvent(LifecycleEvent{Type: EventServiceStopping, Service: serviceName})

		stopCtx, cancel := context.WithTimeout(ctx, lm.timeout)
		err := service.Stop(stopCtx)
		cancel()

		if err != nil {
			lastError = &ApplicationError{Operation: "stop", Service: serviceName, Err: err}
			lm.log.Warn("service failed to stop", "service", serviceName, "error", err)
			lm.broadcastEvent(LifecycleEvent{Type: EventServiceStopFailed, Service: serviceName, Error: err})
			continue
		}
		lm.broadcastEvent(LifecycleEvent{Type: EventServiceStopped, Service: serviceName})
	}
	lm.startOrder = nil
	return lastError
}

// Health returns the health status of all services
func (lm *DefaultLifecycleManager) Health(ctx context.Context) (map[string]HealthStatus, error) {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	health := make(map[string]HealthStatus, len(lm.services))
	for name, service := range lm.services {
		healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		status, err := service.Health(healthCtx)
		cancel()

		if err != nil {
			health[name] = HealthStatus{
				State:     HealthUnhealthy,
				Message:   err.Error(),
				LastCheck: time.Now(),
			}
			continue
		}
		health[name] = status
	}
	return health, nil
}

// Services returns all registered service names
func (lm *DefaultLifecycleManager) Services() []string {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	names := make([]string, 0, len(lm.services))
	for name := range lm.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Events returns a channel for lifecycle events. Events are dropped while
// the channel is full.
func (lm *DefaultLifecycleManager) Events() <-chan LifecycleEvent {
	return lm.eventChan
}

// AddListener adds a lifecycle event listener
func (lm *DefaultLifecycleManager) AddListener(listener func(LifecycleEvent)) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	lm.listeners = append(lm.listeners, listener)
}

// SetTimeout sets the timeout for each service Start and Stop.
func (lm *DefaultLifecycleManager) SetTimeout(timeout time.Duration) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	lm.timeout = timeout
}

// IsStarted returns true if the lifecycle manager has been started
func (lm *DefaultLifecycleManager) IsStarted() bool {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	return lm.started
}

// GetService returns a registered service by name
func (lm *DefaultLifecycleManager) GetService(name string) (Service, bool) {
	lm.mutex.RLock()
	defer lm.mutex.RUnlock()

	service, exists := lm.services[name]
	return service, exists
}

// calculateStartOrder is Kahn's topological sort over the dependency graph.
// Ties are broken by name so the order is stable.
func (lm *DefaultLifecycleManager) calculateStartOrder() ([]string, error) {
	inDegree := make(map[string]int, len(lm.services))
	graph := make(map[string][]string, len(lm.services))

	for service := range lm.services {
		inDegree[service] = 0
	}
	for service, deps := range lm.dependencies {
		for _, dep := range deps {
			if _, exists := lm.services[dep]; !exists {
				return nil, fmt.Errorf("dependency %s of service %s is not registered", dep, service)
			}
			graph[dep] = append(graph[dep], service)
			inDegree[service]++
		}
	}

	var queue []string
	for service, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, service)
		}
	}
	sort.Strings(queue)

	result := make([]string, 0, len(lm.services))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		var ready []string
		for _, dependent := range graph[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
	}

	if len(result) != len(lm.services) {
		return nil, fmt.Errorf("circular dependency detected")
	}
	return result, nil
}

func (lm *DefaultLifecycleManager) broadcastEvent(event LifecycleEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case lm.eventChan <- event:
	default:
	}

	for _, listener := range lm.listeners {
		go func(l func(LifecycleEvent)) {
			defer func() {
				if r := recover(); r != nil {
					lm.log.Error("lifecycle listener panicked", "event", event.Type, "panic", r)
				}
			}()
			l(event)
		}(listener)
	}
}
