package bootstrap

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Well-known container keys populated by the application.
const (
	KeyConfig      = "config"
	KeyLogger      = "logger"
	KeyMeter       = "meter-provider"
	KeyActorSystem = "actor-system"
	KeyHub         = "device-hub"
)

// DefaultContainer is a name-keyed container of lazily built singletons.
type DefaultContainer struct {
	services  map[string]ServiceFactory
	instances map[string]interface{}
	building  map[string]bool
	mutex     sync.Mutex
}

// NewContainer creates an empty container.
func NewContainer() *DefaultContainer {
	return &DefaultContainer{
		services:  make(map[string]ServiceFactory),
		instances: make(map[string]interface{}),
		building:  make(map[string]bool),
	}
}

// Register registers a service factory with the container
func (c *DefaultContainer) Register(name string, factory ServiceFactory) error {
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("service factory cannot be nil")
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.services[name]; exists {
		return fmt.Errorf("service %s is already registered", name)
	}
	c.services[name] = factory
	return nil
}

// RegisterInstance registers a service instance with the container
func (c *DefaultContainer) RegisterInstance(name string, instance interface{}) error {
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if instance == nil {
		return fmt.Errorf("service instance cannot be nil")
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.instances[name]; exists {
		return fmt.Errorf("service instance %s is already registered", name)
	}
	c.instances[name] = instance
	return nil
}

// Resolve returns the instance registered under name, building it on first
// use. Factories run without the lock held so they may resolve their own
// dependencies; a factory that resolves itself gets an error.
func (c *DefaultContainer) Resolve(name string) (interface{}, error) {
	c.mutex.Lock()
	if instance, exists := c.instances[name]; exists {
		c.mutex.Unlock()
		return instance, nil
	}
	factory, exists := c.services[name]
	if !exists {
		c.mutex.Unlock()
		return nil, fmt.Errorf("service %s is not registered", name)
	}
	if c.building[name] {
		c.mutex.Unlock()
		return nil, fmt.Errorf("circular dependency while creating service %s", name)
	}
	c.building[name] = true
	c.mutex.Unlock()

	instance, err := factory(c)

	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.building, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create service %s: %w", name, err)
	}
	if existing, exists := c.instances[name]; exists {
		return existing, nil
	}
	c.instances[name] = instance
	return instance, nil
}

// ResolveAs resolves a service and assigns it to the value target points at.
func (c *DefaultContainer) ResolveAs(name string, target interface{}) error {
	instance, err := c.Resolve(name)
	if err != nil {
		return err
	}

	targetValue := reflect.ValueOf(target)
	if targetValue.Kind() != reflect.Ptr || targetValue.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer")
	}

	instanceValue := reflect.ValueOf(instance)
	targetType := targetValue.Elem().Type()
	if !instanceValue.Type().AssignableTo(targetType) {
		return fmt.Errorf("service %s of type %s is not assignable to %s",
			name, instanceValue.Type(), targetType)
	}

	targetValue.Elem().Set(instanceValue)
	return nil
}

// Has checks if a service is registered
func (c *DefaultContainer) Has(name string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, hasFactory := c.services[name]
	_, hasInstance := c.instances[name]
	return hasFactory || hasInstance
}

// Names returns all registered service names, sorted.
func (c *DefaultContainer) Names() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	nameSet := make(map[string]struct{}, len(c.services)+len(c.instances))
	for name := range c.services {
		nameSet[name] = struct{}{}
	}
	for name := range c.instances {
		nameSet[name] = struct{}{}
	}

	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve fetches name from c and asserts it to T.
func Resolve[T any](c Container, name string) (T, error) {
	var zero T
	instance, err := c.Resolve(name)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("service %s has type %T, want %T", name, instance, zero)
	}
	return typed, nil
}
