package scape

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrScapeExists   = errors.New("scape already registered")
	ErrScapeNotFound = errors.New("scape not found")
)

var registry = struct {
	sync.RWMutex
	factories map[string]Factory
}{factories: make(map[string]Factory)}

func init() {
	initializeBuiltInScapes()
}

func initializeBuiltInScapes() {
	MustRegister(CartPoleFactory{})
	MustRegister(CartCenteringFactory{})
	MustRegister(DoublePoleFactory{})
}

// Register adds a scape factory under its own name.
func Register(factory Factory) error {
	if factory == nil {
		return fmt.Errorf("scape factory must not be nil")
	}
	name := factory.Name()
	if name == "" {
		return fmt.Errorf("scape name must not be empty")
	}
	registry.Lock()
	defer registry.Unlock()
	if _, ok := registry.factories[name]; ok {
		return fmt.Errorf("register scape %s: %w", name, ErrScapeExists)
	}
	registry.factories[name] = factory
	return nil
}

// MustRegister is like Register but panics on error. Intended for init-time
// registration of built-in scapes.
func MustRegister(factory Factory) {
	if err := Register(factory); err != nil {
		panic(err)
	}
}

// GetFactory returns the factory registered under name.
func GetFactory(name string) (Factory, error) {
	registry.RLock()
	defer registry.RUnlock()
	factory, ok := registry.factories[name]
	if !ok {
		return nil, fmt.Errorf("scape %s: %w", name, ErrScapeNotFound)
	}
	return factory, nil
}

// ListScapes returns the registered scape names in sorted order.
func ListScapes() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetRegistryForTests() {
	registry.Lock()
	registry.factories = make(map[string]Factory)
	registry.Unlock()
	initializeBuiltInScapes()
}
