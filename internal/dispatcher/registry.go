package dispatcher

import (
	"fmt"
	"sync"
)

// Registry manages store registration by name, in registration order.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]StoreFactory
	order     []string
}

// NewRegistry creates a new store registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]StoreFactory),
	}
}

// Register adds a store factory under name.
func (r *Registry) Register(name string, f StoreFactory) error {
	if name == "" || f == nil {
		return ErrInvalidStore
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("store %q: %w", name, ErrDuplicateStore)
	}
	r.factories[name] = f
	r.order = append(r.order, name)
	return nil
}

// Get returns the factory registered under name, or nil.
func (r *Registry) Get(name string) StoreFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factories[name]
}

// Has returns true if a store is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// List returns all registered store names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count returns the number of registered stores.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
