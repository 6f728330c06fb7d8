package plugin

import (
	"fmt"
	"reflect"
	"sync"
)

// Named is implemented by anything that can live in a Registry.
type Named interface {
	Name() string
}

// Registry holds named plugins in registration order.
type Registry[P Named] struct {
	mu sync.RWMutex

	// Plugins by name
	plugins map[string]P

	// Registration order (for deterministic iteration)
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry[P Named]() *Registry[P] {
	return &Registry[P]{
		plugins: make(map[string]P),
		order:   make([]string, 0),
	}
}

// Add registers p after all previously registered plugins.
func (r *Registry[P]) Add(p P) error {
	if isNil(p) {
		return ErrNilPlugin
	}
	name := p.Name()
	if name == "" {
		return ErrNameRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("plugin %q: %w", name, ErrDuplicate)
	}
	r.plugins[name] = p
	r.order = append(r.order, name)
	return nil
}

// Get returns the plugin registered under name.
func (r *Registry[P]) Get(name string) (P, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Has returns true if a plugin is registered under name.
func (r *Registry[P]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.plugins[name]
	return ok
}

// All returns the plugins in registration order.
func (r *Registry[P]) All() []P {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]P, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.plugins[name])
	}
	return result
}

// Names returns the registered names in registration order.
func (r *Registry[P]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Each calls fn for every plugin in registration order.
// fn runs on a snapshot of the registry, so it may register more plugins;
// those are not visited.
func (r *Registry[P]) Each(fn func(P)) {
	for _, p := range r.All() {
		fn(p)
	}
}

// Reverse calls fn for every plugin in reverse registration order.
func (r *Registry[P]) Reverse(fn func(P)) {
	all := r.All()
	for i := len(all) - 1; i >= 0; i-- {
		fn(all[i])
	}
}

// Len returns the number of registered plugins.
func (r *Registry[P]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// isNil reports whether p is a nil interface or a typed nil pointer.
func isNil(p any) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}
