package fluxctx

import "sync"

// Capability names contributed by the views themselves.
const (
	CapExecuteAction = "executeAction"
	CapDispatch      = "dispatch"
	CapGetStore      = "getStore"
	CapCreateElement = "createElement"
)

// Getter is implemented by every view.
type Getter interface {
	Get(name string) (any, bool)
}

// Capabilities is an ordered set of named values attached to a view.
// Setting an existing name replaces its value and keeps its position.
type Capabilities struct {
	mu     sync.RWMutex
	values map[string]any
	order  []string
}

func newCapabilities() *Capabilities {
	return &Capabilities{values: make(map[string]any)}
}

// Set adds or replaces the capability name.
func (c *Capabilities) Set(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.values[name]; !exists {
		c.order = append(c.order, name)
	}
	c.values[name] = value
}

// Get returns the capability stored under name.
func (c *Capabilities) Get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[name]
	return v, ok
}

// Has returns true if a capability is stored under name.
func (c *Capabilities) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Names returns capability names in the order they were first set.
func (c *Capabilities) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Delete removes the capability name.
func (c *Capabilities) Delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.values[name]; !exists {
		return
	}
	delete(c.values, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of capabilities.
func (c *Capabilities) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Capability returns the capability name from v converted to T.
// It returns false if the capability is missing or has another type.
func Capability[T any](v Getter, name string) (T, bool) {
	var zero T
	raw, ok := v.Get(name)
	if !ok {
		return zero, false
	}
	t, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
