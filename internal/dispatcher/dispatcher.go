package dispatcher

// Dispatcher holds store registrations shared by every context of an
// application and creates per-context instances.
type Dispatcher struct {
	registry *Registry
	config   Config
	metrics  *Metrics
}

// New creates a new dispatcher with the given configuration.
func New(config Config) *Dispatcher {
	d := &Dispatcher{
		registry: NewRegistry(),
		config:   config,
	}
	if config.EnableMetrics {
		d.metrics = NewMetrics()
	}
	return d
}

// NewWithDefaults creates a new dispatcher with default configuration.
func NewWithDefaults() *Dispatcher {
	return New(DefaultConfig())
}

// RegisterStore registers a store factory under name.
func (d *Dispatcher) RegisterStore(name string, f StoreFactory) error {
	return d.registry.Register(name, f)
}

// Stores returns the registered store names in registration order.
func (d *Dispatcher) Stores() []string {
	return d.registry.List()
}

// HasStore returns true if a store is registered under name.
func (d *Dispatcher) HasStore(name string) bool {
	return d.registry.Has(name)
}

// NewInstance creates the dispatcher instance for one context.
func (d *Dispatcher) NewInstance(env Env) *Instance {
	return &Instance{
		dispatcher: d,
		env:        env,
		stores:     make(map[string]Store),
	}
}

// Registry returns the store registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Metrics returns the metrics collector (may be nil if disabled).
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

// Config returns the dispatcher configuration.
func (d *Dispatcher) Config() Config {
	return d.config
}
