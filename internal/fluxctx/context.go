package fluxctx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/isoflux/internal/dispatcher"
	"github.com/dshills/isoflux/internal/logging"
	"github.com/dshills/isoflux/internal/plugin"
	"github.com/dshills/isoflux/internal/snapshot"
)

// PropContext is the prop key under which the component view is injected.
const PropContext = "context"

// Props is the prop bag handed to the root component factory.
type Props map[string]any

// ComponentFactory renders the root component from its props.
type ComponentFactory func(props Props) any

// Options configures a new Context.
type Options struct {
	// AppComponent is the root component factory. Optional.
	AppComponent ComponentFactory

	// Dispatcher creates the context's dispatcher. When nil an instance of
	// an empty dispatcher is used.
	Dispatcher DispatcherFactory

	// Logger receives debug output about plugging and rehydration.
	Logger *logging.Logger
}

// Context is the per-request application context.
//
// A Context is meant to be driven by one request or render cycle. It owns
// its dispatcher instance and plugins exclusively; nothing in it may be
// shared with another Context.
type Context struct {
	id           string
	appComponent ComponentFactory
	logger       *logging.Logger
	dispatcher   Dispatcher
	plugins      *plugin.Registry[Plugin]

	actionOnce    sync.Once
	componentOnce sync.Once
	storeOnce     sync.Once

	// mu guards the built views and reserved snapshot keys. Plug and view
	// construction both hold it while reading the plugin list, so every
	// plugin is applied to every view exactly once.
	mu           sync.Mutex
	actionCtx    *ActionContext
	componentCtx *ComponentContext
	storeCtx     *StoreContext
	reserved     map[string]json.RawMessage
}

// New creates a Context with a fresh dispatcher instance and no plugins.
func New(opts Options) *Context {
	c := &Context{
		id:           uuid.NewString(),
		appComponent: opts.AppComponent,
		plugins:      plugin.NewRegistry[Plugin](),
	}
	c.logger = logging.OrNull(opts.Logger).WithComponent("context").WithField("id", c.id)

	factory := opts.Dispatcher
	if factory == nil {
		factory = InstanceFactory(dispatcher.NewWithDefaults())
	}
	c.dispatcher = factory(storeEnv{c: c})
	return c
}

// ID returns the unique identifier of the context.
func (c *Context) ID() string {
	return c.id
}

// Dispatcher returns the context's dispatcher.
func (c *Context) Dispatcher() Dispatcher {
	return c.dispatcher
}

// Props returns a copy of extra with the component view injected under
// PropContext. An existing "context" entry in extra is overridden.
func (c *Context) Props(extra Props) Props {
	props := make(Props, len(extra)+1)
	maps.Copy(props, extra)
	props[PropContext] = c.ComponentContext()
	return props
}

// CreateElement renders the root component with Props(extra).
// Without a root component factory it returns the props themselves.
func (c *Context) CreateElement(extra Props) any {
	props := c.Props(extra)
	if c.appComponent == nil {
		return props
	}
	return c.appComponent(props)
}

// ActionContext returns the action view, building it on first use.
func (c *Context) ActionContext() *ActionContext {
	c.actionOnce.Do(func() {
		c.mu.Lock()
		ac := newActionContext(c)
		c.actionCtx = ac
		plugins := c.plugins.All()
		c.mu.Unlock()

		for _, p := range plugins {
			plugAction(p, ac, c)
		}
	})
	return c.actionCtx
}

// ComponentContext returns the component view, building it on first use.
func (c *Context) ComponentContext() *ComponentContext {
	c.componentOnce.Do(func() {
		c.mu.Lock()
		cc := newComponentContext(c)
		c.componentCtx = cc
		plugins := c.plugins.All()
		c.mu.Unlock()

		for _, p := range plugins {
			plugComponent(p, cc, c)
		}
	})
	return c.componentCtx
}

// StoreContext returns the store view, building it on first use.
func (c *Context) StoreContext() *StoreContext {
	c.storeOnce.Do(func() {
		c.mu.Lock()
		sc := newStoreContext(c)
		c.storeCtx = sc
		plugins := c.plugins.All()
		c.mu.Unlock()

		for _, p := range plugins {
			plugStore(p, sc, c)
		}
	})
	return c.storeCtx
}

func plugAction(p Plugin, ac *ActionContext, c *Context) {
	if h, ok := p.(ActionContextPlugger); ok {
		h.PlugActionContext(ac, c)
	}
}

func plugComponent(p Plugin, cc *ComponentContext, c *Context) {
	if h, ok := p.(ComponentContextPlugger); ok {
		h.PlugComponentContext(cc, c)
	}
}

func plugStore(p Plugin, sc *StoreContext, c *Context) {
	if h, ok := p.(StoreContextPlugger); ok {
		h.PlugStoreContext(sc, c)
	}
}

// Plug registers p after all existing plugins.
//
// Views that are already built receive p's contributions immediately, so a
// view looks the same whether it was built before or after the call.
func (c *Context) Plug(p Plugin) error {
	c.mu.Lock()
	err := c.plugins.Add(p)
	ac, cc, sc := c.actionCtx, c.componentCtx, c.storeCtx
	c.mu.Unlock()

	if err != nil {
		cfgErr := &ConfigurationError{Op: "plug", Err: err}
		switch {
		case errors.Is(err, plugin.ErrNilPlugin):
			cfgErr.Err = ErrPluginNameRequired
		case errors.Is(err, plugin.ErrDuplicate):
			cfgErr.Plugin = p.Name()
			cfgErr.Err = ErrDuplicatePlugin
		}
		return cfgErr
	}

	c.logger.Debug("plugged %s", p.Name())
	if ac != nil {
		plugAction(p, ac, c)
	}
	if cc != nil {
		plugComponent(p, cc, c)
	}
	if sc != nil {
		plugStore(p, sc, c)
	}
	return nil
}

// MustPlug is like Plug but panics on error.
func (c *Context) MustPlug(p Plugin) {
	if err := c.Plug(p); err != nil {
		panic(err)
	}
}

// Plugin returns the plugin registered under name.
func (c *Context) Plugin(name string) (Plugin, bool) {
	return c.plugins.Get(name)
}

// Plugins returns the plugins in registration order.
func (c *Context) Plugins() []Plugin {
	return c.plugins.All()
}

// Dehydrate captures the dispatcher state and the state of every plugin
// implementing Dehydrator.
func (c *Context) Dehydrate() (*snapshot.Snapshot, error) {
	raw, err := c.dispatcher.Dehydrate()
	if err != nil {
		return nil, fmt.Errorf("dehydrate dispatcher: %w", err)
	}

	s := snapshot.New(raw)
	for _, p := range c.plugins.All() {
		d, ok := p.(Dehydrator)
		if !ok {
			continue
		}
		state, err := d.Dehydrate()
		if errors.Is(err, ErrNoState) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("dehydrate plugin %q: %w", p.Name(), err)
		}
		if err := s.SetPlugin(p.Name(), state); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	if len(c.reserved) > 0 {
		s.Reserved = maps.Clone(c.reserved)
	}
	c.mu.Unlock()
	return s, nil
}

// Rehydrate restores the dispatcher and plugin state from s.
//
// Plugins missing from s keep their current state. Entries in s for
// plugins that are not registered are ignored. Reserved keys of s are kept
// and written back by the next Dehydrate.
func (c *Context) Rehydrate(s *snapshot.Snapshot) error {
	if s == nil || len(s.Dispatcher) == 0 {
		return snapshot.ErrMissingDispatcher
	}

	if err := c.dispatcher.Rehydrate(s.Dispatcher); err != nil {
		return fmt.Errorf("rehydrate dispatcher: %w", err)
	}

	for _, p := range c.plugins.All() {
		r, ok := p.(Rehydrator)
		if !ok {
			continue
		}
		state, ok := s.Plugin(p.Name())
		if !ok {
			continue
		}
		if err := r.Rehydrate(state); err != nil {
			return fmt.Errorf("rehydrate plugin %q: %w", p.Name(), err)
		}
		c.logger.Debug("rehydrated plugin %s", p.Name())
	}

	c.mu.Lock()
	c.reserved = maps.Clone(s.Reserved)
	c.mu.Unlock()
	return nil
}

// Close closes every plugin implementing io.Closer, in reverse
// registration order.
func (c *Context) Close() error {
	var errs []error
	c.plugins.Reverse(func(p Plugin) {
		if closer, ok := p.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close plugin %q: %w", p.Name(), err))
			}
		}
	})
	return errors.Join(errs...)
}

// storeEnv exposes the store view to stores created by the dispatcher.
// The view is resolved on each lookup so it reflects later plugs.
type storeEnv struct {
	c *Context
}

func (e storeEnv) Capability(name string) (any, bool) {
	return e.c.StoreContext().Get(name)
}

// StoreContextFrom returns the store view behind a dispatcher.Env passed to
// a store factory by a Context.
func StoreContextFrom(env dispatcher.Env) (*StoreContext, bool) {
	e, ok := env.(storeEnv)
	if !ok {
		return nil, false
	}
	return e.c.StoreContext(), true
}
