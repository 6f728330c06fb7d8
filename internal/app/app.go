package app

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/isoflux/internal/dispatcher"
	"github.com/dshills/isoflux/internal/fluxctx"
	"github.com/dshills/isoflux/internal/logging"
	"github.com/dshills/isoflux/internal/plugin"
	"github.com/dshills/isoflux/internal/snapshot"
)

// Store names a store factory registered with the application.
type Store struct {
	Name    string
	Factory dispatcher.StoreFactory
}

// Options configures the application.
type Options struct {
	// AppComponent is the root component factory.
	AppComponent fluxctx.ComponentFactory

	// Plugins are plugged into every context, in order.
	Plugins []Plugin

	// Stores are registered with the dispatcher, in order.
	Stores []Store

	// Dispatcher configures the shared dispatcher.
	// Nil uses dispatcher.DefaultConfig().
	Dispatcher *dispatcher.Config

	// Logger receives application and context logs.
	Logger *logging.Logger
}

// Application creates contexts that share its component, stores and
// plugin definitions but nothing else.
//
// Plugins and stores may only be added before the first context is
// created; afterwards the application is frozen.
type Application struct {
	mu     sync.Mutex
	frozen bool

	appComponent fluxctx.ComponentFactory
	dispatcher   *dispatcher.Dispatcher
	plugins      *plugin.Registry[Plugin]
	logger       *logging.Logger
}

// New creates an Application from opts.
func New(opts Options) (*Application, error) {
	cfg := dispatcher.DefaultConfig()
	if opts.Dispatcher != nil {
		cfg = *opts.Dispatcher
	}

	app := &Application{
		appComponent: opts.AppComponent,
		dispatcher:   dispatcher.New(cfg),
		plugins:      plugin.NewRegistry[Plugin](),
		logger:       logging.OrNull(opts.Logger),
	}

	for _, s := range opts.Stores {
		if err := app.RegisterStore(s.Name, s.Factory); err != nil {
			return nil, err
		}
	}
	for _, p := range opts.Plugins {
		if err := app.Plug(p); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Plug registers an app plugin.
func (app *Application) Plug(p Plugin) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.frozen {
		return ErrFrozen
	}

	if err := app.plugins.Add(p); err != nil {
		cfgErr := &ConfigurationError{Op: "plug", Err: err}
		switch {
		case errors.Is(err, plugin.ErrNilPlugin):
			cfgErr.Err = fluxctx.ErrPluginNameRequired
		case errors.Is(err, plugin.ErrDuplicate):
			cfgErr.Plugin = p.Name()
			cfgErr.Err = fluxctx.ErrDuplicatePlugin
		}
		return cfgErr
	}
	return nil
}

// RegisterStore registers a store with the shared dispatcher.
func (app *Application) RegisterStore(name string, f dispatcher.StoreFactory) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.frozen {
		return ErrFrozen
	}
	if name == "" || f == nil {
		return fmt.Errorf("store %q: %w", name, ErrInvalidStore)
	}
	return app.dispatcher.RegisterStore(name, f)
}

// Plugins returns the registered app plugins in order.
func (app *Application) Plugins() []Plugin {
	return app.plugins.All()
}

// Stores returns the registered store names in order.
func (app *Application) Stores() []string {
	return app.dispatcher.Stores()
}

// Dispatcher returns the shared dispatcher.
func (app *Application) Dispatcher() *dispatcher.Dispatcher {
	return app.dispatcher
}

// Frozen returns true once a context has been created.
func (app *Application) Frozen() bool {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.frozen
}

// CreateContext creates a context with no request values.
// It panics if an app plugin produces an invalid context plugin.
func (app *Application) CreateContext() *fluxctx.Context {
	return app.CreateContextWithOptions(ContextOptions{})
}

// CreateContextWithOptions creates a context and plugs a fresh context
// plugin from every app plugin into it.
// It panics if an app plugin produces an invalid context plugin.
func (app *Application) CreateContextWithOptions(opts ContextOptions) *fluxctx.Context {
	c, err := app.newContext(opts)
	if err != nil {
		panic(err)
	}
	return c
}

func (app *Application) newContext(opts ContextOptions) (*fluxctx.Context, error) {
	app.mu.Lock()
	app.frozen = true
	app.mu.Unlock()

	c := fluxctx.New(fluxctx.Options{
		AppComponent: app.appComponent,
		Dispatcher:   fluxctx.InstanceFactory(app.dispatcher),
		Logger:       app.logger,
	})

	for _, ap := range app.plugins.All() {
		p := ap.PlugContext(opts)
		if p == nil {
			continue
		}
		if err := c.Plug(p); err != nil {
			if cerr := c.Close(); cerr != nil {
				app.logger.Warn("close context %s: %v", c.ID(), cerr)
			}
			return nil, fmt.Errorf("app plugin %q: %w", ap.Name(), err)
		}
	}

	app.logger.Debug("created context %s with %d plugins", c.ID(), len(c.Plugins()))
	return c, nil
}

// Dehydrate returns the snapshot of c.
func (app *Application) Dehydrate(c *fluxctx.Context) (*snapshot.Snapshot, error) {
	return c.Dehydrate()
}

// Rehydrate builds a context from input and passes it to cb.
//
// input may be a *snapshot.Snapshot, a snapshot.Snapshot, serialized JSON
// as []byte, json.RawMessage or string, or decoded JSON such as a
// map[string]any. cb is called exactly once, before Rehydrate returns.
// On failure cb receives a *RehydrationError and a nil context.
func (app *Application) Rehydrate(input any, cb func(err error, c *fluxctx.Context)) {
	c, err := app.RehydrateContext(input)
	if cb != nil {
		cb(err, c)
	}
}

// RehydrateContext is the synchronous form of Rehydrate.
func (app *Application) RehydrateContext(input any) (*fluxctx.Context, error) {
	s, err := snapshot.FromValue(input)
	if err != nil {
		app.logger.Warn("rejected snapshot: %v", err)
		return nil, &RehydrationError{Stage: StageParse, Err: err}
	}

	c, err := app.newContext(ContextOptions{})
	if err != nil {
		return nil, &RehydrationError{Stage: StageContext, Err: err}
	}

	if err := c.Rehydrate(s); err != nil {
		if cerr := c.Close(); cerr != nil {
			app.logger.Warn("close context %s: %v", c.ID(), cerr)
		}
		app.logger.Error("rehydrate context: %v", err)
		return nil, &RehydrationError{Stage: StageRestore, Err: err}
	}

	app.logger.Debug("rehydrated context %s", c.ID())
	return c, nil
}
