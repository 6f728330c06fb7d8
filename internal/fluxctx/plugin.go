package fluxctx

import (
	"encoding/json"

	"github.com/dshills/isoflux/internal/dispatcher"
)

// Plugin is a named extension of a Context.
//
// A plugin takes part in view construction and snapshots by implementing
// any of ActionContextPlugger, ComponentContextPlugger, StoreContextPlugger,
// Dehydrator and Rehydrator. Plugins implementing io.Closer are closed with
// their Context.
type Plugin interface {
	Name() string
}

// ActionContextPlugger contributes capabilities to the action view.
type ActionContextPlugger interface {
	PlugActionContext(ac *ActionContext, c *Context)
}

// ComponentContextPlugger contributes capabilities to the component view.
type ComponentContextPlugger interface {
	PlugComponentContext(cc *ComponentContext, c *Context)
}

// StoreContextPlugger contributes capabilities to the store view.
type StoreContextPlugger interface {
	PlugStoreContext(sc *StoreContext, c *Context)
}

// Dehydrator returns plugin state for a snapshot.
// The returned value must be encodable with encoding/json. Returning
// ErrNoState omits the plugin from the snapshot.
type Dehydrator interface {
	Dehydrate() (any, error)
}

// Rehydrator restores plugin state produced by Dehydrate.
type Rehydrator interface {
	Rehydrate(state json.RawMessage) error
}

// Dispatcher is the per-context dispatcher a Context delegates to.
// *dispatcher.Instance implements it.
type Dispatcher interface {
	Dispatch(actionName string, payload any) error
	GetStore(name string) (dispatcher.Store, error)
	Dehydrate() (json.RawMessage, error)
	Rehydrate(state json.RawMessage) error
}

// DispatcherFactory creates the dispatcher of a new Context.
// env resolves capabilities of the Context's store view.
type DispatcherFactory func(env dispatcher.Env) Dispatcher

// InstanceFactory returns a DispatcherFactory creating instances of d.
func InstanceFactory(d *dispatcher.Dispatcher) DispatcherFactory {
	return func(env dispatcher.Env) Dispatcher {
		return d.NewInstance(env)
	}
}
