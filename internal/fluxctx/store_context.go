package fluxctx

import "github.com/dshills/isoflux/internal/dispatcher"

// StoreContext is the view handed to stores.
type StoreContext struct {
	*Capabilities

	context *Context
}

func newStoreContext(c *Context) *StoreContext {
	sc := &StoreContext{
		Capabilities: newCapabilities(),
		context:      c,
	}
	sc.Set(CapGetStore, sc.GetStore)
	return sc
}

// GetStore returns the named store of the context's dispatcher.
// It must not be called from a store factory.
func (sc *StoreContext) GetStore(name string) (dispatcher.Store, error) {
	return sc.context.dispatcher.GetStore(name)
}
