package fluxctx

import (
	"github.com/dshills/isoflux/internal/action"
	"github.com/dshills/isoflux/internal/dispatcher"
)

// ComponentContext is the view handed to the component tree.
type ComponentContext struct {
	*Capabilities

	context *Context
}

func newComponentContext(c *Context) *ComponentContext {
	cc := &ComponentContext{
		Capabilities: newCapabilities(),
		context:      c,
	}
	cc.Set(CapExecuteAction, cc.ExecuteAction)
	cc.Set(CapGetStore, cc.GetStore)
	cc.Set(CapCreateElement, cc.CreateElement)
	return cc
}

// ExecuteAction runs fn through the context's action view. fn receives
// the ActionContext, never this view.
func (cc *ComponentContext) ExecuteAction(fn ActionFunc, payload any) *action.Completion {
	return cc.context.ActionContext().ExecuteAction(fn, payload)
}

// GetStore returns the named store of the context's dispatcher.
func (cc *ComponentContext) GetStore(name string) (dispatcher.Store, error) {
	return cc.context.dispatcher.GetStore(name)
}

// CreateElement renders the root component of the context.
func (cc *ComponentContext) CreateElement(extra Props) any {
	return cc.context.CreateElement(extra)
}
