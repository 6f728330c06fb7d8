package fluxctx

import (
	"github.com/dshills/isoflux/internal/action"
	"github.com/dshills/isoflux/internal/dispatcher"
)

// ActionFunc is an action. It receives the action view of the context it
// runs in and returns the completion of its work.
type ActionFunc func(ac *ActionContext, payload any) *action.Completion

// Sync adapts a function with a plain return into an ActionFunc whose
// completion is already settled.
func Sync(fn func(ac *ActionContext, payload any) (any, error)) ActionFunc {
	return func(ac *ActionContext, payload any) *action.Completion {
		return action.FromResult(fn(ac, payload))
	}
}

// Async adapts fn into an ActionFunc that runs fn on its own goroutine.
func Async(fn func(ac *ActionContext, payload any) (any, error)) ActionFunc {
	return func(ac *ActionContext, payload any) *action.Completion {
		return action.Go(func() (any, error) {
			return fn(ac, payload)
		})
	}
}

// ActionContext is the view handed to actions.
type ActionContext struct {
	*Capabilities

	context *Context
}

func newActionContext(c *Context) *ActionContext {
	ac := &ActionContext{
		Capabilities: newCapabilities(),
		context:      c,
	}
	// Plugins may replace these entries; the methods keep the base behavior.
	ac.Set(CapExecuteAction, ac.ExecuteAction)
	ac.Set(CapDispatch, ac.Dispatch)
	ac.Set(CapGetStore, ac.GetStore)
	return ac
}

// ExecuteAction calls fn once with this view and payload and returns the
// completion fn returned. A nil completion is treated as resolved with nil.
// Failures are passed through untouched.
func (ac *ActionContext) ExecuteAction(fn ActionFunc, payload any) *action.Completion {
	if fn == nil {
		return action.Rejected(ErrNilAction)
	}
	if c := fn(ac, payload); c != nil {
		return c
	}
	return action.Resolved(nil)
}

// Dispatch sends an action to the context's stores.
func (ac *ActionContext) Dispatch(actionName string, payload any) error {
	return ac.context.dispatcher.Dispatch(actionName, payload)
}

// GetStore returns the named store of the context's dispatcher.
func (ac *ActionContext) GetStore(name string) (dispatcher.Store, error) {
	return ac.context.dispatcher.GetStore(name)
}
