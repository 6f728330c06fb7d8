package app

import "github.com/dshills/isoflux/internal/fluxctx"

// ContextOptions carries per-request values to app plugins.
type ContextOptions struct {
	// Values holds request-scoped data, such as a locale or request ID.
	Values map[string]any
}

// Value returns the request value stored under key.
func (o ContextOptions) Value(key string) (any, bool) {
	v, ok := o.Values[key]
	return v, ok
}

// Plugin is registered once on an Application and produces a fresh
// context plugin for every context the application creates.
//
// PlugContext may return nil when a context needs no plugin.
type Plugin interface {
	Name() string
	PlugContext(opts ContextOptions) fluxctx.Plugin
}

type sharedPlugin struct {
	p fluxctx.Plugin
}

// Shared wraps a stateless context plugin so every context plugs the same
// instance. p must not hold per-request state.
func Shared(p fluxctx.Plugin) Plugin {
	return sharedPlugin{p: p}
}

func (s sharedPlugin) Name() string {
	if s.p == nil {
		return ""
	}
	return s.p.Name()
}

func (s sharedPlugin) PlugContext(ContextOptions) fluxctx.Plugin { return s.p }

// PluginFunc adapts a constructor into an app Plugin named name.
func PluginFunc(name string, fn func(opts ContextOptions) fluxctx.Plugin) Plugin {
	return funcPlugin{name: name, fn: fn}
}

type funcPlugin struct {
	name string
	fn   func(ContextOptions) fluxctx.Plugin
}

func (f funcPlugin) Name() string { return f.name }

func (f funcPlugin) PlugContext(opts ContextOptions) fluxctx.Plugin {
	if f.fn == nil {
		return nil
	}
	return f.fn(opts)
}
