// Package dimensions provides DimensionsPlugin, which exposes a fixed set
// of request dimensions (locale, device class, experiment buckets) to every
// view and carries them across dehydration.
package dimensions

import (
	"encoding/json"
	"maps"
	"sync"

	"github.com/dshills/isoflux/internal/app"
	"github.com/dshills/isoflux/internal/fluxctx"
)

// Name is the plugin name.
const Name = "DimensionsPlugin"

// CapGetDimensions is the capability contributed to every view.
const CapGetDimensions = "getDimensions"

// Dimensions is a set of named request dimensions.
type Dimensions map[string]any

// Plugin is the per-context DimensionsPlugin.
type Plugin struct {
	mu         sync.RWMutex
	dimensions Dimensions
}

// New creates a context plugin holding a copy of dims.
func New(dims Dimensions) *Plugin {
	return &Plugin{dimensions: maps.Clone(dims)}
}

// NewApp creates an app plugin whose contexts start with dims.
// When the context options carry a "dimensions" value of type Dimensions it
// is used instead.
func NewApp(dims Dimensions) app.Plugin {
	return app.PluginFunc(Name, func(opts app.ContextOptions) fluxctx.Plugin {
		if v, ok := opts.Value("dimensions"); ok {
			if d, ok := v.(Dimensions); ok {
				return New(d)
			}
		}
		return New(dims)
	})
}

// Name implements fluxctx.Plugin.
func (p *Plugin) Name() string { return Name }

// Dimensions returns a copy of the current dimensions.
func (p *Plugin) Dimensions() Dimensions {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.dimensions)
}

// PlugActionContext implements fluxctx.ActionContextPlugger.
func (p *Plugin) PlugActionContext(ac *fluxctx.ActionContext, _ *fluxctx.Context) {
	ac.Set(CapGetDimensions, p.Dimensions)
}

// PlugComponentContext implements fluxctx.ComponentContextPlugger.
func (p *Plugin) PlugComponentContext(cc *fluxctx.ComponentContext, _ *fluxctx.Context) {
	cc.Set(CapGetDimensions, p.Dimensions)
}

// PlugStoreContext implements fluxctx.StoreContextPlugger.
func (p *Plugin) PlugStoreContext(sc *fluxctx.StoreContext, _ *fluxctx.Context) {
	sc.Set(CapGetDimensions, p.Dimensions)
}

type state struct {
	Dimensions Dimensions `json:"dimensions"`
}

// Dehydrate implements fluxctx.Dehydrator.
func (p *Plugin) Dehydrate() (any, error) {
	return state{Dimensions: p.Dimensions()}, nil
}

// Rehydrate implements fluxctx.Rehydrator.
func (p *Plugin) Rehydrate(raw json.RawMessage) error {
	var st state
	if err := json.Unmarshal(raw, &st); err != nil {
		return err
	}
	p.mu.Lock()
	p.dimensions = st.Dimensions
	p.mu.Unlock()
	return nil
}

// Get returns the dimensions contributed to v, or nil.
func Get(v fluxctx.Getter) Dimensions {
	fn, ok := fluxctx.Capability[func() Dimensions](v, CapGetDimensions)
	if !ok {
		return nil
	}
	return fn()
}
