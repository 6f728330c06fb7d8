package fluxctx_test

import (
	"encoding/json"
	"errors"

	"github.com/dshills/isoflux/internal/fluxctx"
)

// valuePlugin contributes one capability with a fixed value to every view
// and round-trips that value through snapshots.
type valuePlugin struct {
	name  string
	key   string
	value string

	closed *[]string
}

func (p *valuePlugin) Name() string { return p.name }

func (p *valuePlugin) get() string { return p.value }

func (p *valuePlugin) PlugActionContext(ac *fluxctx.ActionContext, c *fluxctx.Context) {
	ac.Set(p.key, p.get)
}

func (p *valuePlugin) PlugComponentContext(cc *fluxctx.ComponentContext, c *fluxctx.Context) {
	cc.Set(p.key, p.get)
}

func (p *valuePlugin) PlugStoreContext(sc *fluxctx.StoreContext, c *fluxctx.Context) {
	sc.Set(p.key, p.get)
}

func (p *valuePlugin) Dehydrate() (any, error) {
	return map[string]string{"value": p.value}, nil
}

func (p *valuePlugin) Rehydrate(state json.RawMessage) error {
	var st struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(state, &st); err != nil {
		return err
	}
	p.value = st.Value
	return nil
}

func (p *valuePlugin) Close() error {
	if p.closed != nil {
		*p.closed = append(*p.closed, p.name)
	}
	return nil
}

// namedPlugin implements no hooks.
type namedPlugin string

func (p namedPlugin) Name() string { return string(p) }

// failingPlugin returns err from every hook.
type failingPlugin struct{ err error }

func (p *failingPlugin) Name() string { return "failing" }
func (p *failingPlugin) Dehydrate() (any, error) { return nil, p.err }
func (p *failingPlugin) Rehydrate(json.RawMessage) error { return p.err }
func (p *failingPlugin) Close() error { return p.err }

var errFailing = errors.New("failing plugin")

func lookup(v fluxctx.Getter, key string) string {
	fn, ok := fluxctx.Capability[func() string](v, key)
	if !ok {
		return ""
	}
	return fn()
}
