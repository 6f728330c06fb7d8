// Package luaplugin implements context plugins written in Lua.
//
// A script declares the plugin through globals:
//
//	name = "Greeter"
//
//	local greeting = "hello"
//
//	function plug_action_context()
//	    return {
//	        greet = function(who) return greeting .. " " .. who end,
//	    }
//	end
//
//	function dehydrate()
//	    return { greeting = greeting }
//	end
//
//	function rehydrate(state)
//	    greeting = state.greeting
//	end
//
// plug_action_context, plug_component_context and plug_store_context each
// return a table whose entries become capabilities of the matching view.
// Function entries are exposed as Func values; other entries are converted
// to Go values. All hooks are optional except name.
//
// Scripts may load the "isoflux" module, which provides log.debug,
// log.info, log.warn and log.error bound to the plugin's logger.
package luaplugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/isoflux/internal/app"
	"github.com/dshills/isoflux/internal/fluxctx"
	"github.com/dshills/isoflux/internal/logging"
	luart "github.com/dshills/isoflux/internal/plugin/lua"
)

// Script hook names.
const (
	GlobalName       = "name"
	HookAction       = "plug_action_context"
	HookComponent    = "plug_component_context"
	HookStore        = "plug_store_context"
	HookDehydrate    = "dehydrate"
	HookRehydrate    = "rehydrate"
	ModuleName       = "isoflux"
	defaultChunkName = "plugin.lua"
)

// ErrHookResult is returned when a plug hook does not return a table.
var ErrHookResult = errors.New("plug hook must return a table")

// Func is a Lua function exposed as a capability.
type Func func(args ...any) ([]any, error)

// Option configures a Script.
type Option func(*Script)

// WithLogger sets the logger used by the script's log functions and for
// hook failures.
func WithLogger(l *logging.Logger) Option {
	return func(s *Script) {
		s.logger = l
	}
}

// WithTimeout bounds each call into the script.
func WithTimeout(d time.Duration) Option {
	return func(s *Script) {
		s.timeout = d
	}
}

// Script is a compiled plugin script. It loads into a fresh Lua state for
// every context.
type Script struct {
	name    string
	chunk   string
	proto   *lua.FunctionProto
	logger  *logging.Logger
	timeout time.Duration
}

// Compile compiles source and validates that it declares a plugin name.
// chunk names the script in Lua error messages.
func Compile(chunk, source string, opts ...Option) (*Script, error) {
	if chunk == "" {
		chunk = defaultChunkName
	}
	s := &Script{
		chunk:   chunk,
		timeout: luart.DefaultExecutionTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNull(s.logger).WithComponent("lua").WithField("script", chunk)

	proto, err := luart.Compile(chunk, source)
	if err != nil {
		return nil, err
	}
	s.proto = proto

	// Load once to read the declared name.
	p, err := s.Load()
	if err != nil {
		return nil, err
	}
	s.name = p.name
	if err := p.Close(); err != nil {
		return nil, err
	}
	return s, nil
}

// CompileFile compiles the script at path.
func CompileFile(path string, opts ...Option) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lua plugin: %w", err)
	}
	return Compile(filepath.Base(path), string(data), opts...)
}

// Name returns the plugin name declared by the script.
func (s *Script) Name() string {
	return s.name
}

// Load runs the script in a new Lua state and returns the plugin.
func (s *Script) Load() (*Plugin, error) {
	p := &Plugin{logger: s.logger}
	state, err := luart.NewState(
		luart.WithExecutionTimeout(s.timeout),
		luart.WithModule(ModuleName, moduleLoader(p)),
	)
	if err != nil {
		return nil, err
	}

	if err := state.DoProto(s.proto); err != nil {
		state.Close()
		return nil, fmt.Errorf("run %s: %w", s.chunk, err)
	}

	name, ok := state.GlobalString(GlobalName)
	if !ok || name == "" {
		state.Close()
		return nil, fmt.Errorf("%s: global %q: %w", s.chunk, GlobalName, fluxctx.ErrPluginNameRequired)
	}

	p.name = name
	p.state = state
	p.logger = s.logger.WithField("plugin", name)
	return p, nil
}

// App returns an app plugin that loads the script for each context.
// A context whose script fails to load gets no plugin; the failure is
// logged.
func (s *Script) App() app.Plugin {
	return app.PluginFunc(s.name, func(app.ContextOptions) fluxctx.Plugin {
		p, err := s.Load()
		if err != nil {
			s.logger.Error("load plugin %s: %v", s.name, err)
			return nil
		}
		return p
	})
}

// moduleLoader builds the isoflux module exposed to scripts.
// Log functions resolve p's logger on each call, so lines logged after the
// script declared its name carry the plugin field.
func moduleLoader(p *Plugin) lua.LGFunction {
	return func(L *lua.LState) int {
		logFn := func(emit func(*logging.Logger, string)) lua.LGFunction {
			return func(L *lua.LState) int {
				emit(p.logger, L.CheckString(1))
				return 0
			}
		}
		log := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
			"debug": logFn(func(l *logging.Logger, msg string) { l.Debug("%s", msg) }),
			"info":  logFn(func(l *logging.Logger, msg string) { l.Info("%s", msg) }),
			"warn":  logFn(func(l *logging.Logger, msg string) { l.Warn("%s", msg) }),
			"error": logFn(func(l *logging.Logger, msg string) { l.Error("%s", msg) }),
		})
		mod := L.NewTable()
		L.SetField(mod, "log", log)
		L.Push(mod)
		return 1
	}
}

// Plugin is a context plugin backed by one Lua state.
type Plugin struct {
	name   string
	state  *luart.State
	logger *logging.Logger
}

// Name implements fluxctx.Plugin.
func (p *Plugin) Name() string { return p.name }

// State returns the plugin's Lua state.
func (p *Plugin) State() *luart.State { return p.state }

// capabilities calls hook and converts the returned table.
// A missing hook contributes nothing.
func (p *Plugin) capabilities(hook string) (map[string]any, error) {
	fn, ok := p.state.GetGlobal(hook).(*lua.LFunction)
	if !ok {
		return nil, nil
	}

	caps := make(map[string]any)
	bridge := p.state.Bridge()
	err := p.state.Do(func(L *lua.LState) error {
		results, err := bridge.CallLua(fn)
		if err != nil {
			return err
		}
		if len(results) == 0 || results[0] == lua.LNil {
			return nil
		}
		tbl, ok := results[0].(*lua.LTable)
		if !ok {
			return fmt.Errorf("%w, got %s", ErrHookResult, results[0].Type())
		}
		tbl.ForEach(func(k, v lua.LValue) {
			key, ok := k.(lua.LString)
			if !ok {
				return
			}
			if f, ok := v.(*lua.LFunction); ok {
				caps[string(key)] = p.wrap(f)
				return
			}
			caps[string(key)] = bridge.ToGoValue(v)
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", hook, err)
	}
	return caps, nil
}

func (p *Plugin) wrap(fn *lua.LFunction) Func {
	return func(args ...any) ([]any, error) {
		return p.state.CallFunc(fn, args...)
	}
}

// apply sets the capabilities returned by hook on set.
// Hook errors are logged; a failing script must not break view construction.
func (p *Plugin) apply(hook string, set func(string, any)) {
	caps, err := p.capabilities(hook)
	if err != nil {
		p.logger.Error("%v", err)
		return
	}
	for _, name := range slices.Sorted(maps.Keys(caps)) {
		set(name, caps[name])
	}
}

// PlugActionContext implements fluxctx.ActionContextPlugger.
func (p *Plugin) PlugActionContext(ac *fluxctx.ActionContext, _ *fluxctx.Context) {
	p.apply(HookAction, ac.Set)
}

// PlugComponentContext implements fluxctx.ComponentContextPlugger.
func (p *Plugin) PlugComponentContext(cc *fluxctx.ComponentContext, _ *fluxctx.Context) {
	p.apply(HookComponent, cc.Set)
}

// PlugStoreContext implements fluxctx.StoreContextPlugger.
func (p *Plugin) PlugStoreContext(sc *fluxctx.StoreContext, _ *fluxctx.Context) {
	p.apply(HookStore, sc.Set)
}

// Dehydrate calls the script's dehydrate hook.
// A script without the hook is left out of snapshots.
func (p *Plugin) Dehydrate() (any, error) {
	if !p.state.HasFunc(HookDehydrate) {
		return nil, fluxctx.ErrNoState
	}
	results, err := p.state.Call(HookDehydrate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", HookDehydrate, err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// Rehydrate passes the decoded state to the script's rehydrate hook.
func (p *Plugin) Rehydrate(raw json.RawMessage) error {
	if !p.state.HasFunc(HookRehydrate) {
		return nil
	}
	var state any
	if err := json.Unmarshal(raw, &state); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	if _, err := p.state.Call(HookRehydrate, state); err != nil {
		return fmt.Errorf("%s: %w", HookRehydrate, err)
	}
	return nil
}

// Close releases the Lua state.
func (p *Plugin) Close() error {
	return p.state.Close()
}
