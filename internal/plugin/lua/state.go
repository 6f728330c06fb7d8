package lua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// DefaultExecutionTimeout bounds every call into a State.
const DefaultExecutionTimeout = 5 * time.Second

// State wraps gopher-lua with sandboxing and Go value conversion.
//
// gopher-lua's LState is not goroutine-safe. State serializes all access
// with a mutex, so Go functions registered with RegisterFunc must not call
// back into the same State.
type State struct {
	L *lua.LState

	mu sync.Mutex

	executionTimeout time.Duration

	sandbox *Sandbox
	bridge  *Bridge

	closed bool
}

// StateOption configures a State.
type StateOption func(*stateConfig)

type stateConfig struct {
	executionTimeout time.Duration
	modules          map[string]lua.LGFunction
}

// WithExecutionTimeout sets the execution timeout for Lua calls.
// A non-positive duration disables the timeout.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(c *stateConfig) {
		c.executionTimeout = d
	}
}

// WithModule preloads a module that scripts can load with require(name).
func WithModule(name string, loader lua.LGFunction) StateOption {
	return func(c *stateConfig) {
		c.modules[name] = loader
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) (*State, error) {
	cfg := stateConfig{
		executionTimeout: DefaultExecutionTimeout,
		modules:          make(map[string]lua.LGFunction),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	// Create Lua state with limited libraries
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // We'll open selectively
	})
	openSafeLibraries(L)

	state := &State{
		L:                L,
		executionTimeout: cfg.executionTimeout,
		sandbox:          NewSandbox(L),
		bridge:           NewBridge(L),
	}

	for name, loader := range cfg.modules {
		L.PreloadModule(name, loader)
		state.sandbox.AllowModule(name)
	}
	state.sandbox.Install()

	return state, nil
}

// openSafeLibraries opens only safe Lua standard libraries.
func openSafeLibraries(L *lua.LState) {
	for _, open := range []lua.LGFunction{
		lua.OpenPackage, // Required for preloaded modules; paths are cleared by the sandbox
		lua.OpenBase,
		lua.OpenTable,
		lua.OpenString,
		lua.OpenMath,
	} {
		L.Push(L.NewFunction(open))
		L.Call(0, 0)
	}

	// Note: These are intentionally NOT opened:
	// - io (file system access)
	// - os (system calls, execute)
	// - debug (can bypass sandbox)
}

// Compile parses and compiles source once so it can be run in many states.
func Compile(name, source string) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return proto, nil
}

// DoString executes a Lua string.
func (s *State) DoString(code string) error {
	return s.exec(func() error {
		return s.L.DoString(code)
	})
}

// DoFile executes a Lua file.
func (s *State) DoFile(path string) error {
	return s.exec(func() error {
		return s.L.DoFile(path)
	})
}

// DoProto executes a chunk produced by Compile.
func (s *State) DoProto(proto *lua.FunctionProto) error {
	return s.exec(func() error {
		s.L.Push(s.L.NewFunctionFromProto(proto))
		return s.L.PCall(0, 0, nil)
	})
}

// exec runs fn under the lock with the execution timeout and panic
// recovery applied.
func (s *State) exec(fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	if s.executionTimeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.executionTimeout)
		s.L.SetContext(ctx)
		defer func() {
			s.L.RemoveContext()
			cancel()
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
			}
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Call calls a global Lua function with Go arguments and returns its
// results as Go values.
func (s *State) Call(name string, args ...any) ([]any, error) {
	fn, err := s.globalFunc(name)
	if err != nil {
		return nil, err
	}
	return s.CallFunc(fn, args...)
}

// CallFunc calls a Lua function value with Go arguments.
func (s *State) CallFunc(fn *lua.LFunction, args ...any) ([]any, error) {
	var results []any
	err := s.exec(func() error {
		var callErr error
		results, callErr = s.bridge.CallFunc(fn, args...)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Do runs fn with exclusive access to the Lua state, under the same
// timeout and panic recovery as every other call.
func (s *State) Do(fn func(L *lua.LState) error) error {
	return s.exec(func() error {
		return fn(s.L)
	})
}

func (s *State) globalFunc(name string) (*lua.LFunction, error) {
	v := s.GetGlobal(name)
	fn, ok := v.(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %s", ErrNotFunction, name, v.Type())
	}
	return fn, nil
}

// HasFunc returns true if the global name is a function.
func (s *State) HasFunc(name string) bool {
	_, ok := s.GetGlobal(name).(*lua.LFunction)
	return ok
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}

	return s.L.GetGlobal(name)
}

// GlobalString returns the global name if it is a string.
func (s *State) GlobalString(name string) (string, bool) {
	str, ok := s.GetGlobal(name).(lua.LString)
	return string(str), ok
}

// SetGlobal sets a global variable from a Go value.
func (s *State) SetGlobal(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.L.SetGlobal(name, s.bridge.ToLuaValue(value))
}

// RegisterFunc registers a Go function as a global Lua function.
func (s *State) RegisterFunc(name string, fn func(args []any) (any, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.L.SetGlobal(name, s.L.NewFunction(s.bridge.WrapGoFunc(fn)))
}

// Bridge returns the value converter bound to this state.
func (s *State) Bridge() *Bridge {
	return s.bridge
}

// Sandbox returns the sandbox of this state.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases all resources associated with the Lua state.
// After Close is called, all other methods will return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.L.Close()
	s.closed = true
	return nil
}
