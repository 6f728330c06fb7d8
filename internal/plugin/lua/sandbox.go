package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// Sandbox restricts what Lua code can reach.
type Sandbox struct {
	L *lua.LState

	// Modules require may load, in addition to the safe built-ins
	modules map[string]bool
}

// safeModules are built-in libraries require may always return.
var safeModules = map[string]bool{
	"string": true,
	"table":  true,
	"math":   true,
}

// NewSandbox creates a new sandbox for the Lua state.
func NewSandbox(L *lua.LState) *Sandbox {
	return &Sandbox{
		L:       L,
		modules: make(map[string]bool),
	}
}

// AllowModule lets require load the preloaded module name.
func (s *Sandbox) AllowModule(name string) {
	s.modules[name] = true
}

// Allowed returns true if require may load name.
func (s *Sandbox) Allowed(name string) bool {
	return safeModules[name] || s.modules[name]
}

// Install sets up the sandbox restrictions.
func (s *Sandbox) Install() {
	// Remove functions that load code from disk or strings
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.installSafeRequire()
}

// installSafeRequire clears package search paths and replaces require with
// a version that only loads allowed modules.
func (s *Sandbox) installSafeRequire() {
	if pkgTable, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkgTable, "path", lua.LString(""))
		s.L.SetField(pkgTable, "cpath", lua.LString(""))

		// Only the safe built-ins may stay in package.loaded
		if loaded, ok := s.L.GetField(pkgTable, "loaded").(*lua.LTable); ok {
			var keysToRemove []string
			loaded.ForEach(func(k, _ lua.LValue) {
				if ks, ok := k.(lua.LString); ok && !safeModules[string(ks)] && string(ks) != "_G" && string(ks) != "package" {
					keysToRemove = append(keysToRemove, string(ks))
				}
			})
			for _, key := range keysToRemove {
				loaded.RawSetString(key, lua.LNil)
			}
		}
	}

	originalRequire := s.L.GetGlobal("require")

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		modName := L.CheckString(1)
		if !s.Allowed(modName) {
			// L.RaiseError does not return.
			L.RaiseError("module %q is not available", modName)
			return 0
		}
		L.Push(originalRequire)
		L.Push(lua.LString(modName))
		L.Call(1, 1)
		return 1
	}))
}
