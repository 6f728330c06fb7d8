// Package lua provides the sandboxed Lua runtime used by script plugins.
//
// This package wraps the gopher-lua library to provide:
//   - Sandboxed Lua state management
//   - Go-Lua value conversion
//   - Execution timeouts
//
// # State
//
// The State type manages a Lua runtime with the io, os and debug
// libraries removed:
//
//	state, err := lua.NewState(
//	    lua.WithExecutionTimeout(time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer state.Close()
//
//	if err := state.DoString(`function double(n) return n * 2 end`); err != nil {
//	    log.Fatal(err)
//	}
//	results, err := state.Call("double", 21)
//
// Scripts that are loaded into many states should be compiled once with
// Compile and run with DoProto.
//
// # Sandbox
//
// The Sandbox restricts Lua code execution by:
//   - Removing functions that load code (dofile, loadfile, load)
//   - Clearing package search paths
//   - Limiting require to the built-in safe libraries and preloaded modules
//
// # Bridge
//
// The Bridge converts values in both directions. Lua tables with
// contiguous integer keys become []any, other tables become map[string]any.
// Integral numbers become int64.
package lua
