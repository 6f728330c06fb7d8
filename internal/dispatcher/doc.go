// Package dispatcher routes action payloads to stores and serializes store
// state.
//
// A Dispatcher is created once per application and holds store
// registrations. Each request context gets its own Instance, which owns the
// store objects for that context:
//
//	d := dispatcher.NewWithDefaults()
//	_ = d.RegisterStore("todo", newTodoStore)
//
//	inst := d.NewInstance(env)
//	_ = inst.Dispatch("todo.add", "write docs")
//	store, _ := inst.GetStore("todo")
//
// # Stores
//
// Stores are created lazily, on the first GetStore, Dispatch or Rehydrate
// that needs them, by calling the registered StoreFactory with the Env of the
// owning context. A store declares the actions it handles through Handlers;
// the "*" key receives every action that has no exact handler in that store.
//
// # Dispatch
//
// Dispatch calls each store's handler in registration order. Dispatching
// from inside a handler is rejected with ErrNestedDispatch. Dispatches from
// different goroutines wait for each other and run one at a time. The first
// handler error stops the dispatch and is returned wrapped in a
// *HandlerError.
//
// # State transfer
//
// Dehydrate serializes every instantiated store that implements Dehydrator:
//
//	{"stores": {"todo": {...}}}
//
// Rehydrate is the inverse; store names with no registration are ignored.
package dispatcher
