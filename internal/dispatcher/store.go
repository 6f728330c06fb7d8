package dispatcher

import "encoding/json"

// DefaultHandler is the Handlers key that receives actions without an exact handler.
const DefaultHandler = "*"

// HandlerFunc handles one dispatched action payload.
type HandlerFunc func(payload any) error

// Store is a unit of state owned by a dispatcher instance.
type Store interface {
	// Handlers maps action names to the store's handlers.
	// A store that only serves reads may return nil.
	Handlers() map[string]HandlerFunc
}

// Dehydrator is implemented by stores whose state survives serialization.
// The returned value must be JSON-encodable.
type Dehydrator interface {
	Dehydrate() (any, error)
}

// Rehydrator is implemented by stores that can restore serialized state.
type Rehydrator interface {
	Rehydrate(state json.RawMessage) error
}

// Env is what a store sees of the context that owns it.
type Env interface {
	// Capability returns a named capability of the owning context's store view.
	Capability(name string) (any, bool)
}

// StoreFactory creates a store for one dispatcher instance.
// It runs while the instance is locked and must not call GetStore.
type StoreFactory func(env Env) Store
