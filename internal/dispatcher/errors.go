package dispatcher

import (
	"errors"
	"fmt"
)

// Dispatcher errors.
var (
	// ErrStoreNotFound indicates no store is registered under the name.
	ErrStoreNotFound = errors.New("dispatcher: store not found")

	// ErrDuplicateStore indicates a store name is already registered.
	ErrDuplicateStore = errors.New("dispatcher: store already registered")

	// ErrInvalidStore indicates a registration with an empty name or nil factory.
	ErrInvalidStore = errors.New("dispatcher: invalid store registration")

	// ErrNestedDispatch indicates a handler called Dispatch on its own instance.
	ErrNestedDispatch = errors.New("dispatcher: cannot dispatch while another dispatch is in progress")

	// ErrInvalidAction indicates the action name is empty.
	ErrInvalidAction = errors.New("dispatcher: invalid action")

	// ErrPanic indicates a store handler panicked.
	ErrPanic = errors.New("dispatcher: handler panic")

	// ErrInvalidState indicates dehydrated dispatcher state could not be decoded.
	ErrInvalidState = errors.New("dispatcher: invalid state")
)

// HandlerError reports a failure inside a store handler.
type HandlerError struct {
	Store  string // Store whose handler failed
	Action string // Action being dispatched
	Err    error  // Underlying error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("dispatcher: store %q handling %q: %v", e.Store, e.Action, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
