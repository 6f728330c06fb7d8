// Package action provides the deferred completion type returned by action
// functions.
//
// A Completion settles exactly once, either resolved with a value or rejected
// with an error. The error passed to Reject is the error observed by every
// waiter: it is never wrapped or replaced.
package action

import (
	"context"
	"sync"
)

// Status is the settlement state of a Completion.
type Status uint8

const (
	// StatusPending indicates the completion has not settled yet.
	StatusPending Status = iota
	// StatusResolved indicates the completion settled with a value.
	StatusResolved
	// StatusRejected indicates the completion settled with an error.
	StatusRejected
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Completion is the deferred result of an action.
// It is safe for concurrent use.
type Completion struct {
	mu     sync.Mutex
	done   chan struct{}
	status Status
	value  any
	err    error

	callbacks []func(any, error)
}

// New returns a pending completion together with its resolve and reject
// functions. Only the first call to either function has an effect.
func New() (c *Completion, resolve func(any), reject func(error)) {
	c = &Completion{done: make(chan struct{})}
	return c, c.resolve, c.reject
}

// Resolved returns a completion already resolved with v.
func Resolved(v any) *Completion {
	c, resolve, _ := New()
	resolve(v)
	return c
}

// Rejected returns a completion already rejected with err.
func Rejected(err error) *Completion {
	c, _, reject := New()
	reject(err)
	return c
}

// FromResult adapts a plain (value, error) return into a settled completion.
func FromResult(v any, err error) *Completion {
	if err != nil {
		return Rejected(err)
	}
	return Resolved(v)
}

// Go runs fn on a new goroutine and returns a completion settled with its
// result.
func Go(fn func() (any, error)) *Completion {
	c, resolve, reject := New()
	go func() {
		v, err := fn()
		if err != nil {
			reject(err)
			return
		}
		resolve(v)
	}()
	return c
}

func (c *Completion) resolve(v any) {
	c.settle(StatusResolved, v, nil)
}

func (c *Completion) reject(err error) {
	c.settle(StatusRejected, nil, err)
}

func (c *Completion) settle(status Status, v any, err error) {
	c.mu.Lock()
	if c.status != StatusPending {
		c.mu.Unlock()
		return
	}
	c.status = status
	c.value = v
	c.err = err
	callbacks := c.callbacks
	c.callbacks = nil
	close(c.done)
	c.mu.Unlock()

	// Callbacks run outside the lock so they may inspect the completion.
	for _, cb := range callbacks {
		cb(v, err)
	}
}

// Done returns a channel closed once the completion settles.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Status returns the current settlement state.
func (c *Completion) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Result returns the settled value and error.
// The final result is false while the completion is still pending.
func (c *Completion) Result() (any, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusPending {
		return nil, nil, false
	}
	return c.value, c.err, true
}

// Await blocks until the completion settles or ctx is done.
// Cancelling ctx only abandons the wait; the action keeps running.
func (c *Completion) Await(ctx context.Context) (any, error) {
	select {
	case <-c.done:
		v, err, _ := c.Result()
		return v, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Then registers fn to be called with the settled result.
// If the completion has already settled, fn is called immediately on the
// calling goroutine; otherwise it runs on the goroutine that settles it.
func (c *Completion) Then(fn func(v any, err error)) {
	c.mu.Lock()
	if c.status == StatusPending {
		c.callbacks = append(c.callbacks, fn)
		c.mu.Unlock()
		return
	}
	v, err := c.value, c.err
	c.mu.Unlock()
	fn(v, err)
}
