package dispatcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// Instance owns the stores of one context and routes actions to them.
type Instance struct {
	// mu guards stores, current and owner.
	mu sync.Mutex

	// dispatchMu serializes dispatches; concurrent callers wait their turn.
	dispatchMu sync.Mutex

	dispatcher *Dispatcher
	env        Env

	// Instantiated stores by name
	stores map[string]Store

	// Name of the action currently being dispatched, empty when idle
	current string

	// Goroutine running the current dispatch
	owner uint64
}

// state is the serialized form of an instance.
type state struct {
	Stores map[string]json.RawMessage `json:"stores"`
}

// GetStore returns the named store, creating it on first use.
func (i *Instance) GetStore(name string) (Store, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.storeLocked(name)
}

func (i *Instance) storeLocked(name string) (Store, error) {
	if s, ok := i.stores[name]; ok {
		return s, nil
	}
	f := i.dispatcher.registry.Get(name)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, name)
	}
	s := f(i.env)
	if s == nil {
		return nil, fmt.Errorf("%w: factory for %s returned nil", ErrInvalidStore, name)
	}
	i.stores[name] = s
	return s, nil
}

// Dispatch sends payload to every store handling actionName, in store
// registration order.
func (i *Instance) Dispatch(actionName string, payload any) error {
	if actionName == "" {
		return ErrInvalidAction
	}

	// A handler dispatching again runs on the goroutine that owns the
	// dispatch; waiting for dispatchMu there would deadlock.
	id := goroutineID()
	i.mu.Lock()
	if i.current != "" && i.owner == id {
		current := i.current
		i.mu.Unlock()
		return fmt.Errorf("%w: %q while dispatching %q", ErrNestedDispatch, actionName, current)
	}
	i.mu.Unlock()

	i.dispatchMu.Lock()
	defer i.dispatchMu.Unlock()

	i.mu.Lock()
	i.current = actionName
	i.owner = id

	type target struct {
		store string
		fn    HandlerFunc
	}
	var targets []target
	for _, name := range i.dispatcher.registry.List() {
		s, err := i.storeLocked(name)
		if err != nil {
			i.current, i.owner = "", 0
			i.mu.Unlock()
			return err
		}
		handlers := s.Handlers()
		fn, ok := handlers[actionName]
		if !ok {
			fn, ok = handlers[DefaultHandler]
		}
		if ok && fn != nil {
			targets = append(targets, target{store: name, fn: fn})
		}
	}
	i.mu.Unlock()

	// Handlers run without the lock so they may read other stores.
	defer func() {
		i.mu.Lock()
		i.current, i.owner = "", 0
		i.mu.Unlock()
	}()

	start := time.Now()
	var err error
	called := 0
	for _, t := range targets {
		called++
		if err = i.run(t.store, actionName, t.fn, payload); err != nil {
			break
		}
	}

	if m := i.dispatcher.metrics; m != nil {
		m.RecordDispatch(actionName, called, time.Since(start), err)
	}
	return err
}

// goroutineID returns the id of the calling goroutine, parsed from the
// "goroutine N [" header of its stack trace.
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if n := bytes.IndexByte(b, ' '); n > 0 {
		b = b[:n]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// run executes one handler, recovering panics when configured.
func (i *Instance) run(store, actionName string, fn HandlerFunc, payload any) (err error) {
	if i.dispatcher.config.RecoverFromPanic {
		defer func() {
			if r := recover(); r != nil {
				stack := make([]byte, 4096)
				n := runtime.Stack(stack, false)
				err = &HandlerError{
					Store:  store,
					Action: actionName,
					Err:    fmt.Errorf("%w: %v\n%s", ErrPanic, r, stack[:n]),
				}
				if m := i.dispatcher.metrics; m != nil {
					m.RecordPanic(actionName)
				}
			}
		}()
	}

	if herr := fn(payload); herr != nil {
		return &HandlerError{Store: store, Action: actionName, Err: herr}
	}
	return nil
}

// CurrentAction returns the name of the action being dispatched, or "".
func (i *Instance) CurrentAction() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current
}

// Dehydrate serializes every instantiated store that implements Dehydrator.
func (i *Instance) Dehydrate() (json.RawMessage, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	st := state{Stores: make(map[string]json.RawMessage)}
	for _, name := range i.dispatcher.registry.List() {
		s, ok := i.stores[name]
		if !ok {
			continue
		}
		d, ok := s.(Dehydrator)
		if !ok {
			continue
		}
		v, err := d.Dehydrate()
		if err != nil {
			return nil, fmt.Errorf("dehydrate store %q: %w", name, err)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode store %q: %w", name, err)
		}
		st.Stores[name] = raw
	}

	return json.Marshal(st)
}

// Rehydrate restores store state produced by Dehydrate.
// Stores named in the state but not registered are ignored.
func (i *Instance) Rehydrate(raw json.RawMessage) error {
	var st state
	if err := json.Unmarshal(raw, &st); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for _, name := range i.dispatcher.registry.List() {
		storeState, ok := st.Stores[name]
		if !ok {
			continue
		}
		s, err := i.storeLocked(name)
		if err != nil {
			return err
		}
		r, ok := s.(Rehydrator)
		if !ok {
			continue
		}
		if err := r.Rehydrate(storeState); err != nil {
			return fmt.Errorf("rehydrate store %q: %w", name, err)
		}
	}
	return nil
}
