package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dshills/isoflux/internal/dispatcher"
	"github.com/dshills/isoflux/internal/fluxctx"
	"github.com/dshills/isoflux/internal/plugins/tracing"
)

const todoStoreName = "todos"

// Actions handled by the todo store.
const (
	actionAddTodo    = "todo.add"
	actionToggleTodo = "todo.toggle"
)

var (
	errEmptyTodo   = errors.New("todo text is empty")
	errNoSuchTodo  = errors.New("no such todo")
	errBadTodoType = errors.New("unexpected payload type")
)

type todo struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// todoStore is the demo store: an ordered todo list.
type todoStore struct {
	Items []todo `json:"items"`
}

func newTodoStore(dispatcher.Env) dispatcher.Store {
	return &todoStore{}
}

func (s *todoStore) Handlers() map[string]dispatcher.HandlerFunc {
	return map[string]dispatcher.HandlerFunc{
		actionAddTodo: func(payload any) error {
			text, ok := payload.(string)
			if !ok {
				return fmt.Errorf("%w: %T", errBadTodoType, payload)
			}
			if text == "" {
				return errEmptyTodo
			}
			s.Items = append(s.Items, todo{Text: text})
			return nil
		},
		actionToggleTodo: func(payload any) error {
			i, ok := payload.(int)
			if !ok {
				return fmt.Errorf("%w: %T", errBadTodoType, payload)
			}
			if i < 0 || i >= len(s.Items) {
				return fmt.Errorf("%w: %d", errNoSuchTodo, i)
			}
			s.Items[i].Done = !s.Items[i].Done
			return nil
		},
	}
}

func (s *todoStore) Dehydrate() (any, error) {
	return s, nil
}

func (s *todoStore) Rehydrate(raw json.RawMessage) error {
	var st todoStore
	if err := json.Unmarshal(raw, &st); err != nil {
		return err
	}
	s.Items = st.Items
	return nil
}

func dispatchAction(name string) fluxctx.ActionFunc {
	return tracing.Traced(name, fluxctx.Sync(func(ac *fluxctx.ActionContext, payload any) (any, error) {
		return nil, ac.Dispatch(name, payload)
	}))
}

var (
	addTodo    = dispatchAction(actionAddTodo)
	toggleTodo = dispatchAction(actionToggleTodo)
)

// storeGetter is satisfied by the action, component and store views.
type storeGetter interface {
	GetStore(name string) (dispatcher.Store, error)
}

// todos returns the todo list held by the context behind v.
func todos(v storeGetter) ([]todo, error) {
	st, err := v.GetStore(todoStoreName)
	if err != nil {
		return nil, err
	}
	ts, ok := st.(*todoStore)
	if !ok {
		return nil, fmt.Errorf("store %q has type %T", todoStoreName, st)
	}
	return ts.Items, nil
}
