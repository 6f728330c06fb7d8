package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// Well-known top-level keys.
const (
	KeyDispatcher = "dispatcher"
	KeyPlugins    = "plugins"
)

// Snapshot is the dehydrated state of a context.
type Snapshot struct {
	// Dispatcher is the dispatcher's own serialized state.
	Dispatcher json.RawMessage

	// Plugins maps plugin names to their serialized state.
	// Only plugins that dehydrate appear here.
	Plugins map[string]json.RawMessage

	// Reserved holds top-level keys other than dispatcher and plugins.
	Reserved map[string]json.RawMessage
}

// New creates a snapshot with the given dispatcher state and no plugins.
func New(dispatcher json.RawMessage) *Snapshot {
	return &Snapshot{
		Dispatcher: dispatcher,
		Plugins:    make(map[string]json.RawMessage),
	}
}

// SetPlugin encodes state and stores it under name.
func (s *Snapshot) SetPlugin(name string, state any) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode plugin %q state: %w", name, err)
	}
	if s.Plugins == nil {
		s.Plugins = make(map[string]json.RawMessage)
	}
	s.Plugins[name] = raw
	return nil
}

// Plugin returns the raw state stored for name.
func (s *Snapshot) Plugin(name string) (json.RawMessage, bool) {
	if s == nil || s.Plugins == nil {
		return nil, false
	}
	raw, ok := s.Plugins[name]
	return raw, ok
}

// DecodePlugin decodes the state stored for name into v.
// It returns false if no state is stored for name.
func (s *Snapshot) DecodePlugin(name string, v any) (bool, error) {
	raw, ok := s.Plugin(name)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode plugin %q state: %w", name, err)
	}
	return true, nil
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := &Snapshot{
		Dispatcher: cloneRaw(s.Dispatcher),
		Plugins:    cloneRawMap(s.Plugins),
		Reserved:   cloneRawMap(s.Reserved),
	}
	if c.Plugins == nil {
		c.Plugins = make(map[string]json.RawMessage)
	}
	return c
}

// MarshalJSON encodes the snapshot in its wire form.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if len(s.Dispatcher) == 0 {
		return nil, ErrMissingDispatcher
	}

	// Reserved keys first; the well-known keys are then set on top, so a
	// reserved entry can never shadow them.
	out := []byte("{}")
	if len(s.Reserved) > 0 {
		reserved := make(map[string]json.RawMessage, len(s.Reserved))
		for k, v := range s.Reserved {
			if k == KeyDispatcher || k == KeyPlugins {
				continue
			}
			reserved[k] = v
		}
		var err error
		if out, err = json.Marshal(reserved); err != nil {
			return nil, fmt.Errorf("encode reserved keys: %w", err)
		}
	}

	plugins := s.Plugins
	if plugins == nil {
		plugins = map[string]json.RawMessage{}
	}
	pluginsRaw, err := json.Marshal(plugins)
	if err != nil {
		return nil, fmt.Errorf("encode plugins: %w", err)
	}

	if out, err = sjson.SetRawBytes(out, KeyDispatcher, s.Dispatcher); err != nil {
		return nil, fmt.Errorf("encode dispatcher: %w", err)
	}
	if out, err = sjson.SetRawBytes(out, KeyPlugins, pluginsRaw); err != nil {
		return nil, fmt.Errorf("encode plugins: %w", err)
	}
	return out, nil
}

// UnmarshalJSON decodes the wire form, with the same validation as Parse.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

// Parse decodes and validates a serialized snapshot.
func Parse(data []byte) (*Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected object, got %s", ErrMalformed, root.Type)
	}

	s := &Snapshot{Plugins: make(map[string]json.RawMessage)}
	var parseErr error
	root.ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case KeyDispatcher:
			if value.Type != gjson.Null {
				s.Dispatcher = json.RawMessage(value.Raw)
			}
		case KeyPlugins:
			parseErr = parsePlugins(value, s.Plugins)
		default:
			if s.Reserved == nil {
				s.Reserved = make(map[string]json.RawMessage)
			}
			s.Reserved[key.String()] = json.RawMessage(value.Raw)
		}
		return parseErr == nil
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(s.Dispatcher) == 0 {
		return nil, ErrMissingDispatcher
	}
	return s, nil
}

func parsePlugins(value gjson.Result, into map[string]json.RawMessage) error {
	if value.Type == gjson.Null {
		return nil
	}
	if !value.IsObject() {
		return fmt.Errorf("%w: plugins must be an object, got %s", ErrMalformed, value.Type)
	}
	var err error
	value.ForEach(func(name, state gjson.Result) bool {
		n := name.String()
		if _, dup := into[n]; dup {
			err = fmt.Errorf("%w: duplicate plugin %q", ErrMalformed, n)
			return false
		}
		into[n] = json.RawMessage(state.Raw)
		return true
	})
	return err
}

// FromValue converts any supported input into a snapshot.
// Accepted inputs are *Snapshot, Snapshot, []byte, json.RawMessage, string,
// and plain JSON-compatible Go values such as map[string]any.
func FromValue(v any) (*Snapshot, error) {
	switch in := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil input", ErrMalformed)
	case *Snapshot:
		if in == nil {
			return nil, fmt.Errorf("%w: nil snapshot", ErrMalformed)
		}
		if len(in.Dispatcher) == 0 {
			return nil, ErrMissingDispatcher
		}
		return in.Clone(), nil
	case Snapshot:
		return FromValue(&in)
	case []byte:
		return Parse(in)
	case json.RawMessage:
		return Parse(in)
	case string:
		return Parse([]byte(in))
	default:
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Parse(data)
	}
}

// Pretty returns the indented wire form of s.
func Pretty(s *Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return pretty.Pretty(data), nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

func cloneRawMap(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = cloneRaw(v)
	}
	return out
}
