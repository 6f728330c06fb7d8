package lua

import (
	"encoding/json"
	"reflect"
	"testing"

	glua "github.com/yuin/gopher-lua"
)

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	L := glua.NewState()
	t.Cleanup(L.Close)
	return NewBridge(L)
}

func TestBridgeToGoValue(t *testing.T) {
	b := newTestBridge(t)

	tests := []struct {
		name     string
		input    glua.LValue
		expected any
	}{
		{"nil", glua.LNil, nil},
		{"bool", glua.LBool(true), true},
		{"integer", glua.LNumber(42), int64(42)},
		{"float", glua.LNumber(1.5), 1.5},
		{"string", glua.LString("hi"), "hi"},
		{"function", b.L.NewFunction(func(*glua.LState) int { return 0 }), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.ToGoValue(tt.input); got != tt.expected {
				t.Errorf("ToGoValue() = %v (%T), expected %v (%T)", got, got, tt.expected, tt.expected)
			}
		})
	}
}

func TestBridgeToGoValueTable(t *testing.T) {
	b := newTestBridge(t)

	arr := b.L.NewTable()
	arr.RawSetInt(1, glua.LString("a"))
	arr.RawSetInt(2, glua.LString("b"))
	if got := b.ToGoValue(arr); !reflect.DeepEqual(got, []any{"a", "b"}) {
		t.Errorf("array table = %v", got)
	}

	obj := b.L.NewTable()
	obj.RawSetString("name", glua.LString("x"))
	obj.RawSetString("items", arr)
	expected := map[string]any{"name": "x", "items": []any{"a", "b"}}
	if got := b.ToGoValue(obj); !reflect.DeepEqual(got, expected) {
		t.Errorf("object table = %v", got)
	}

	// Sparse arrays are maps
	sparse := b.L.NewTable()
	sparse.RawSetInt(1, glua.LTrue)
	sparse.RawSetInt(3, glua.LTrue)
	if _, ok := b.ToGoValue(sparse).(map[string]any); !ok {
		t.Error("sparse table should convert to a map")
	}

	// Empty tables are maps so they encode as JSON objects
	if got, ok := b.ToGoValue(b.L.NewTable()).(map[string]any); !ok || len(got) != 0 {
		t.Errorf("empty table = %v", got)
	}
}

func TestBridgeCircularTable(t *testing.T) {
	b := newTestBridge(t)

	self := b.L.NewTable()
	self.RawSetString("self", self)

	got, ok := b.ToGoValue(self).(map[string]any)
	if !ok {
		t.Fatal("expected map")
	}
	if got["self"] != nil {
		t.Errorf("circular reference = %v, expected nil", got["self"])
	}
}

func TestBridgeToLuaValue(t *testing.T) {
	b := newTestBridge(t)

	type point struct {
		X      int    `json:"x"`
		Label  string `json:"label,omitempty"`
		Hidden string `json:"-"`
		secret int
	}

	tests := []struct {
		name     string
		input    any
		expected any // after converting back
	}{
		{"nil", nil, nil},
		{"int", 7, int64(7)},
		{"uint8", uint8(3), int64(3)},
		{"float32", float32(0.5), 0.5},
		{"json number", json.Number("12"), int64(12)},
		{"bytes", []byte("raw"), "raw"},
		{"slice", []string{"a", "b"}, []any{"a", "b"}},
		{"map", map[string]int{"n": 1}, map[string]any{"n": int64(1)}},
		{"nested", map[string]any{"list": []any{1, "x"}}, map[string]any{"list": []any{int64(1), "x"}}},
		{"struct", point{X: 1, Label: "p", Hidden: "h"}, map[string]any{"x": int64(1), "label": "p"}},
		{"pointer", &point{X: 2}, map[string]any{"x": int64(2), "label": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.ToGoValue(b.ToLuaValue(tt.input))
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("round trip = %#v, expected %#v", got, tt.expected)
			}
		})
	}
}

func TestBridgeUserData(t *testing.T) {
	b := newTestBridge(t)
	ch := make(chan int)

	lv := b.ToLuaValue(ch)
	if _, ok := lv.(*glua.LUserData); !ok {
		t.Fatalf("ToLuaValue(chan) = %T, expected userdata", lv)
	}
	if got := b.ToGoValue(lv); got != any(ch) {
		t.Error("userdata should convert back to the original value")
	}
}

func TestBridgeWrapGoFunc(t *testing.T) {
	b := newTestBridge(t)

	b.L.SetGlobal("sum", b.L.NewFunction(b.WrapGoFunc(func(args []any) (any, error) {
		var total int64
		for _, a := range args {
			total += a.(int64)
		}
		return total, nil
	})))

	if err := b.L.DoString(`result = sum(1, 2, 3)`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if v := b.L.GetGlobal("result"); v != glua.LNumber(6) {
		t.Errorf("result = %v, expected 6", v)
	}
}
