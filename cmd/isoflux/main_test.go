package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/isoflux/internal/app"
	"github.com/dshills/isoflux/internal/fluxctx"
)

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunVersion(t *testing.T) {
	code, out, _ := runCmd(t, "-version")

	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out, "isoflux dev") {
		t.Errorf("expected version output, got %q", out)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	t.Setenv("ISOFLUX_SNAPSHOT_DIR", t.TempDir())

	code, _, errOut := runCmd(t, "launch")
	if code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
	if !strings.Contains(errOut, `unknown command "launch"`) {
		t.Errorf("expected unknown command error, got %q", errOut)
	}
}

func TestRunInvalidLogLevel(t *testing.T) {
	if code, _, _ := runCmd(t, "-log-level", "loud", "demo"); code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
}

func TestRunDemoRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ISOFLUX_SNAPSHOT_DIR", dir)

	code, out, errOut := runCmd(t, "demo", "-key", "s1", "milk", "eggs")
	if code != 0 {
		t.Fatalf("demo: expected exit 0, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, `"text": "milk"`) {
		t.Errorf("expected snapshot on stdout, got %s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "s1.json")); err != nil {
		t.Fatalf("expected saved snapshot: %v", err)
	}

	code, out, errOut = runCmd(t, "inspect", "-key", "s1")
	if code != 0 {
		t.Fatalf("inspect: expected exit 0, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, "stores: todos") || !strings.Contains(out, "plugins: (none)") {
		t.Errorf("unexpected inspect summary: %s", out)
	}

	code, out, errOut = runCmd(t, "rehydrate", filepath.Join(dir, "s1.json"))
	if code != 0 {
		t.Fatalf("rehydrate: expected exit 0, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, "0. [x] milk") || !strings.Contains(out, "1. [ ] eggs") {
		t.Errorf("expected restored todos, got %s", out)
	}
}

func TestRunWithPlugins(t *testing.T) {
	dir := t.TempDir()
	script := `
name = "Greeter"
local greeting = "hello"
function dehydrate() return { greeting = greeting } end
function rehydrate(s) greeting = s.greeting end
`
	if err := os.WriteFile(filepath.Join(dir, "greeter.lua"), []byte(script), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	cfgPath := filepath.Join(dir, "isoflux.yaml")
	cfg := `
snapshot:
  dir: ` + filepath.Join(dir, "snaps") + `
plugins:
  - kind: dimensions
    dimensions:
      locale: en-US
  - kind: lua
    path: greeter.lua
  - kind: tracing
`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if code, _, errOut := runCmd(t, "-config", cfgPath, "demo", "-key", "s2"); code != 0 {
		t.Fatalf("demo: expected exit 0, got %d: %s", code, errOut)
	}

	code, out, errOut := runCmd(t, "-config", cfgPath, "inspect", "-key", "s2")
	if code != 0 {
		t.Fatalf("inspect: expected exit 0, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, "plugins: DimensionsPlugin, Greeter, TracingPlugin") {
		t.Errorf("unexpected plugin summary: %s", out)
	}
	if !strings.Contains(out, "traceparent") {
		t.Errorf("expected trace context in snapshot: %s", out)
	}

	code, out, errOut = runCmd(t, "-config", cfgPath, "rehydrate", "-key", "s2")
	if code != 0 {
		t.Fatalf("rehydrate: expected exit 0, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, "dimensions: map[locale:en-US]") {
		t.Errorf("expected restored dimensions, got %s", out)
	}
}

func TestRunDemoMetrics(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "isoflux.yaml")
	cfg := "snapshot:\n  dir: " + filepath.Join(dir, "snaps") + "\ndispatcher:\n  metrics: true\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	code, out, errOut := runCmd(t, "-config", cfgPath, "demo", "a", "b")
	if code != 0 {
		t.Fatalf("demo: expected exit 0, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, "dispatch todo.add: 2 dispatches, 2 handler calls, 0 errors") {
		t.Errorf("expected todo.add metrics, got %s", out)
	}
	if !strings.Contains(out, "dispatch todo.toggle: 1 dispatches") {
		t.Errorf("expected todo.toggle metrics, got %s", out)
	}
}

func TestRunDemoWithoutMetrics(t *testing.T) {
	t.Setenv("ISOFLUX_SNAPSHOT_DIR", t.TempDir())

	_, out, _ := runCmd(t, "demo")
	if strings.Contains(out, "dispatch todo.add") {
		t.Errorf("expected no metrics when disabled, got %s", out)
	}
}

func TestRehydrateMissingArgument(t *testing.T) {
	t.Setenv("ISOFLUX_SNAPSHOT_DIR", t.TempDir())

	if code, _, _ := runCmd(t, "rehydrate"); code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
}

func newTodoApp(t *testing.T) *app.Application {
	t.Helper()
	a, err := app.New(app.Options{
		Stores: []app.Store{{Name: todoStoreName, Factory: newTodoStore}},
	})
	if err != nil {
		t.Fatalf("app.New failed: %v", err)
	}
	return a
}

func TestTodoActionErrors(t *testing.T) {
	c := newTodoApp(t).CreateContext()
	ac := c.ActionContext()

	tests := []struct {
		name    string
		fn      fluxctx.ActionFunc
		payload any
		want    error
	}{
		{"empty text", addTodo, "", errEmptyTodo},
		{"wrong add payload", addTodo, 3, errBadTodoType},
		{"missing index", toggleTodo, 4, errNoSuchTodo},
		{"wrong toggle payload", toggleTodo, "0", errBadTodoType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ac.ExecuteAction(tt.fn, tt.payload).Await(context.Background())
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTodoStore(t *testing.T) {
	c := newTodoApp(t).CreateContext()
	ac := c.ActionContext()

	for _, text := range []string{"a", "b"} {
		if _, err := ac.ExecuteAction(addTodo, text).Await(context.Background()); err != nil {
			t.Fatalf("add %q failed: %v", text, err)
		}
	}
	if _, err := ac.ExecuteAction(toggleTodo, 1).Await(context.Background()); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	items, err := todos(ac)
	if err != nil {
		t.Fatalf("todos failed: %v", err)
	}
	if len(items) != 2 || items[0].Done || !items[1].Done {
		t.Errorf("unexpected todos: %+v", items)
	}
}
