package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/isoflux/internal/logging"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "isoflux.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LogLevel() != logging.LevelInfo {
		t.Errorf("expected info level, got %v", cfg.LogLevel())
	}
	if !cfg.Dispatcher.RecoverPanics {
		t.Error("expected panic recovery by default")
	}
	if cfg.Lua.Timeout != 5*time.Second {
		t.Errorf("expected 5s lua timeout, got %v", cfg.Lua.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Snapshot.Dir != "snapshots" {
		t.Errorf("expected default snapshot dir, got %q", cfg.Snapshot.Dir)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
snapshot:
  dir: /var/lib/isoflux
dispatcher:
  recover_panics: false
  metrics: true
lua:
  timeout: 250ms
plugins:
  - kind: dimensions
    dimensions:
      locale: en-US
  - kind: lua
    path: plugins/greeter.lua
  - kind: tracing
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel() != logging.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.LogLevel())
	}
	if cfg.Snapshot.Dir != "/var/lib/isoflux" {
		t.Errorf("expected /var/lib/isoflux, got %q", cfg.Snapshot.Dir)
	}
	dc := cfg.DispatcherConfig()
	if dc.RecoverFromPanic || !dc.EnableMetrics {
		t.Errorf("unexpected dispatcher config: %+v", dc)
	}
	if cfg.Lua.Timeout != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.Lua.Timeout)
	}
	if len(cfg.Plugins) != 3 {
		t.Fatalf("expected 3 plugins, got %d", len(cfg.Plugins))
	}
	if cfg.Plugins[0].Dimensions["locale"] != "en-US" {
		t.Errorf("expected locale en-US, got %v", cfg.Plugins[0].Dimensions)
	}
	expected := filepath.Join(filepath.Dir(path), "plugins", "greeter.lua")
	if cfg.Plugins[1].Path != expected {
		t.Errorf("expected relative path resolved to %q, got %q", expected, cfg.Plugins[1].Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestLoadParseError(t *testing.T) {
	path := writeConfig(t, "log: [unterminated")

	_, err := Load(path)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if pe.Path != path {
		t.Errorf("expected path %q, got %q", path, pe.Path)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	t.Setenv("ISOFLUX_LOG_LEVEL", "error")
	t.Setenv("ISOFLUX_SNAPSHOT_DIR", "/tmp/snaps")
	t.Setenv("ISOFLUX_RECOVER_PANICS", "false")
	t.Setenv("ISOFLUX_LUA_TIMEOUT", "1s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel() != logging.LevelError {
		t.Errorf("expected env to override file level, got %v", cfg.LogLevel())
	}
	if cfg.Snapshot.Dir != "/tmp/snaps" {
		t.Errorf("expected /tmp/snaps, got %q", cfg.Snapshot.Dir)
	}
	if cfg.Dispatcher.RecoverPanics {
		t.Error("expected env to disable panic recovery")
	}
	if cfg.Lua.Timeout != time.Second {
		t.Errorf("expected 1s, got %v", cfg.Lua.Timeout)
	}
}

func TestLoadEnvUnsetKeepsValues(t *testing.T) {
	cfg := Default()
	cfg.Snapshot.Dir = "custom"

	if err := cfg.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if cfg.Snapshot.Dir != "custom" {
		t.Errorf("expected unset env to keep value, got %q", cfg.Snapshot.Dir)
	}
}

func TestLoadEnvInvalid(t *testing.T) {
	t.Setenv("ISOFLUX_RECOVER_PANICS", "sometimes")

	if err := Default().LoadEnv(); err == nil {
		t.Error("expected error for invalid bool")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		paths  []string
	}{
		{"valid", func(*Config) {}, nil},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, []string{"log.level"}},
		{"negative timeout", func(c *Config) { c.Lua.Timeout = -time.Second }, []string{"lua.timeout"}},
		{"unknown kind", func(c *Config) {
			c.Plugins = []PluginSpec{{Kind: "magic"}}
		}, []string{"plugins[0].kind"}},
		{"lua without path", func(c *Config) {
			c.Plugins = []PluginSpec{{Kind: KindTracing}, {Kind: KindLua}}
		}, []string{"plugins[1].path"}},
		{"multiple", func(c *Config) {
			c.Log.Level = ""
			c.Plugins = []PluginSpec{{Kind: ""}}
		}, []string{"log.level", "plugins[0].kind"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()

			if len(tt.paths) == 0 {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("expected ErrValidationFailed, got %v", err)
			}
			joined, ok := err.(interface{ Unwrap() []error })
			if !ok {
				t.Fatalf("expected joined errors, got %T", err)
			}
			errs := joined.Unwrap()
			if len(errs) != len(tt.paths) {
				t.Fatalf("expected %d errors, got %d: %v", len(tt.paths), len(errs), err)
			}
			for i, e := range errs {
				var ve *ValidationError
				if !errors.As(e, &ve) || ve.Path != tt.paths[i] {
					t.Errorf("error %d: expected path %q, got %v", i, tt.paths[i], e)
				}
			}
		})
	}
}
