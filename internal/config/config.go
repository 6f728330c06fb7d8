package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/dshills/isoflux/internal/dispatcher"
	"github.com/dshills/isoflux/internal/logging"
	luart "github.com/dshills/isoflux/internal/plugin/lua"
)

// Config is the isoflux runtime configuration.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Lua        LuaConfig        `yaml:"lua"`
	Plugins    []PluginSpec     `yaml:"plugins"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// SnapshotConfig configures where snapshots are stored.
type SnapshotConfig struct {
	Dir string `yaml:"dir"`
}

// DispatcherConfig mirrors dispatcher.Config.
type DispatcherConfig struct {
	RecoverPanics bool `yaml:"recover_panics"`
	Metrics       bool `yaml:"metrics"`
}

// LuaConfig configures Lua plugins.
type LuaConfig struct {
	// Timeout bounds each call into a script. Zero disables the bound.
	Timeout time.Duration `yaml:"timeout"`
}

// envOverrides holds the settings that may come from the environment.
// Pointer fields stay nil when the variable is unset.
type envOverrides struct {
	LogLevel      *string        `env:"ISOFLUX_LOG_LEVEL"`
	SnapshotDir   *string        `env:"ISOFLUX_SNAPSHOT_DIR"`
	RecoverPanics *bool          `env:"ISOFLUX_RECOVER_PANICS"`
	LuaTimeout    *time.Duration `env:"ISOFLUX_LUA_TIMEOUT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dc := dispatcher.DefaultConfig()
	return &Config{
		Log:      LogConfig{Level: "info"},
		Snapshot: SnapshotConfig{Dir: "snapshots"},
		Dispatcher: DispatcherConfig{
			RecoverPanics: dc.RecoverFromPanic,
			Metrics:       dc.EnableMetrics,
		},
		Lua: LuaConfig{Timeout: luart.DefaultExecutionTimeout},
	}
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment. An empty path skips the file layer.
// The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return &ParseError{Path: path, Err: err}
	}

	base := filepath.Dir(path)
	for i := range c.Plugins {
		if p := c.Plugins[i].Path; p != "" && !filepath.IsAbs(p) {
			c.Plugins[i].Path = filepath.Join(base, p)
		}
	}
	return nil
}

// LoadEnv overlays ISOFLUX_* environment variables onto c.
func (c *Config) LoadEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.LogLevel != nil {
		c.Log.Level = *o.LogLevel
	}
	if o.SnapshotDir != nil {
		c.Snapshot.Dir = *o.SnapshotDir
	}
	if o.RecoverPanics != nil {
		c.Dispatcher.RecoverPanics = *o.RecoverPanics
	}
	if o.LuaTimeout != nil {
		c.Lua.Timeout = *o.LuaTimeout
	}
	return nil
}

// Validate checks the configuration and returns every problem found.
// Each problem is a *ValidationError.
func (c *Config) Validate() error {
	var errs []error
	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, &ValidationError{Path: "log.level", Message: "unknown level", Value: c.Log.Level})
	}
	if c.Lua.Timeout < 0 {
		errs = append(errs, &ValidationError{Path: "lua.timeout", Message: "must not be negative", Value: c.Lua.Timeout})
	}
	for i, p := range c.Plugins {
		errs = append(errs, p.validate(fmt.Sprintf("plugins[%d]", i))...)
	}
	return errors.Join(errs...)
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Log.Level)
}

// DispatcherConfig returns the dispatcher configuration.
func (c *Config) DispatcherConfig() dispatcher.Config {
	return dispatcher.Config{
		RecoverFromPanic: c.Dispatcher.RecoverPanics,
		EnableMetrics:    c.Dispatcher.Metrics,
	}
}
