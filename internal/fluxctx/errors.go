package fluxctx

import (
	"errors"
	"fmt"

	"github.com/dshills/isoflux/internal/plugin"
)

// Plugin registration errors.
var (
	// ErrPluginNameRequired is returned when plugging a nil or unnamed plugin.
	ErrPluginNameRequired = plugin.ErrNameRequired

	// ErrDuplicatePlugin is returned when a plugin name is already in use.
	ErrDuplicatePlugin = plugin.ErrDuplicate
)

// ConfigurationError reports an invalid plugin or context setup.
type ConfigurationError struct {
	Op     string // Operation that failed (e.g., "plug")
	Plugin string // Plugin name, empty when unknown
	Err    error  // Underlying error
}

func (e *ConfigurationError) Error() string {
	if e.Plugin != "" {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Plugin, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

var (
	// ErrNilAction is returned by ExecuteAction when no action function is given.
	ErrNilAction = errors.New("action function is nil")

	// ErrNoState may be returned by Dehydrator.Dehydrate to leave the
	// plugin out of the snapshot.
	ErrNoState = errors.New("plugin has no state")
)
