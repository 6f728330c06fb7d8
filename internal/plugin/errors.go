package plugin

import "errors"

// Registry errors.
var (
	// ErrNameRequired is returned when a plugin has no name.
	ErrNameRequired = errors.New("plugin name is required")

	// ErrDuplicate is returned when a plugin name is already registered.
	ErrDuplicate = errors.New("plugin is already registered")

	// ErrNilPlugin is returned when a nil plugin is registered.
	ErrNilPlugin = errors.New("plugin is nil")
)
