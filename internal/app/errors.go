// Package app provides the Application, the long-lived factory for
// per-request contexts.
package app

import (
	"errors"
	"fmt"

	"github.com/dshills/isoflux/internal/fluxctx"
)

// Application errors.
var (
	// ErrFrozen indicates the application can no longer be configured
	// because a context has already been created from it.
	ErrFrozen = errors.New("application is frozen")

	// ErrInvalidStore indicates a store entry without a name or factory.
	ErrInvalidStore = errors.New("invalid store registration")
)

// ConfigurationError reports an invalid plugin registration.
type ConfigurationError = fluxctx.ConfigurationError

// Rehydration stages reported by RehydrationError.
const (
	StageParse   = "parse"
	StageContext = "context"
	StageRestore = "restore"
)

// RehydrationError reports a failure to rebuild a context from a snapshot.
type RehydrationError struct {
	Stage string // One of StageParse, StageContext or StageRestore
	Err   error  // Underlying error
}

func (e *RehydrationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("rehydrate: %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("rehydrate: %s", e.Stage)
}

func (e *RehydrationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is implements errors.Is for RehydrationError.
// Matches both the wrapper itself and the wrapped error.
func (e *RehydrationError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*RehydrationError); ok {
		return e == t
	}
	return errors.Is(e.Err, target)
}
