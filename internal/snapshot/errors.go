package snapshot

import "errors"

// Snapshot errors.
var (
	// ErrMalformed indicates the input is not a JSON object of the expected shape.
	ErrMalformed = errors.New("snapshot: malformed")

	// ErrMissingDispatcher indicates the dispatcher section is absent or null.
	ErrMissingDispatcher = errors.New("snapshot: missing dispatcher section")

	// ErrInvalidKey indicates a store key that cannot be used as a file name.
	ErrInvalidKey = errors.New("snapshot: invalid key")
)
