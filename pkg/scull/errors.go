package scull

import (
	"errors"
)

// Sentinel errors.
var (
	// ErrInvalidConfig is returned by New and Config.Validate for
	// non-positive sizes. Nothing is allocated when it is returned.
	ErrInvalidConfig = errors.New("scull: invalid config")

	// ErrOutOfMemory is returned by New when storage for a channel could not
	// be allocated. All channels allocated before the failure are released.
	ErrOutOfMemory = errors.New("scull: out of memory")

	// ErrNoSuchInstance is returned for an index or name outside the table,
	// a closed handle, or a table that has been destroyed.
	ErrNoSuchInstance = errors.New("scull: no such instance")

	// ErrUnsupportedCommand is returned by Handle.Query for unknown commands.
	ErrUnsupportedCommand = errors.New("scull: unsupported command")
)
