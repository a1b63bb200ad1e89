package domain

import "errors"

// Domain errors represent error conditions in the dispatch core.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("syncdispatch: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("syncdispatch: not running")

	// ErrInvalidConfig wraps configuration validation failures so callers can
	// errors.Is against it regardless of which field failed.
	ErrInvalidConfig = errors.New("syncdispatch: invalid configuration")
)
