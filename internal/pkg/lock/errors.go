package lock

import "errors"

// Lock-related errors.
var (
	// ErrLockTimeout is returned when a chat lock cannot be acquired within the timeout period.
	ErrLockTimeout = errors.New("chat lock acquisition timeout")
)
