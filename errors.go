package tsync

import "errors"

var (
	// ErrInvalidArgument is returned when a primitive is constructed with
	// parameters it cannot honor, such as a barrier with no parties.
	ErrInvalidArgument = errors.New("tsync: invalid argument")

	// ErrResource wraps a failure to allocate the locking substrate.
	ErrResource = errors.New("tsync: resource allocation failed")

	// ErrTimeout is returned when a deadline passed before the lock could be
	// acquired. The lock is not held by the caller when it is returned.
	ErrTimeout = errors.New("tsync: lock acquisition timed out")
)
