package cache

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyKey   = errors.New("cache key must not be empty")
	ErrInvalidTTL = errors.New("cache ttl must be positive")
	// ErrInvalidTarget is returned when Get is given something other than a non-nil pointer.
	ErrInvalidTarget = errors.New("cache decode target must be a non-nil pointer")
)

// TransportError is returned when the store can't be reached or the command fails or times out.
type TransportError struct {
	Op  string
	Key string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("cache %s %q: transport: %s", e.Op, e.Key, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SerializationError is returned when a value can't be encoded, or a stored payload can't be
// decoded into the requested type.
type SerializationError struct {
	Op  string
	Key string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cache %s %q: serialization: %s", e.Op, e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// isCallerError reports whether err came from invalid arguments rather than the store.
func isCallerError(err error) bool {
	return errors.Is(err, ErrEmptyKey) || errors.Is(err, ErrInvalidTTL) || errors.Is(err, ErrInvalidTarget)
}
