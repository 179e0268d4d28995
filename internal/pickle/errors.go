package pickle

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedType is returned for values the stream cannot carry:
	// non-nil channels, funcs and unsafe pointers, and structs whose fields
	// are all unexported.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrUnregisteredType is returned when a named type travels through an
	// interface slot without having been registered.
	ErrUnregisteredType = errors.New("unregistered type")

	// ErrDepthExceeded is returned when a graph nests deeper than the codec limit.
	ErrDepthExceeded = errors.New("maximum depth exceeded")

	// ErrMalformedStream is returned when decoding meets a cell it does not expect.
	ErrMalformedStream = errors.New("malformed stream")

	// ErrDuplicateName is returned when a registry name is already bound to another type.
	ErrDuplicateName = errors.New("duplicate registered name")
)

func unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedType, fmt.Sprintf(format, args...))
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedStream, fmt.Sprintf(format, args...))
}
