package serialization

import "reflect"

// Codec converts object graphs to and from bytes. Besides the round trip, a
// codec can check single values in isolation so that a graph it rejects can
// be repaired member by member.
type Codec interface {
	// Marshal encodes v as the root of a graph.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes a graph written by Marshal.
	Unmarshal(data []byte) (any, error)

	// Check encodes v in the static type it carries and discards the result.
	Check(v reflect.Value) error

	// Describe reports whether values of type t can be stored behind an
	// interface and recovered with their type.
	Describe(t reflect.Type) error

	// Name identifies the codec in logs and metrics.
	Name() string
}
