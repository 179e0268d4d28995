package serialization

import (
	"fmt"
	"strings"

	"github.com/hengadev/miscutils/internal/pickle"
)

// CodecType represents the wire format a serializer writes.
type CodecType string

const (
	// Pickle writes a Python pickle stream that keeps types, shared
	// references and cycles.
	Pickle CodecType = "pickle"
	// JSON writes plain JSON through encoding/json.
	JSON CodecType = "json"
)

// IsValid checks if the codec type is supported
func (c CodecType) IsValid() bool {
	switch c {
	case Pickle, JSON:
		return true
	default:
		return false
	}
}

// New creates a codec of this type. The registry is only used by Pickle; a
// nil registry gets the built-in types only.
func (c CodecType) New(reg *pickle.Registry, opts ...pickle.Option) Codec {
	switch c {
	case Pickle:
		return pickle.New(reg, opts...)
	case JSON:
		return JSONCodec{}
	default:
		return nil
	}
}

// String returns the string representation of the codec type
func (c CodecType) String() string {
	return string(c)
}

// ParseCodecType parses a string into a CodecType and validates it
func ParseCodecType(s string) (CodecType, error) {
	codecType := CodecType(strings.ToLower(strings.TrimSpace(s)))

	if !codecType.IsValid() {
		return "", fmt.Errorf("invalid codec type '%s': must be one of [%s, %s]",
			s, Pickle, JSON)
	}

	return codecType, nil
}

// AllCodecTypes returns all supported codec types
func AllCodecTypes() []CodecType {
	return []CodecType{Pickle, JSON}
}
