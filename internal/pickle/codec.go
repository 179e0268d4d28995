// Package pickle encodes Go object graphs as Python pickle streams.
//
// The stream is produced by github.com/kisielk/og-rek and holds a single
// list: ["miscutils/graph", 1, root]. Pointers, maps and slices are emitted
// once and referenced by id afterwards, so shared references and cycles are
// preserved across a round trip. Values stored in interfaces carry a type
// descriptor; named types must be registered to travel that way.
package pickle

import (
	"bytes"
	"fmt"
	"io"
	"reflect"

	ogorek "github.com/kisielk/og-rek"
)

// DefaultMaxDepth bounds how deeply a graph may nest.
const DefaultMaxDepth = 100000

// Codec is the pickle codec. The zero value is not usable; use New.
type Codec struct {
	reg      *Registry
	maxDepth int
}

// Option configures a Codec.
type Option func(*Codec)

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(c *Codec) {
		if depth > 0 {
			c.maxDepth = depth
		}
	}
}

// New returns a codec resolving interface types through reg. A nil reg gets
// a fresh NewRegistry.
func New(reg *Registry, opts ...Option) *Codec {
	if reg == nil {
		reg = NewRegistry()
	}
	c := &Codec{reg: reg, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns "pickle".
func (c *Codec) Name() string { return "pickle" }

// Registry returns the registry the codec resolves types through.
func (c *Codec) Registry() *Registry { return c.reg }

// Marshal encodes v as an interface value, so its dynamic type must be
// describable.
func (c *Codec) Marshal(v any) ([]byte, error) {
	root := reflect.ValueOf(&v).Elem()
	var buf bytes.Buffer
	if err := c.write(&buf, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Check runs the encoder on v in the static type v carries and discards the
// output. An interface-kind v needs a describable dynamic type; a concrete v
// does not.
func (c *Codec) Check(v reflect.Value) error {
	return c.write(io.Discard, v)
}

// Describe reports whether values of type t can sit in an interface slot.
func (c *Codec) Describe(t reflect.Type) error {
	_, err := c.reg.describe(t)
	return err
}

// Unmarshal decodes a stream written by Marshal.
func (c *Codec) Unmarshal(data []byte) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, malformed("decoder panic: %v", r)
		}
	}()

	raw, err := ogorek.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStream, err)
	}
	frame, err := list(raw, 3)
	if err != nil {
		return nil, err
	}
	if tag, _ := frame[0].(string); tag != streamTag {
		return nil, malformed("not a graph stream (tag %v)", frame[0])
	}
	version, err := toInt64(frame[1])
	if err != nil {
		return nil, err
	}
	if version != streamVersion {
		return nil, malformed("unsupported stream version %d", version)
	}

	var root any
	dec := newDecoder(c.reg, c.maxDepth)
	if err := dec.decode(frame[2], reflect.ValueOf(&root).Elem(), 0); err != nil {
		return nil, err
	}
	return root, nil
}

func (c *Codec) write(w io.Writer, v reflect.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = unsupported("encoder panic: %v", r)
		}
	}()

	cell, err := newEncoder(c.reg, c.maxDepth).encode(v, 0)
	if err != nil {
		return err
	}
	frame := []any{streamTag, int64(streamVersion), cell}
	return ogorek.NewEncoder(w).Encode(frame)
}
