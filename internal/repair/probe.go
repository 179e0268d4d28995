package repair

import (
	"reflect"
)

// Prober is the byte-level encoder the walker tests values against.
type Prober interface {
	// Check encodes v in the static type it carries and discards the result.
	Check(v reflect.Value) error
	// Describe reports whether a value of type t may sit in an interface slot.
	Describe(t reflect.Type) error
}

// Probe reports whether p encodes v without error. Any failure, panics
// included, counts as false.
func Probe(p Prober, v reflect.Value) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return p.Check(v) == nil
}

func describable(p Prober, t reflect.Type) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return p.Describe(t) == nil
}
