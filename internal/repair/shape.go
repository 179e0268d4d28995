package repair

import (
	"reflect"
	"sync"

	ogorek "github.com/kisielk/og-rek"

	"github.com/hengadev/miscutils/internal/pickle"
)

// Shape is the container category a value belongs to.
type Shape int

const (
	// ShapeNone marks values that are not containers.
	ShapeNone Shape = iota
	// ShapeMapping is a map with values, updated in place on the copy.
	ShapeMapping
	// ShapeSet is a map[K]struct{}; only keys are repaired.
	ShapeSet
	// ShapeList is a slice, updated in place on the copy.
	ShapeList
	// ShapeTuple is an array or an ogórek tuple, rebuilt from repaired members.
	ShapeTuple
)

func (s Shape) String() string {
	switch s {
	case ShapeMapping:
		return "mapping"
	case ShapeSet:
		return "set"
	case ShapeList:
		return "list"
	case ShapeTuple:
		return "tuple"
	}
	return "none"
}

var (
	tupleType  = reflect.TypeOf(ogorek.Tuple{})
	emptyType  = reflect.TypeOf(struct{}{})
	lockerType = reflect.TypeOf((*sync.Locker)(nil)).Elem()
)

// ShapeOf classifies t. Strings and byte slices or arrays are atomic.
func ShapeOf(t reflect.Type) Shape {
	if t == tupleType {
		return ShapeTuple
	}
	switch t.Kind() {
	case reflect.Map:
		if t.Elem() == emptyType {
			return ShapeSet
		}
		return ShapeMapping
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return ShapeNone
		}
		return ShapeList
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return ShapeNone
		}
		return ShapeTuple
	}
	return ShapeNone
}

// IsEndpoint reports whether v can hold no repairable members: it has no
// attribute storage and is not a container. Interfaces are judged by their
// dynamic value.
func IsEndpoint(v reflect.Value) bool {
	for v.Kind() == reflect.Interface {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return true
	}
	return !hasAttributes(v) && ShapeOf(v.Type()) == ShapeNone
}

// hasAttributes reports whether v stores members by name: a struct with
// exported fields, directly or behind a pointer, or a non-nil pointer to any
// other value, which boxes one slot.
func hasAttributes(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Struct:
		return len(pickle.Fields(v.Type())) > 0
	case reflect.Pointer:
		if v.IsNil() {
			return false
		}
		if v.Type().Elem().Kind() == reflect.Struct {
			return len(pickle.Fields(v.Type().Elem())) > 0
		}
		return true
	}
	return false
}

// holdsLock reports whether copying a value of type t copies a lock, using
// the same rule as vet's copylocks check.
func holdsLock(t reflect.Type) bool {
	return holdsLockSeen(t, map[reflect.Type]bool{})
}

func holdsLockSeen(t reflect.Type, seen map[reflect.Type]bool) bool {
	if seen[t] {
		return false
	}
	seen[t] = true

	if t.Kind() == reflect.Struct && reflect.PointerTo(t).Implements(lockerType) {
		return true
	}
	switch t.Kind() {
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if holdsLockSeen(t.Field(i).Type, seen) {
				return true
			}
		}
	case reflect.Array:
		return holdsLockSeen(t.Elem(), seen)
	}
	return false
}
