package pickle

import (
	"encoding"
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

const (
	streamTag     = "miscutils/graph"
	streamVersion = 1

	defTag = "def"
	refTag = "ref"
)

var (
	binaryMarshalerType   = reflect.TypeOf((*encoding.BinaryMarshaler)(nil)).Elem()
	binaryUnmarshalerType = reflect.TypeOf((*encoding.BinaryUnmarshaler)(nil)).Elem()
)

// identity names a reference-kind value. Two values with the same identity
// are the same object in the graph.
type identity struct {
	typ reflect.Type
	ptr uintptr
	len int
}

// encoder turns a reflect.Value into a tree of cells made only of nil, bool,
// int64, float64, string and []any. Reference kinds are emitted once and
// referenced by id afterwards, so the tree stays finite for cyclic graphs.
type encoder struct {
	reg      *Registry
	maxDepth int
	ids      map[identity]int64
	next     int64
}

func newEncoder(reg *Registry, maxDepth int) *encoder {
	return &encoder{reg: reg, maxDepth: maxDepth, ids: make(map[identity]int64)}
}

func (e *encoder) encode(v reflect.Value, depth int) (any, error) {
	if depth > e.maxDepth {
		return nil, fmt.Errorf("%w (%d)", ErrDepthExceeded, e.maxDepth)
	}
	if !v.IsValid() {
		return nil, nil
	}

	t := v.Type()
	if t.Kind() == reflect.Struct && isBinary(t) {
		return e.encodeBinary(v)
	}

	switch t.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		elem := v.Elem()
		desc, err := e.reg.describe(elem.Type())
		if err != nil {
			return nil, err
		}
		inner, err := e.encode(elem, depth+1)
		if err != nil {
			return nil, err
		}
		return []any{desc, inner}, nil

	case reflect.Bool:
		return v.Bool(), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return strconv.FormatUint(u, 10), nil
		}
		return int64(u), nil

	case reflect.Float32, reflect.Float64:
		return v.Float(), nil

	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		return []any{real(c), imag(c)}, nil

	case reflect.String:
		return v.String(), nil

	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			return base64.StdEncoding.EncodeToString(v.Bytes()), nil
		}
		return e.encodeRef(v, depth, e.encodeElems)

	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			buf := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(buf), v)
			return base64.StdEncoding.EncodeToString(buf), nil
		}
		return e.encodeElems(v, depth)

	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		return e.encodeRef(v, depth, e.encodeMap)

	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		return e.encodeRef(v, depth, func(p reflect.Value, depth int) (any, error) {
			return e.encode(p.Elem(), depth+1)
		})

	case reflect.Struct:
		return e.encodeStruct(v, depth)

	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if v.IsNil() {
			return nil, nil
		}
		return nil, unsupported("%s value of type %s", t.Kind(), t)
	}

	return nil, unsupported("kind %s", t.Kind())
}

// encodeRef emits ["def", id, body] on first sight of v and ["ref", id] after.
func (e *encoder) encodeRef(v reflect.Value, depth int, body func(reflect.Value, int) (any, error)) (any, error) {
	key, shared := identityOf(v)
	if shared {
		if id, ok := e.ids[key]; ok {
			return []any{refTag, id}, nil
		}
	}
	id := e.next
	e.next++
	if shared {
		e.ids[key] = id
	}
	cell, err := body(v, depth)
	if err != nil {
		return nil, err
	}
	return []any{defTag, id, cell}, nil
}

func (e *encoder) encodeElems(v reflect.Value, depth int) (any, error) {
	out := make([]any, v.Len())
	for i := range out {
		cell, err := e.encode(v.Index(i), depth+1)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = cell
	}
	return out, nil
}

func (e *encoder) encodeMap(v reflect.Value, depth int) (any, error) {
	keys := sortedKeys(v)
	out := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		kc, err := e.encode(k, depth+1)
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		vc, err := e.encode(v.MapIndex(k), depth+1)
		if err != nil {
			return nil, fmt.Errorf("[%v]: %w", k, err)
		}
		out = append(out, kc, vc)
	}
	return out, nil
}

func (e *encoder) encodeStruct(v reflect.Value, depth int) (any, error) {
	t := v.Type()
	if Opaque(t) {
		return nil, unsupported("struct %s has no exported fields", t)
	}
	fields := Fields(t)
	out := make([]any, 0, 2*len(fields))
	for _, f := range fields {
		cell, err := e.encode(v.FieldByIndex(f.Index), depth+1)
		if err != nil {
			return nil, fmt.Errorf(".%s: %w", f.Name, err)
		}
		out = append(out, f.Name, cell)
	}
	return out, nil
}

func (e *encoder) encodeBinary(v reflect.Value) (any, error) {
	m, ok := v.Interface().(encoding.BinaryMarshaler)
	if !ok {
		return nil, unsupported("%s does not marshal by value", v.Type())
	}
	data, err := m.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", v.Type(), err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func isBinary(t reflect.Type) bool {
	return t.Implements(binaryMarshalerType) && reflect.PointerTo(t).Implements(binaryUnmarshalerType)
}

// identityOf returns the identity of reference-kind values. Empty slices and
// nil references have none.
func identityOf(v reflect.Value) (identity, bool) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan:
		if v.IsNil() {
			return identity{}, false
		}
		return identity{typ: v.Type(), ptr: v.Pointer()}, true
	case reflect.Slice:
		if v.IsNil() || v.Len() == 0 {
			return identity{}, false
		}
		return identity{typ: v.Type(), ptr: v.Pointer(), len: v.Len()}, true
	}
	return identity{}, false
}
