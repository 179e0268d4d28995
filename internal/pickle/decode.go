package pickle

import (
	"encoding"
	"encoding/base64"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"

	ogorek "github.com/kisielk/og-rek"

	"github.com/hengadev/miscutils/internal/placeholder"
)

var absentPtrType = reflect.TypeOf(placeholder.Void)

// decoder fills Go values from cells. Reference kinds are allocated and
// recorded before their bodies are decoded, so references back into a value
// under construction resolve to the same object.
type decoder struct {
	reg      *Registry
	maxDepth int
	refs     map[int64]reflect.Value
}

func newDecoder(reg *Registry, maxDepth int) *decoder {
	return &decoder{reg: reg, maxDepth: maxDepth, refs: make(map[int64]reflect.Value)}
}

// decode stores the value described by cell into dst, which must be settable.
func (d *decoder) decode(cell any, dst reflect.Value, depth int) error {
	if depth > d.maxDepth {
		return fmt.Errorf("%w (%d)", ErrDepthExceeded, d.maxDepth)
	}
	if isNone(cell) {
		dst.SetZero()
		return nil
	}

	t := dst.Type()
	if t.Kind() == reflect.Struct && isBinary(t) {
		return d.decodeBinary(cell, dst)
	}

	switch t.Kind() {
	case reflect.Interface:
		pair, err := list(cell, 2)
		if err != nil {
			return err
		}
		desc, ok := pair[0].(string)
		if !ok {
			return malformed("type descriptor is %T", pair[0])
		}
		typ, err := d.reg.parse(desc)
		if err != nil {
			return err
		}
		if !typ.AssignableTo(t) {
			return malformed("%s does not fit %s", typ, t)
		}
		v := reflect.New(typ).Elem()
		if err := d.decode(pair[1], v, depth+1); err != nil {
			return err
		}
		dst.Set(v)
		return nil

	case reflect.Bool:
		b, ok := cell.(bool)
		if !ok {
			return malformed("want bool, got %T", cell)
		}
		dst.SetBool(b)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := toInt64(cell)
		if err != nil {
			return err
		}
		if dst.OverflowInt(i) {
			return malformed("%d overflows %s", i, t)
		}
		dst.SetInt(i)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := toUint64(cell)
		if err != nil {
			return err
		}
		if dst.OverflowUint(u) {
			return malformed("%d overflows %s", u, t)
		}
		dst.SetUint(u)
		return nil

	case reflect.Float32, reflect.Float64:
		f, err := toFloat64(cell)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
		return nil

	case reflect.Complex64, reflect.Complex128:
		parts, err := list(cell, 2)
		if err != nil {
			return err
		}
		re, err := toFloat64(parts[0])
		if err != nil {
			return err
		}
		im, err := toFloat64(parts[1])
		if err != nil {
			return err
		}
		dst.SetComplex(complex(re, im))
		return nil

	case reflect.String:
		s, ok := cell.(string)
		if !ok {
			return malformed("want string, got %T", cell)
		}
		dst.SetString(s)
		return nil

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			raw, err := decodeBase64(cell)
			if err != nil {
				return err
			}
			b := reflect.MakeSlice(t, len(raw), len(raw))
			reflect.Copy(b, reflect.ValueOf(raw))
			dst.Set(b)
			return nil
		}
		return d.decodeRef(cell, dst, func(body any) (reflect.Value, func() error, error) {
			elems, err := list(body, -1)
			if err != nil {
				return reflect.Value{}, nil, err
			}
			s := reflect.MakeSlice(t, len(elems), len(elems))
			return s, func() error { return d.decodeElems(elems, s, depth) }, nil
		})

	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			raw, err := decodeBase64(cell)
			if err != nil {
				return err
			}
			if len(raw) != t.Len() {
				return malformed("want %d bytes for %s, got %d", t.Len(), t, len(raw))
			}
			reflect.Copy(dst, reflect.ValueOf(raw))
			return nil
		}
		elems, err := list(cell, t.Len())
		if err != nil {
			return err
		}
		return d.decodeElems(elems, dst, depth)

	case reflect.Map:
		return d.decodeRef(cell, dst, func(body any) (reflect.Value, func() error, error) {
			pairs, err := list(body, -1)
			if err != nil {
				return reflect.Value{}, nil, err
			}
			if len(pairs)%2 != 0 {
				return reflect.Value{}, nil, malformed("odd map body length %d", len(pairs))
			}
			m := reflect.MakeMapWithSize(t, len(pairs)/2)
			return m, func() error { return d.decodeMap(pairs, m, depth) }, nil
		})

	case reflect.Pointer:
		return d.decodeRef(cell, dst, func(body any) (reflect.Value, func() error, error) {
			if t == absentPtrType {
				return reflect.ValueOf(placeholder.Void), func() error { return nil }, nil
			}
			p := reflect.New(t.Elem())
			return p, func() error { return d.decode(body, p.Elem(), depth+1) }, nil
		})

	case reflect.Struct:
		return d.decodeStruct(cell, dst, depth)
	}

	return unsupported("cannot decode into %s", t)
}

// decodeRef resolves ["ref", id] from the table, or allocates the value of
// ["def", id, body], records it and then fills it.
func (d *decoder) decodeRef(cell any, dst reflect.Value, alloc func(body any) (reflect.Value, func() error, error)) error {
	items, err := list(cell, -1)
	if err != nil {
		return err
	}
	if len(items) < 2 {
		return malformed("short reference cell")
	}
	tag, _ := items[0].(string)
	id, err := toInt64(items[1])
	if err != nil {
		return err
	}

	switch tag {
	case refTag:
		v, ok := d.refs[id]
		if !ok {
			return malformed("reference to unknown id %d", id)
		}
		if v.Type() != dst.Type() {
			return malformed("id %d is %s, want %s", id, v.Type(), dst.Type())
		}
		dst.Set(v)
		return nil

	case defTag:
		if len(items) != 3 {
			return malformed("definition cell has %d items", len(items))
		}
		if _, dup := d.refs[id]; dup {
			return malformed("id %d defined twice", id)
		}
		v, fill, err := alloc(items[2])
		if err != nil {
			return err
		}
		d.refs[id] = v
		dst.Set(v)
		return fill()
	}
	return malformed("unknown reference tag %q", tag)
}

func (d *decoder) decodeElems(elems []any, dst reflect.Value, depth int) error {
	for i, cell := range elems {
		if err := d.decode(cell, dst.Index(i), depth+1); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return nil
}

func (d *decoder) decodeMap(pairs []any, m reflect.Value, depth int) error {
	t := m.Type()
	for i := 0; i < len(pairs); i += 2 {
		k := reflect.New(t.Key()).Elem()
		if err := d.decode(pairs[i], k, depth+1); err != nil {
			return fmt.Errorf("map key: %w", err)
		}
		if !k.Comparable() {
			return malformed("map key of type %s is not hashable", k.Type())
		}
		v := reflect.New(t.Elem()).Elem()
		if err := d.decode(pairs[i+1], v, depth+1); err != nil {
			return fmt.Errorf("[%v]: %w", k, err)
		}
		m.SetMapIndex(k, v)
	}
	return nil
}

func (d *decoder) decodeStruct(cell any, dst reflect.Value, depth int) error {
	pairs, err := list(cell, -1)
	if err != nil {
		return err
	}
	if len(pairs)%2 != 0 {
		return malformed("odd struct body length %d", len(pairs))
	}
	t := dst.Type()
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			return malformed("field name is %T", pairs[i])
		}
		f, ok := t.FieldByName(name)
		if !ok || !f.IsExported() || len(f.Index) != 1 {
			continue
		}
		if err := d.decode(pairs[i+1], dst.Field(f.Index[0]), depth+1); err != nil {
			return fmt.Errorf(".%s: %w", name, err)
		}
	}
	return nil
}

func (d *decoder) decodeBinary(cell any, dst reflect.Value) error {
	raw, err := decodeBase64(cell)
	if err != nil {
		return err
	}
	u, ok := dst.Addr().Interface().(encoding.BinaryUnmarshaler)
	if !ok {
		return unsupported("%s cannot unmarshal", dst.Type())
	}
	if err := u.UnmarshalBinary(raw); err != nil {
		return fmt.Errorf("unmarshal %s: %w", dst.Type(), err)
	}
	return nil
}

func isNone(cell any) bool {
	if cell == nil {
		return true
	}
	_, ok := cell.(ogorek.None)
	return ok
}

// list returns cell as a slice, checking its length when n >= 0.
func list(cell any, n int) ([]any, error) {
	var items []any
	switch c := cell.(type) {
	case []any:
		items = c
	case ogorek.Tuple:
		items = c
	default:
		return nil, malformed("want list, got %T", cell)
	}
	if n >= 0 && len(items) != n {
		return nil, malformed("want %d items, got %d", n, len(items))
	}
	return items, nil
}

func toInt64(cell any) (int64, error) {
	switch c := cell.(type) {
	case int64:
		return c, nil
	case int:
		return int64(c), nil
	case *big.Int:
		if !c.IsInt64() {
			return 0, malformed("integer %s overflows int64", c)
		}
		return c.Int64(), nil
	case bool:
		if c {
			return 1, nil
		}
		return 0, nil
	}
	return 0, malformed("want integer, got %T", cell)
}

func toUint64(cell any) (uint64, error) {
	switch c := cell.(type) {
	case string:
		u, err := strconv.ParseUint(c, 10, 64)
		if err != nil {
			return 0, malformed("bad unsigned integer %q", c)
		}
		return u, nil
	case *big.Int:
		if !c.IsUint64() {
			return 0, malformed("integer %s overflows uint64", c)
		}
		return c.Uint64(), nil
	}
	i, err := toInt64(cell)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, malformed("negative value %d for unsigned type", i)
	}
	return uint64(i), nil
}

func toFloat64(cell any) (float64, error) {
	switch c := cell.(type) {
	case float64:
		return c, nil
	case int64:
		if c > 1<<53 || c < -(1<<53) {
			return 0, malformed("integer %d loses precision as float", c)
		}
		return float64(c), nil
	}
	return math.NaN(), malformed("want float, got %T", cell)
}

func decodeBase64(cell any) ([]byte, error) {
	s, ok := cell.(string)
	if !ok {
		return nil, malformed("want base64 string, got %T", cell)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, malformed("bad base64: %v", err)
	}
	return raw, nil
}
