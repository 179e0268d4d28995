package pickle

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

var (
	anyType   = reflect.TypeOf((*any)(nil)).Elem()
	errorType = reflect.TypeOf((*error)(nil)).Elem()
	emptyType = reflect.TypeOf(struct{}{})
)

var predeclared = map[string]reflect.Type{
	"bool":       reflect.TypeOf(false),
	"int":        reflect.TypeOf(int(0)),
	"int8":       reflect.TypeOf(int8(0)),
	"int16":      reflect.TypeOf(int16(0)),
	"int32":      reflect.TypeOf(int32(0)),
	"int64":      reflect.TypeOf(int64(0)),
	"uint":       reflect.TypeOf(uint(0)),
	"uint8":      reflect.TypeOf(uint8(0)),
	"uint16":     reflect.TypeOf(uint16(0)),
	"uint32":     reflect.TypeOf(uint32(0)),
	"uint64":     reflect.TypeOf(uint64(0)),
	"uintptr":    reflect.TypeOf(uintptr(0)),
	"float32":    reflect.TypeOf(float32(0)),
	"float64":    reflect.TypeOf(float64(0)),
	"complex64":  reflect.TypeOf(complex64(0)),
	"complex128": reflect.TypeOf(complex128(0)),
	"string":     reflect.TypeOf(""),
	"any":        anyType,
	"error":      errorType,
	"struct{}":   emptyType,
}

// describe renders t as a descriptor string that parse can turn back into t.
func (r *Registry) describe(t reflect.Type) (string, error) {
	if name, ok := r.NameOf(t); ok {
		return name, nil
	}
	if t == anyType {
		return "any", nil
	}
	if t == emptyType {
		return "struct{}", nil
	}
	if t.Name() != "" {
		if t.PkgPath() == "" {
			if _, ok := predeclared[t.Name()]; ok {
				return t.Name(), nil
			}
		}
		return "", fmt.Errorf("%w: %s", ErrUnregisteredType, t)
	}

	switch t.Kind() {
	case reflect.Slice:
		elem, err := r.describe(t.Elem())
		if err != nil {
			return "", err
		}
		return "[]" + elem, nil
	case reflect.Array:
		elem, err := r.describe(t.Elem())
		if err != nil {
			return "", err
		}
		return "[" + strconv.Itoa(t.Len()) + "]" + elem, nil
	case reflect.Pointer:
		elem, err := r.describe(t.Elem())
		if err != nil {
			return "", err
		}
		return "*" + elem, nil
	case reflect.Map:
		key, err := r.describe(t.Key())
		if err != nil {
			return "", err
		}
		elem, err := r.describe(t.Elem())
		if err != nil {
			return "", err
		}
		return "map[" + key + "]" + elem, nil
	}
	return "", unsupported("type %s cannot be described", t)
}

// parse is the inverse of describe.
func (r *Registry) parse(desc string) (reflect.Type, error) {
	t, rest, err := r.parseType(desc)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, malformed("trailing %q in type descriptor %q", rest, desc)
	}
	return t, nil
}

func (r *Registry) parseType(s string) (reflect.Type, string, error) {
	switch {
	case s == "":
		return nil, "", malformed("empty type descriptor")

	case strings.HasPrefix(s, "[]"):
		elem, rest, err := r.parseType(s[2:])
		if err != nil {
			return nil, "", err
		}
		return reflect.SliceOf(elem), rest, nil

	case s[0] == '[':
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return nil, "", malformed("unterminated array length in %q", s)
		}
		n, err := strconv.Atoi(s[1:end])
		if err != nil || n < 0 {
			return nil, "", malformed("bad array length in %q", s)
		}
		elem, rest, err := r.parseType(s[end+1:])
		if err != nil {
			return nil, "", err
		}
		return reflect.ArrayOf(n, elem), rest, nil

	case s[0] == '*':
		elem, rest, err := r.parseType(s[1:])
		if err != nil {
			return nil, "", err
		}
		return reflect.PointerTo(elem), rest, nil

	case strings.HasPrefix(s, "map["):
		key, rest, err := r.parseType(s[4:])
		if err != nil {
			return nil, "", err
		}
		if !strings.HasPrefix(rest, "]") {
			return nil, "", malformed("unterminated map key in %q", s)
		}
		if !key.Comparable() {
			return nil, "", malformed("map key %s is not comparable", key)
		}
		elem, rest, err := r.parseType(rest[1:])
		if err != nil {
			return nil, "", err
		}
		return reflect.MapOf(key, elem), rest, nil
	}

	name, rest := s, ""
	if i := strings.IndexByte(s, ']'); i >= 0 {
		name, rest = s[:i], s[i:]
	}
	if t, ok := predeclared[name]; ok {
		return t, rest, nil
	}
	if t, ok := r.Lookup(name); ok {
		return t, rest, nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnregisteredType, name)
}
