package repair

import (
	"fmt"
	"reflect"
	"unicode/utf8"
)

// MaxReprLen bounds the text a placeholder keeps.
const MaxReprLen = 256

// Repr renders v for a placeholder. Stringers and errors speak for
// themselves; anything else is described by type and address or length.
// Panics raised while rendering fall back to the type-only form.
func Repr(v reflect.Value) (s string) {
	for v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	if !v.IsValid() {
		return "<nil>"
	}

	defer func() {
		if r := recover(); r != nil {
			s = structural(v)
		}
		s = truncate(s)
	}()

	if v.CanInterface() {
		switch x := v.Interface().(type) {
		case fmt.Stringer:
			return x.String()
		case error:
			return x.Error()
		}
	}
	return structural(v)
}

func structural(v reflect.Value) string {
	t := v.Type()
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if v.IsNil() {
			return fmt.Sprintf("<%s nil>", t)
		}
		return fmt.Sprintf("<%s at %#x>", t, v.Pointer())
	case reflect.Slice, reflect.Array:
		return fmt.Sprintf("<%s len=%d>", t, v.Len())
	case reflect.Struct:
		return fmt.Sprintf("<%s>", t)
	case reflect.String:
		return fmt.Sprintf("%q", v.String())
	}
	return fmt.Sprintf("%v", v)
}

func truncate(s string) string {
	if len(s) <= MaxReprLen {
		return s
	}
	cut := MaxReprLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
