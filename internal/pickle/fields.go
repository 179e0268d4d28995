package pickle

import (
	"reflect"
	"sync"
)

var fieldCache sync.Map // map[reflect.Type][]reflect.StructField

// Fields returns the struct fields of t that travel in the stream: exported
// fields without a `pickle:"-"` tag.
func Fields(t reflect.Type) []reflect.StructField {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]reflect.StructField)
	}
	var fields []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("pickle") == "-" {
			continue
		}
		fields = append(fields, f)
	}
	fieldCache.Store(t, fields)
	return fields
}

// Opaque reports whether t is a struct that has fields but none of them travel.
func Opaque(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t.NumField() > 0 && len(Fields(t)) == 0
}
