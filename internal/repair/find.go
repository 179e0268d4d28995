package repair

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/hengadev/miscutils/internal/pickle"
	"github.com/hengadev/miscutils/internal/placeholder"
)

// Placeholders returns the paths of every placeholder reachable from root,
// in the notation Loss.Path uses. Map entries are visited in key order and
// shared values once.
func Placeholders(root any) []string {
	f := &finder{seen: make(map[identity]bool)}
	f.find(reflect.ValueOf(root), &path{name: "$"}, 0)
	return f.paths
}

type finder struct {
	seen  map[identity]bool
	paths []string
}

func (f *finder) find(v reflect.Value, at *path, depth int) {
	if depth > DefaultMaxDepth || !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.CanInterface() && placeholder.IsPlaceholder(v.Interface()) {
		f.paths = append(f.paths, at.String())
		return
	}
	if id, ok := identityOf(v); ok {
		if f.seen[id] {
			return
		}
		f.seen[id] = true
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return
		}
		if v.Elem().Kind() == reflect.Struct {
			f.fields(v.Elem(), at, depth)
			return
		}
		f.find(v.Elem(), at.child(".*"), depth+1)
	case reflect.Struct:
		f.fields(v, at, depth)
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			f.find(v.Index(i), at.child(fmt.Sprintf("[%d]", i)), depth+1)
		}
	case reflect.Map:
		type keyed struct {
			key  reflect.Value
			repr string
		}
		entries := make([]keyed, 0, v.Len())
		for _, k := range v.MapKeys() {
			entries = append(entries, keyed{k, Repr(k)})
		}
		slices.SortFunc(entries, func(a, b keyed) int { return strings.Compare(a.repr, b.repr) })
		for _, e := range entries {
			entryPath := at.child(fmt.Sprintf("[%s]", e.repr))
			f.find(e.key, entryPath.child("<key>"), depth+1)
			f.find(v.MapIndex(e.key), entryPath, depth+1)
		}
	}
}

func (f *finder) fields(sv reflect.Value, at *path, depth int) {
	for _, field := range pickle.Fields(sv.Type()) {
		f.find(sv.FieldByIndex(field.Index), at.child("."+field.Name), depth+1)
	}
}
