package pickle

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	ogorek "github.com/kisielk/og-rek"

	"github.com/hengadev/miscutils/internal/placeholder"
)

// Registry binds names to the concrete types that may appear behind an
// interface. It plays the role gob.Register plays for encoding/gob, except
// that each codec owns its own table.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}

// NewRegistry returns a registry that already knows the placeholder types,
// time.Time, time.Duration and ogórek tuples.
func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]reflect.Type),
		byType: make(map[reflect.Type]string),
	}
	builtins := []struct {
		name  string
		value any
	}{
		{"miscutils.Lost", placeholder.Lost{}},
		{"miscutils.Absent", placeholder.Absent{}},
		{"time.Time", time.Time{}},
		{"time.Duration", time.Duration(0)},
		{"ogorek.Tuple", ogorek.Tuple{}},
	}
	for _, b := range builtins {
		if err := r.RegisterName(b.name, b.value); err != nil {
			panic(err)
		}
	}
	return r
}

// Register records the type of value under its package-qualified name.
// Pointers are dereferenced, so Register(&T{}) and Register(T{}) are the same.
func (r *Registry) Register(value any) error {
	t := baseType(value)
	if t == nil {
		return fmt.Errorf("register nil value: %w", ErrUnsupportedType)
	}
	if t.Name() == "" {
		return unsupported("cannot register unnamed type %s", t)
	}
	name := t.Name()
	if t.PkgPath() != "" {
		name = t.PkgPath() + "." + t.Name()
	}
	return r.RegisterName(name, value)
}

// RegisterName records the type of value under name. Registering the same
// type twice under the same name is a no-op.
func (r *Registry) RegisterName(name string, value any) error {
	t := baseType(value)
	if t == nil {
		return fmt.Errorf("register nil value: %w", ErrUnsupportedType)
	}
	if name == "" || strings.ContainsAny(name, "[]* ") {
		return fmt.Errorf("invalid registry name %q", name)
	}
	if _, ok := predeclared[name]; ok {
		return fmt.Errorf("%w: %q is predeclared", ErrDuplicateName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byName[name]; ok && prev != t {
		return fmt.Errorf("%w: %q already bound to %s", ErrDuplicateName, name, prev)
	}
	if prev, ok := r.byType[t]; ok && prev != name {
		return fmt.Errorf("%w: %s already registered as %q", ErrDuplicateName, t, prev)
	}
	r.byName[name] = t
	r.byType[t] = name
	return nil
}

// Lookup returns the type bound to name.
func (r *Registry) Lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// NameOf returns the name t was registered under.
func (r *Registry) NameOf(t reflect.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byType[t]
	return name, ok
}

// Names lists every registered name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}

func baseType(value any) reflect.Type {
	t := reflect.TypeOf(value)
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Pointer && t.Name() == "" {
		t = t.Elem()
	}
	return t
}
