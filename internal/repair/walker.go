// Package repair rebuilds object graphs that an encoder rejects, replacing
// the parts it cannot carry with placeholders.
//
// The walker never mutates its input. Members that need repair are copied,
// the copies are repaired in place, and every reference-kind value is
// remembered by identity so that shared references and cycles in the input
// map onto shared references and cycles in the result.
package repair

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"github.com/hengadev/miscutils/internal/pickle"
	"github.com/hengadev/miscutils/internal/placeholder"
)

var lostType = reflect.TypeOf((*placeholder.Lost)(nil))

// DefaultMaxDepth bounds the nesting the walker follows.
const DefaultMaxDepth = 10000

// ErrDepthExceeded is returned when the graph nests deeper than the limit.
var ErrDepthExceeded = errors.New("repair depth exceeded")

// Loss records one value the result no longer carries.
type Loss struct {
	Path   string `json:"path"`
	Type   string `json:"type"`
	Repr   string `json:"repr"`
	Reason string `json:"reason"`
}

// Report summarizes one repair.
type Report struct {
	Losses       []Loss `json:"losses,omitempty"`
	Placeholders int    `json:"placeholders"`
	Copies       int    `json:"copies"`
	Probes       int    `json:"probes"`
}

// Lossless reports whether nothing was dropped.
func (r *Report) Lossless() bool {
	return r == nil || len(r.Losses) == 0
}

// Add appends a loss.
func (r *Report) Add(l Loss) {
	r.Losses = append(r.Losses, l)
}

// Walker repairs graphs against a Prober. A Walker holds no per-call state and
// may be shared.
type Walker struct {
	prober   Prober
	maxDepth int
	logger   *slog.Logger
}

// Option configures a Walker.
type Option func(*Walker)

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(w *Walker) {
		if depth > 0 {
			w.maxDepth = depth
		}
	}
}

// WithLogger sets the logger that receives one debug record per placeholder.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Walker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New returns a Walker testing values against p.
func New(p Prober, opts ...Option) *Walker {
	w := &Walker{
		prober:   p,
		maxDepth: DefaultMaxDepth,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Repair returns a version of root the prober accepts, or a placeholder when
// nothing of root can be kept. The only error is ErrDepthExceeded.
func (w *Walker) Repair(root any) (any, *Report, error) {
	st := &walk{
		Walker: w,
		seen:   make(map[identity]entry),
		report: &Report{},
	}

	slot := reflect.ValueOf(&root).Elem()
	repl, _, err := st.visit(slot, &path{name: "$"}, 0)
	if err != nil {
		return nil, st.report, err
	}
	if !repl.IsValid() {
		return nil, st.report, nil
	}
	return repl.Interface(), st.report, nil
}

type identity struct {
	typ reflect.Type
	ptr uintptr
	len int
}

// identityOf returns the identity of non-nil pointers, maps and channels and
// of non-empty slices. Other values are never shared.
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

// entry is what the seen table holds for one identity: the value that
// replaces it and whether that differs from the original.
type entry struct {
	value   reflect.Value
	changed bool
}

// path is built lazily so deep graphs do not pay for strings they never print.
type path struct {
	parent *path
	name   string
}

func (p *path) child(name string) *path { return &path{parent: p, name: name} }

func (p *path) String() string {
	var parts []string
	for ; p != nil; p = p.parent {
		parts = append(parts, p.name)
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteString(parts[i])
	}
	return b.String()
}

type walk struct {
	*Walker
	seen   map[identity]entry
	report *Report
}

// visit returns the replacement for the value held in slot and whether it
// differs from the original.
func (st *walk) visit(slot reflect.Value, at *path, depth int) (reflect.Value, bool, error) {
	if depth > st.maxDepth {
		return reflect.Value{}, false, fmt.Errorf("%w (%d) at %s", ErrDepthExceeded, st.maxDepth, at)
	}

	v := slot
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return slot, false, nil
		}
		v = v.Elem()
	}

	id, shared := identityOf(v)
	if slot.Kind() == reflect.Interface && !describable(st.prober, v.Type()) {
		if e, ok := st.seen[id]; shared && ok && e.value.Type() == lostType {
			return e.value, true, nil
		}
		return st.lose(v, id, shared, at, "type cannot travel in an interface"), true, nil
	}
	if shared {
		if e, ok := st.seen[id]; ok {
			return e.value, e.changed, nil
		}
	}

	st.report.Probes++
	if Probe(st.prober, slot) {
		if shared {
			st.seen[id] = entry{value: v}
		}
		return slot, false, nil
	}

	if IsEndpoint(v) {
		return st.lose(v, id, shared, at, "not serializable"), true, nil
	}

	cp, ok := shallowCopy(v)
	if !ok {
		return st.lose(v, id, shared, at, "cannot be copied"), true, nil
	}
	st.report.Copies++
	if shared {
		st.seen[id] = entry{value: cp, changed: true}
	}

	changed, err := st.descend(cp, at, depth)
	if err != nil {
		return reflect.Value{}, false, err
	}
	if !changed {
		return st.lose(v, id, shared, at, "no member could be repaired"), true, nil
	}

	if ShapeOf(cp.Type()) == ShapeTuple {
		cp = rebuild(cp)
		if shared {
			st.seen[id] = entry{value: cp, changed: true}
		}
	}
	return cp, true, nil
}

// lose substitutes a placeholder for v and records it under v's identity.
func (st *walk) lose(v reflect.Value, id identity, shared bool, at *path, reason string) reflect.Value {
	lost := placeholder.New(Repr(v))
	repl := reflect.ValueOf(lost)
	if shared {
		st.seen[id] = entry{value: repl, changed: true}
	}
	st.report.Placeholders++
	st.report.Add(Loss{Path: at.String(), Type: v.Type().String(), Repr: lost.Repr, Reason: reason})
	if st.logger.Enabled(context.Background(), slog.LevelDebug) {
		st.logger.Debug("placeholder substituted",
			slog.String("path", at.String()),
			slog.String("type", v.Type().String()),
			slog.String("reason", reason))
	}
	return repl
}

// fit stores repl into the settable slot, or zeroes the slot when repl's
// type cannot live there.
func (st *walk) fit(slot, repl reflect.Value, at *path) {
	if !repl.IsValid() {
		slot.SetZero()
		return
	}
	if repl.Type().AssignableTo(slot.Type()) {
		slot.Set(repl)
		return
	}
	st.report.Add(Loss{
		Path:   at.String(),
		Type:   slot.Type().String(),
		Repr:   Repr(repl),
		Reason: "replacement does not fit the slot; zero value stored",
	})
	slot.SetZero()
}

func (st *walk) descend(cp reflect.Value, at *path, depth int) (bool, error) {
	switch cp.Kind() {
	case reflect.Pointer:
		elem := cp.Elem()
		if elem.Kind() == reflect.Struct {
			return st.descendStruct(elem, at, depth)
		}
		return st.descendSlot(elem, at.child(".*"), depth)
	case reflect.Struct:
		return st.descendStruct(cp, at, depth)
	case reflect.Slice, reflect.Array:
		changed := false
		for i := 0; i < cp.Len(); i++ {
			ch, err := st.descendSlot(cp.Index(i), at.child(fmt.Sprintf("[%d]", i)), depth)
			if err != nil {
				return false, err
			}
			changed = changed || ch
		}
		return changed, nil
	case reflect.Map:
		return st.descendMap(cp, at, depth)
	}
	return false, nil
}

// descendSlot repairs the value held in a settable slot in place.
func (st *walk) descendSlot(slot reflect.Value, at *path, depth int) (bool, error) {
	repl, changed, err := st.visit(slot, at, depth+1)
	if err != nil || !changed {
		return false, err
	}
	st.fit(slot, repl, at)
	return true, nil
}

func (st *walk) descendStruct(sv reflect.Value, at *path, depth int) (bool, error) {
	changed := false
	for _, f := range pickle.Fields(sv.Type()) {
		ch, err := st.descendSlot(sv.FieldByIndex(f.Index), at.child("."+f.Name), depth)
		if err != nil {
			return false, err
		}
		changed = changed || ch
	}
	return changed, nil
}

func (st *walk) descendMap(m reflect.Value, at *path, depth int) (bool, error) {
	t := m.Type()
	mapping := ShapeOf(t) == ShapeMapping
	changed := false

	for _, k := range m.MapKeys() {
		entryPath := at.child(fmt.Sprintf("[%s]", Repr(k)))

		newKey, keyChanged, err := st.visit(k, entryPath.child("<key>"), depth+1)
		if err != nil {
			return false, err
		}
		v := m.MapIndex(k)
		newVal, valChanged := v, false
		if mapping {
			newVal, valChanged, err = st.visit(v, entryPath, depth+1)
			if err != nil {
				return false, err
			}
		}
		if !keyChanged && !valChanged {
			continue
		}
		changed = true

		key := k
		if keyChanged {
			m.SetMapIndex(k, reflect.Value{})
			nk := reflect.New(t.Key()).Elem()
			if !newKey.IsValid() || !newKey.Type().AssignableTo(t.Key()) {
				st.dropEntry(entryPath, k, "key replacement does not fit the key type")
				continue
			}
			nk.Set(newKey)
			if !nk.Comparable() {
				st.dropEntry(entryPath, k, "key replacement is not hashable")
				continue
			}
			key = nk
		}

		val := v
		if valChanged {
			nv := reflect.New(t.Elem()).Elem()
			st.fit(nv, newVal, entryPath)
			val = nv
		}
		m.SetMapIndex(key, val)
	}
	return changed, nil
}

func (st *walk) dropEntry(at *path, key reflect.Value, reason string) {
	st.report.Add(Loss{Path: at.String(), Type: key.Type().String(), Repr: Repr(key), Reason: reason + "; entry dropped"})
}

// shallowCopy returns a new value of v's type sharing v's members. Values
// holding locks cannot be copied.
func shallowCopy(v reflect.Value) (reflect.Value, bool) {
	t := v.Type()
	switch v.Kind() {
	case reflect.Pointer:
		elem := v.Elem()
		if holdsLock(elem.Type()) {
			return reflect.Value{}, false
		}
		p := reflect.New(elem.Type())
		p.Elem().Set(elem)
		return p, true
	case reflect.Struct, reflect.Array:
		if holdsLock(t) {
			return reflect.Value{}, false
		}
		c := reflect.New(t).Elem()
		c.Set(v)
		return c, true
	case reflect.Map:
		m := reflect.MakeMapWithSize(t, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			m.SetMapIndex(iter.Key(), iter.Value())
		}
		return m, true
	case reflect.Slice:
		s := reflect.MakeSlice(t, v.Len(), v.Len())
		reflect.Copy(s, v)
		return s, true
	}
	return reflect.Value{}, false
}

// rebuild returns a fresh tuple holding the members of cp.
func rebuild(cp reflect.Value) reflect.Value {
	t := cp.Type()
	if t.Kind() == reflect.Array {
		out := reflect.New(t).Elem()
		reflect.Copy(out, cp)
		return out
	}
	out := reflect.MakeSlice(t, 0, cp.Len())
	for i := 0; i < cp.Len(); i++ {
		out = reflect.Append(out, cp.Index(i))
	}
	return out
}
