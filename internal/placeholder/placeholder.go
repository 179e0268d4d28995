// Package placeholder holds the inert stand-ins written in place of values
// that could not be serialized.
package placeholder

import (
	"errors"
	"fmt"
	"go/token"
	"iter"
)

// ErrReservedAttr is returned by Attr for names that are not exported Go
// identifiers. Those names belong to reflection and type introspection, so a
// placeholder must not pretend to have them.
var ErrReservedAttr = errors.New("reserved attribute")

// Lost stands in for a value that was dropped during serialization. It only
// keeps the textual representation the value had before it was dropped.
type Lost struct {
	Repr string
}

// New returns a Lost carrying repr.
func New(repr string) *Lost {
	return &Lost{Repr: repr}
}

func (l *Lost) String() string {
	if l == nil {
		return "Lost()"
	}
	return "Lost(" + l.Repr + ")"
}

func (l *Lost) GoString() string {
	if l == nil {
		return "&placeholder.Lost{}"
	}
	return fmt.Sprintf("&placeholder.Lost{Repr:%q}", l.Repr)
}

// Len is always zero.
func (l *Lost) Len() int { return 0 }

// All yields nothing.
func (l *Lost) All() iter.Seq2[int, any] { return empty }

// Next reports exhaustion immediately.
func (l *Lost) Next() (any, bool) { return nil, false }

// Attr returns Void for any exported name so that chained lookups on a lost
// value keep degrading instead of failing.
func (l *Lost) Attr(name string) (*Absent, error) {
	return attr(name)
}

// Absent is the absorbing value returned by attribute lookups on placeholders.
// Every lookup on it returns itself.
type Absent struct{}

// Void is the shared Absent instance.
var Void = &Absent{}

func (a *Absent) String() string { return "Void" }

func (a *Absent) Len() int { return 0 }

func (a *Absent) All() iter.Seq2[int, any] { return empty }

func (a *Absent) Next() (any, bool) { return nil, false }

func (a *Absent) Attr(name string) (*Absent, error) {
	return attr(name)
}

// IsPlaceholder reports whether v is a *Lost or an *Absent.
func IsPlaceholder(v any) bool {
	switch v.(type) {
	case *Lost, *Absent:
		return true
	}
	return false
}

func attr(name string) (*Absent, error) {
	if !token.IsExported(name) {
		return nil, fmt.Errorf("%w: %q", ErrReservedAttr, name)
	}
	return Void, nil
}

func empty(yield func(int, any) bool) {}
