package miscutils

import (
	"github.com/hengadev/miscutils/internal/placeholder"
	"github.com/hengadev/miscutils/internal/repair"
)

// Lost stands in for a value that could not be serialized.
type Lost = placeholder.Lost

// Absent is the absorbing value Lost.Attr returns.
type Absent = placeholder.Absent

// Void is the only Absent value a decoded graph contains.
var Void = placeholder.Void

// ErrReservedAttr is returned by Attr for names that are not exported.
var ErrReservedAttr = placeholder.ErrReservedAttr

// NewLost returns a placeholder carrying repr.
func NewLost(repr string) *Lost {
	return placeholder.New(repr)
}

// IsPlaceholder reports whether v is a *Lost or *Absent.
func IsPlaceholder(v any) bool {
	return placeholder.IsPlaceholder(v)
}

// Report describes what a serialization dropped.
type Report = repair.Report

// Loss is one entry of a Report.
type Loss = repair.Loss

// FindPlaceholders returns the path of every placeholder in a decoded
// graph, e.g. `$["sock"]` or `$.Conn.Sock`.
func FindPlaceholders(v any) []string {
	return repair.Placeholders(v)
}
