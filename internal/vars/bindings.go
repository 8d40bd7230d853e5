// File: internal/vars/bindings.go
package vars

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical date format for date-typed values.
const DateLayout = "2006-01-02"

// ValueKind tags the type of a bound value.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindNumber ValueKind = "number"
	KindDate   ValueKind = "date"
)

// Value is one variable binding: a string, a number, or a date.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	date time.Time
}

// String builds a string-typed value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number builds a number-typed value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Date builds a date-typed value.
func Date(t time.Time) Value { return Value{kind: KindDate, date: t} }

// Kind returns the value's type tag.
func (v Value) Kind() ValueKind { return v.kind }

// Render returns the value's canonical string representation, used when a
// placeholder is substituted into a string-bearing field.
func (v Value) Render() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindDate:
		return v.date.Format(DateLayout)
	default:
		return v.str
	}
}

// Bindings maps variable names to values. Keys are unique; insertion order
// is irrelevant.
type Bindings map[string]Value

// Clone returns an independent copy, used to capture a step's atomic view
// of the variables and to isolate parallel branches.
func (b Bindings) Clone() Bindings {
	out := make(Bindings, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Merge copies every entry of other into b, overwriting on collision
// (last-writer-wins).
func (b Bindings) Merge(other Bindings) {
	for k, v := range other {
		b[k] = v
	}
}

// Items splits a string-typed collection value into its items. Collections
// are comma-delimited; items are trimmed and empties dropped.
func (v Value) Items() []string {
	parts := strings.Split(v.Render(), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
