// Package postfilter decides, after execution, whether a probe result
// satisfies a query. Filters are pure and safe for concurrent use.
package postfilter

import "github.com/jward/probeql/internal/probe"

// Filter tests one execution result.
type Filter interface {
	Test(r *probe.Result) bool
}

// Func adapts a function to Filter.
type Func func(r *probe.Result) bool

func (f Func) Test(r *probe.Result) bool { return f(r) }

type constFilter bool

func (c constFilter) Test(*probe.Result) bool { return bool(c) }

// AlwaysTrue accepts every result.
func AlwaysTrue() Filter { return constFilter(true) }

// AlwaysFalse rejects every result.
func AlwaysFalse() Filter { return constFilter(false) }

// IsAlwaysTrue reports whether f is the AlwaysTrue filter.
func IsAlwaysTrue(f Filter) bool { return f == AlwaysTrue() }

// FromPredicate wraps fn.
func FromPredicate(fn func(r *probe.Result) bool) Filter { return Func(fn) }

// And accepts when both accept. The right side is not consulted when the
// left rejects.
func And(a, b Filter) Filter {
	switch {
	case a == AlwaysTrue():
		return b
	case b == AlwaysTrue():
		return a
	case a == AlwaysFalse(), b == AlwaysFalse():
		return AlwaysFalse()
	}
	return Func(func(r *probe.Result) bool { return a.Test(r) && b.Test(r) })
}

// Or accepts when either accepts. The right side is not consulted when the
// left accepts.
func Or(a, b Filter) Filter {
	switch {
	case a == AlwaysFalse():
		return b
	case b == AlwaysFalse():
		return a
	case a == AlwaysTrue(), b == AlwaysTrue():
		return AlwaysTrue()
	}
	return Func(func(r *probe.Result) bool { return a.Test(r) || b.Test(r) })
}

// Negate inverts a.
func Negate(a Filter) Filter {
	switch a {
	case AlwaysTrue():
		return AlwaysFalse()
	case AlwaysFalse():
		return AlwaysTrue()
	}
	return Func(func(r *probe.Result) bool { return !a.Test(r) })
}
