package probeql

import "errors"

var (
	// ErrNilQuery is returned when a nil query is planned.
	ErrNilQuery = errors.New("probeql: nil query")
	// ErrUnknownTarget is returned for a target outside the six known shapes.
	ErrUnknownTarget = errors.New("probeql: unknown target")
	// ErrUnknownPredicate is returned for a predicate variant the planner
	// cannot compile.
	ErrUnknownPredicate = errors.New("probeql: unknown predicate")
	// ErrUnknownScope is returned for a scope variant the planner cannot
	// compile.
	ErrUnknownScope = errors.New("probeql: unknown scope")
)
