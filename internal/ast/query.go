// Package ast defines the query syntax tree consumed by the planner: a
// Query with a closed set of Scope and Predicate variants, the result
// Target, and the RunSpec execution budget.
package ast

import (
	"fmt"
	"strings"
)

// QueryKind distinguishes FIND queries from SHOW queries. Both compile the
// same way; SHOW is conventionally used for event/string listings.
type QueryKind int

const (
	KindFind QueryKind = iota
	KindShow
)

func (k QueryKind) String() string {
	if k == KindShow {
		return "SHOW"
	}
	return "FIND"
}

// Query is one compiled-to-be request. A nil Scope or Predicate matches
// everything; a nil RunSpec means DefaultRunSpec.
type Query struct {
	Kind      QueryKind
	Target    Target
	Scope     Scope
	Predicate Predicate
	RunSpec   *RunSpec
	Limit     int
	OrderBy   *OrderBy
}

// EffectiveRunSpec returns the query's RunSpec or the default.
func (q *Query) EffectiveRunSpec() RunSpec {
	if q.RunSpec != nil {
		return *q.RunSpec
	}
	return DefaultRunSpec()
}

// Target is the shape of result rows a query asks for.
type Target int

const (
	TargetMethods Target = iota
	TargetClasses
	TargetPaths
	TargetEvents
	TargetStrings
	TargetObjects
)

var targetNames = map[Target]string{
	TargetMethods: "METHODS",
	TargetClasses: "CLASSES",
	TargetPaths:   "PATHS",
	TargetEvents:  "EVENTS",
	TargetStrings: "STRINGS",
	TargetObjects: "OBJECTS",
}

// Targets lists every valid target in declaration order.
func Targets() []Target {
	return []Target{TargetMethods, TargetClasses, TargetPaths, TargetEvents, TargetStrings, TargetObjects}
}

func (t Target) String() string {
	if name, ok := targetNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// Valid reports whether t is one of the six declared targets.
func (t Target) Valid() bool {
	_, ok := targetNames[t]
	return ok
}

// ParseTarget parses a case-insensitive target name.
func ParseTarget(s string) (Target, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for t, name := range targetNames {
		if name == upper {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown target %q", s)
}

// TraceMode controls how much execution trace the runtime keeps.
type TraceMode int

const (
	TraceNone TraceMode = iota
	TraceRing
	TraceFull
)

func (m TraceMode) String() string {
	switch m {
	case TraceNone:
		return "NONE"
	case TraceRing:
		return "RING"
	case TraceFull:
		return "FULL"
	}
	return fmt.Sprintf("TraceMode(%d)", int(m))
}

// ParseTraceMode parses a case-insensitive trace mode name.
func ParseTraceMode(s string) (TraceMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NONE":
		return TraceNone, nil
	case "RING":
		return TraceRing, nil
	case "FULL":
		return TraceFull, nil
	}
	return 0, fmt.Errorf("unknown trace mode %q", s)
}

// RunSpec carries execution parameters. Enforcement belongs to the
// execution runtime.
type RunSpec struct {
	Seeds           int       `json:"seeds"`
	MaxInstructions int       `json:"maxInstructions"`
	MaxDepth        int       `json:"maxDepth"`
	TraceMode       TraceMode `json:"traceMode"`
	TimeBudgetMs    int       `json:"timeBudgetMs"`
}

// DefaultRunSpec returns the budget used when a query supplies none.
func DefaultRunSpec() RunSpec {
	return RunSpec{
		Seeds:           10,
		MaxInstructions: 100000,
		MaxDepth:        50,
		TraceMode:       TraceRing,
		TimeBudgetMs:    60000,
	}
}

// OrderBy sorts result rows by a column.
type OrderBy struct {
	Key       string
	Ascending bool
}

// CompareOp is a numeric comparison used by count and coverage predicates.
type CompareOp int

const (
	OpGT CompareOp = iota
	OpGTE
	OpLT
	OpLTE
	OpEQ
	OpNEQ
)

var opSymbols = map[CompareOp]string{
	OpGT:  ">",
	OpGTE: ">=",
	OpLT:  "<",
	OpLTE: "<=",
	OpEQ:  "==",
	OpNEQ: "!=",
}

func (op CompareOp) String() string {
	if s, ok := opSymbols[op]; ok {
		return s
	}
	return fmt.Sprintf("CompareOp(%d)", int(op))
}

// Test applies the comparison as "actual op threshold".
func (op CompareOp) Test(actual, threshold float64) bool {
	switch op {
	case OpGT:
		return actual > threshold
	case OpGTE:
		return actual >= threshold
	case OpLT:
		return actual < threshold
	case OpLTE:
		return actual <= threshold
	case OpEQ:
		return actual == threshold
	case OpNEQ:
		return actual != threshold
	}
	return false
}

// ParseCompareOp parses an operator symbol such as ">=".
func ParseCompareOp(s string) (CompareOp, error) {
	s = strings.TrimSpace(s)
	if s == "=" {
		return OpEQ, nil
	}
	for op, sym := range opSymbols {
		if sym == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown comparison operator %q", s)
}

// ArgumentType classifies how a call-site argument is produced.
type ArgumentType int

const (
	ArgAny ArgumentType = iota
	ArgLiteral
	ArgDynamic
	ArgField
	ArgLocal
	ArgCall
)

var argNames = map[ArgumentType]string{
	ArgAny:     "ANY",
	ArgLiteral: "LITERAL",
	ArgDynamic: "DYNAMIC",
	ArgField:   "FIELD",
	ArgLocal:   "LOCAL",
	ArgCall:    "CALL",
}

func (a ArgumentType) String() string {
	if s, ok := argNames[a]; ok {
		return s
	}
	return fmt.Sprintf("ArgumentType(%d)", int(a))
}

// Matches reports whether an observed argument kind satisfies a.
// ANY matches everything; DYNAMIC matches FIELD, LOCAL and CALL.
func (a ArgumentType) Matches(actual ArgumentType) bool {
	switch a {
	case ArgAny:
		return true
	case ArgDynamic:
		return actual == ArgField || actual == ArgLocal || actual == ArgCall
	}
	return a == actual
}

// ParseArgumentType parses an argument kind name. Unknown or empty input
// yields ArgAny.
func ParseArgumentType(s string) ArgumentType {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for a, name := range argNames {
		if name == upper {
			return a
		}
	}
	return ArgAny
}
