package ast

import (
	"fmt"
	"strconv"
)

// Predicate is a node of the boolean condition tree of a query.
// The marker method keeps the set of variants closed to this package.
type Predicate interface {
	predicate()
	String() string
}

// Calls matches code that invokes a method. Args optionally restricts the
// kind of argument passed at the call site.
type Calls struct {
	Ref  MemberRef
	Args ArgumentType
}

// ReadsField matches code that reads a field.
type ReadsField struct {
	Ref MemberRef
}

// WritesField matches code that writes a field.
type WritesField struct {
	Ref MemberRef
}

// Transition is the value change FieldBecomes looks for.
type Transition int

const (
	BecomesNonNull Transition = iota
	BecomesNull
	Changed
)

func (t Transition) String() string {
	switch t {
	case BecomesNonNull:
		return "NON_NULL"
	case BecomesNull:
		return "NULL"
	case Changed:
		return "CHANGED"
	}
	return fmt.Sprintf("Transition(%d)", int(t))
}

// FieldBecomes matches executions where a field takes on a value state.
type FieldBecomes struct {
	Ref        MemberRef
	Transition Transition
}

// AllocCount compares the number of allocations of a type.
type AllocCount struct {
	Type      string
	Op        CompareOp
	Threshold int
}

// InstructionCount compares the number of executed instructions.
type InstructionCount struct {
	Op        CompareOp
	Threshold int64
}

// Coverage compares branch coverage, overall or for one block.
type Coverage struct {
	BlockID   string
	Op        CompareOp
	Threshold float64
}

// ContainsString matches code that references or builds a string.
type ContainsString struct {
	Pattern         string
	Regex           bool
	CaseInsensitive bool
}

// Throws matches executions that throw an exception type.
type Throws struct {
	Type            string
	IncludeSubtypes bool
}

// Before anchors Event as happening before the rest of a query.
type Before struct {
	Event Predicate
}

// After anchors Event as happening after the rest of a query.
type After struct {
	Event Predicate
}

// And is a conjunction.
type And struct {
	Left, Right Predicate
}

// Or is a disjunction.
type Or struct {
	Left, Right Predicate
}

// Not is a negation.
type Not struct {
	Inner Predicate
}

// Script is a Risor expression evaluated against captured evidence. The
// final expression of Source must produce a bool.
type Script struct {
	Name   string
	Source string
}

func (*Calls) predicate()            {}
func (*ReadsField) predicate()       {}
func (*WritesField) predicate()      {}
func (*FieldBecomes) predicate()     {}
func (*AllocCount) predicate()       {}
func (*InstructionCount) predicate() {}
func (*Coverage) predicate()         {}
func (*ContainsString) predicate()   {}
func (*Throws) predicate()           {}
func (*Before) predicate()           {}
func (*After) predicate()            {}
func (*And) predicate()              {}
func (*Or) predicate()               {}
func (*Not) predicate()              {}
func (*Script) predicate()           {}

func (p *Calls) String() string {
	if p.Args != ArgAny {
		return fmt.Sprintf("calls(%s, %s)", p.Ref, p.Args)
	}
	return fmt.Sprintf("calls(%s)", p.Ref)
}

func (p *ReadsField) String() string  { return fmt.Sprintf("reads(%s)", p.Ref) }
func (p *WritesField) String() string { return fmt.Sprintf("writes(%s)", p.Ref) }

func (p *FieldBecomes) String() string {
	return fmt.Sprintf("field(%s) becomes %s", p.Ref, p.Transition)
}

func (p *AllocCount) String() string {
	return fmt.Sprintf("allocs(%s) %s %d", p.Type, p.Op, p.Threshold)
}

func (p *InstructionCount) String() string {
	return fmt.Sprintf("instructions %s %d", p.Op, p.Threshold)
}

func (p *Coverage) String() string {
	th := strconv.FormatFloat(p.Threshold, 'g', -1, 64)
	if p.BlockID != "" {
		return fmt.Sprintf("coverage(%s) %s %s", p.BlockID, p.Op, th)
	}
	return fmt.Sprintf("coverage %s %s", p.Op, th)
}

func (p *ContainsString) String() string {
	switch {
	case p.Regex && p.CaseInsensitive:
		return fmt.Sprintf("strings(/%s/i)", p.Pattern)
	case p.Regex:
		return fmt.Sprintf("strings(/%s/)", p.Pattern)
	}
	return fmt.Sprintf("strings(%q)", p.Pattern)
}

func (p *Throws) String() string  { return fmt.Sprintf("throws(%s)", p.Type) }
func (p *Before) String() string  { return "before " + p.Event.String() }
func (p *After) String() string   { return "after " + p.Event.String() }
func (p *And) String() string     { return "(" + p.Left.String() + " AND " + p.Right.String() + ")" }
func (p *Or) String() string      { return "(" + p.Left.String() + " OR " + p.Right.String() + ")" }
func (p *Not) String() string     { return "NOT " + p.Inner.String() }
func (p *Script) String() string {
	if p.Name != "" {
		return "script(" + p.Name + ")"
	}
	return "script"
}

// StaticallyResolvable reports whether the xref index alone can decide p.
// Only call and field-access predicates, and conjunctions/disjunctions made
// entirely of them, qualify.
func StaticallyResolvable(p Predicate) bool {
	switch p := p.(type) {
	case *Calls, *ReadsField, *WritesField:
		return true
	case *And:
		return StaticallyResolvable(p.Left) && StaticallyResolvable(p.Right)
	case *Or:
		return StaticallyResolvable(p.Left) && StaticallyResolvable(p.Right)
	}
	return false
}

// Walk calls fn for p and every nested predicate, depth first. Walking stops
// early when fn returns false.
func Walk(p Predicate, fn func(Predicate) bool) {
	if p == nil || !fn(p) {
		return
	}
	switch p := p.(type) {
	case *Before:
		Walk(p.Event, fn)
	case *After:
		Walk(p.Event, fn)
	case *And:
		Walk(p.Left, fn)
		Walk(p.Right, fn)
	case *Or:
		Walk(p.Left, fn)
		Walk(p.Right, fn)
	case *Not:
		Walk(p.Inner, fn)
	}
}
