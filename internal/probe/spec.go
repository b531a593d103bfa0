// Package probe describes runtime instrumentation requests (Spec, Set) and
// the evidence bundle an execution produces (Result).
package probe

import (
	"fmt"
	"strings"
)

// Type is the instrumentation family a probe belongs to.
type Type int

const (
	TypeCall Type = iota
	TypeAllocation
	TypeField
	TypeString
	TypeException
	TypeBranch
	TypeCoverage
)

var typeNames = [...]string{
	TypeCall:       "CALL",
	TypeAllocation: "ALLOCATION",
	TypeField:      "FIELD",
	TypeString:     "STRING",
	TypeException:  "EXCEPTION",
	TypeBranch:     "BRANCH",
	TypeCoverage:   "COVERAGE",
}

func (t Type) String() string {
	if int(t) >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Spec is one instrumentation request. Variants are comparable values so a
// Set can collapse duplicates.
type Spec interface {
	Type() Type
	Describe() string
}

// CallProbe captures calls to matching methods. Empty fields match any.
type CallProbe struct {
	Owner string
	Name  string
	Desc  string
}

// AllocProbe captures allocations of a type; empty Type captures all.
type AllocProbe struct {
	TypeName       string
	TrackCount     bool
	TrackInstances bool
}

// FieldProbe captures field accesses.
type FieldProbe struct {
	Owner       string
	Name        string
	Desc        string
	Reads       bool
	Writes      bool
	Transitions bool
}

// StringProbe captures string creation; an empty Pattern captures all.
type StringProbe struct {
	Pattern      string
	Regex        bool
	CaptureValue bool
}

// ExceptionProbe captures throws and catches of a type.
type ExceptionProbe struct {
	TypeName        string
	IncludeSubtypes bool
	Throws          bool
	Catches         bool
}

// BranchProbe captures conditional branch outcomes.
type BranchProbe struct {
	Taken    bool
	NotTaken bool
}

// CoverageProbe captures block or edge coverage.
type CoverageProbe struct {
	Block bool
	Edge  bool
}

func (CallProbe) Type() Type      { return TypeCall }
func (AllocProbe) Type() Type     { return TypeAllocation }
func (FieldProbe) Type() Type     { return TypeField }
func (StringProbe) Type() Type    { return TypeString }
func (ExceptionProbe) Type() Type { return TypeException }
func (BranchProbe) Type() Type    { return TypeBranch }
func (CoverageProbe) Type() Type  { return TypeCoverage }

func orAny(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

func (p CallProbe) Describe() string {
	return "call " + orAny(p.Owner) + "." + orAny(p.Name) + p.Desc
}

func (p AllocProbe) Describe() string { return "alloc " + orAny(p.TypeName) }

func (p FieldProbe) Describe() string {
	var modes []string
	if p.Reads {
		modes = append(modes, "reads")
	}
	if p.Writes {
		modes = append(modes, "writes")
	}
	if p.Transitions {
		modes = append(modes, "transitions")
	}
	return fmt.Sprintf("field %s.%s [%s]", orAny(p.Owner), orAny(p.Name), strings.Join(modes, ","))
}

func (p StringProbe) Describe() string {
	if p.Regex {
		return "string /" + p.Pattern + "/"
	}
	return "string " + orAny(p.Pattern)
}

func (p ExceptionProbe) Describe() string { return "exception " + orAny(p.TypeName) }
func (p BranchProbe) Describe() string    { return "branch" }
func (p CoverageProbe) Describe() string  { return "coverage" }

// memberMatches applies wildcard member rules: empty fields match any, and
// an owner also matches when the concrete owner ends with "/"+owner.
func memberMatches(wantOwner, wantName, wantDesc, owner, name, desc string) bool {
	if wantOwner != "" && wantOwner != owner && !strings.HasSuffix(owner, "/"+wantOwner) {
		return false
	}
	if wantName != "" && wantName != name {
		return false
	}
	return wantDesc == "" || wantDesc == desc
}

// Matches reports whether a call to owner.name(desc) is captured.
func (p CallProbe) Matches(owner, name, desc string) bool {
	return memberMatches(p.Owner, p.Name, p.Desc, owner, name, desc)
}

// Matches reports whether an access to owner.name:desc is captured.
func (p FieldProbe) Matches(owner, name, desc string, isWrite bool) bool {
	if isWrite && !(p.Writes || p.Transitions) {
		return false
	}
	if !isWrite && !p.Reads {
		return false
	}
	return memberMatches(p.Owner, p.Name, p.Desc, owner, name, desc)
}

// Matches reports whether an allocation of typeName is captured.
func (p AllocProbe) Matches(typeName string) bool {
	return p.TypeName == "" || p.TypeName == typeName
}

// Matches reports whether a throw (or catch) of typeName is captured.
// Subtype matching is by name containment since the hierarchy is not known
// here.
func (p ExceptionProbe) Matches(typeName string, caught bool) bool {
	if caught && !p.Catches || !caught && !p.Throws {
		return false
	}
	if p.TypeName == "" || p.TypeName == typeName {
		return true
	}
	return p.IncludeSubtypes && strings.Contains(typeName, p.TypeName)
}
