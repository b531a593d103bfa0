package probe

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Capability is a runtime feature a probe set requires.
type Capability int

const (
	CallTracking Capability = iota
	AllocationTracking
	FieldTracking
	StringTracking
	ExceptionTracking
	BranchTracking
	CoverageTracking
)

var capabilityNames = [...]string{
	CallTracking:       "CALL_TRACKING",
	AllocationTracking: "ALLOCATION_TRACKING",
	FieldTracking:      "FIELD_TRACKING",
	StringTracking:     "STRING_TRACKING",
	ExceptionTracking:  "EXCEPTION_TRACKING",
	BranchTracking:     "BRANCH_TRACKING",
	CoverageTracking:   "COVERAGE_TRACKING",
}

func (c Capability) String() string {
	if int(c) >= 0 && int(c) < len(capabilityNames) {
		return capabilityNames[c]
	}
	return fmt.Sprintf("Capability(%d)", int(c))
}

func (c Capability) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// capabilityFor maps probe families one-to-one onto capabilities.
func capabilityFor(t Type) Capability {
	return Capability(t)
}

// Set is an immutable collection of probes in registration order.
type Set struct {
	probes []Spec
}

// EmptySet returns a set with no probes.
func EmptySet() Set { return Set{} }

// Probes returns the probes in registration order.
func (s Set) Probes() []Spec { return slices.Clone(s.probes) }

// Len returns the number of distinct probes.
func (s Set) Len() int { return len(s.probes) }

// IsEmpty reports whether no probes were registered.
func (s Set) IsEmpty() bool { return len(s.probes) == 0 }

// HasProbeType reports whether any probe belongs to family t.
func (s Set) HasProbeType(t Type) bool {
	return slices.ContainsFunc(s.probes, func(p Spec) bool { return p.Type() == t })
}

// ProbesOfType returns the probes of family t.
func (s Set) ProbesOfType(t Type) []Spec {
	var out []Spec
	for _, p := range s.probes {
		if p.Type() == t {
			out = append(out, p)
		}
	}
	return out
}

// Capabilities returns the runtime capabilities the set needs, sorted.
func (s Set) Capabilities() []Capability {
	var caps []Capability
	for _, p := range s.probes {
		c := capabilityFor(p.Type())
		if !slices.Contains(caps, c) {
			caps = append(caps, c)
		}
	}
	slices.Sort(caps)
	return caps
}

// HasCapability reports whether the set needs capability c.
func (s Set) HasCapability(c Capability) bool {
	return slices.Contains(s.Capabilities(), c)
}

type probeJSON struct {
	Type        Type   `json:"type"`
	Description string `json:"description"`
}

func (s Set) MarshalJSON() ([]byte, error) {
	out := make([]probeJSON, len(s.probes))
	for i, p := range s.probes {
		out[i] = probeJSON{Type: p.Type(), Description: p.Describe()}
	}
	return json.Marshal(out)
}

// SetBuilder accumulates probes. Registering an identical probe twice keeps
// one copy.
type SetBuilder struct {
	probes []Spec
}

// NewSetBuilder returns an empty builder.
func NewSetBuilder() *SetBuilder {
	return &SetBuilder{}
}

// Add registers a probe.
func (b *SetBuilder) Add(p Spec) *SetBuilder {
	if !slices.Contains(b.probes, p) {
		b.probes = append(b.probes, p)
	}
	return b
}

// AddCallProbe captures calls to owner.name(desc); empty parts match any.
func (b *SetBuilder) AddCallProbe(owner, name, desc string) *SetBuilder {
	return b.Add(CallProbe{Owner: owner, Name: name, Desc: desc})
}

// AddAllocProbe counts allocations of typeName.
func (b *SetBuilder) AddAllocProbe(typeName string) *SetBuilder {
	return b.Add(AllocProbe{TypeName: typeName, TrackCount: true})
}

// AddAllAllocsProbe counts allocations of every type.
func (b *SetBuilder) AddAllAllocsProbe() *SetBuilder {
	return b.Add(AllocProbe{TrackCount: true})
}

// AddFieldProbe captures accesses to a field.
func (b *SetBuilder) AddFieldProbe(p FieldProbe) *SetBuilder {
	return b.Add(p)
}

// AddStringProbe captures every string creation with its value.
func (b *SetBuilder) AddStringProbe() *SetBuilder {
	return b.Add(StringProbe{CaptureValue: true})
}

// AddStringPatternProbe captures string creations matching a pattern.
func (b *SetBuilder) AddStringPatternProbe(pattern string, regex bool) *SetBuilder {
	return b.Add(StringProbe{Pattern: pattern, Regex: regex, CaptureValue: true})
}

// AddExceptionProbe captures throws of typeName and its subtypes.
func (b *SetBuilder) AddExceptionProbe(typeName string, includeSubtypes bool) *SetBuilder {
	return b.Add(ExceptionProbe{TypeName: typeName, IncludeSubtypes: includeSubtypes, Throws: true})
}

// AddBranchProbe captures both outcomes of every conditional branch.
func (b *SetBuilder) AddBranchProbe() *SetBuilder {
	return b.Add(BranchProbe{Taken: true, NotTaken: true})
}

// AddCoverageProbe captures block coverage.
func (b *SetBuilder) AddCoverageProbe() *SetBuilder {
	return b.Add(CoverageProbe{Block: true})
}

// Build returns the immutable set.
func (b *SetBuilder) Build() Set {
	return Set{probes: slices.Clone(b.probes)}
}
