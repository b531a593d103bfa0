package probe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/jward/probeql/internal/result"
)

// CallEvent is one observed call.
type CallEvent struct {
	Sequence    int64  `json:"sequence"`
	PC          int    `json:"pc"`
	TargetOwner string `json:"owner"`
	TargetName  string `json:"name"`
	TargetDesc  string `json:"desc"`
}

// FieldEvent is one observed field access. Value carries the written value
// when the runtime captured it; "null" denotes a null reference.
type FieldEvent struct {
	Sequence int64  `json:"sequence"`
	PC       int    `json:"pc"`
	Owner    string `json:"owner"`
	Field    string `json:"field"`
	Desc     string `json:"desc"`
	IsWrite  bool   `json:"write"`
	Value    string `json:"value,omitempty"`
}

// StringEvent is one observed string creation.
type StringEvent struct {
	Sequence int64  `json:"sequence"`
	PC       int    `json:"pc"`
	Value    string `json:"value"`
	Origin   string `json:"origin"`
}

// ExceptionEvent is one observed throw or catch.
type ExceptionEvent struct {
	Sequence int64  `json:"sequence"`
	PC       int    `json:"pc"`
	Type     string `json:"type"`
	Caught   bool   `json:"caught"`
}

// BranchEvent is one observed conditional branch.
type BranchEvent struct {
	Sequence int64 `json:"sequence"`
	FromPC   int   `json:"from"`
	ToPC     int   `json:"to"`
	Taken    bool  `json:"taken"`
}

// Result is the complete evidence captured by one execution of one method.
// It is immutable; accessors return copies.
type Result struct {
	methodSignature  string
	instructionCount int64
	executionTimeNs  int64
	allocations      map[string]int
	calls            []CallEvent
	fields           []FieldEvent
	stringsSeen      []StringEvent
	exceptions       []ExceptionEvent
	branches         []BranchEvent
}

func (r *Result) MethodSignature() string           { return r.methodSignature }
func (r *Result) InstructionCount() int64           { return r.instructionCount }
func (r *Result) ExecutionTimeNs() int64            { return r.executionTimeNs }
func (r *Result) Allocations() map[string]int       { return maps.Clone(r.allocations) }
func (r *Result) CallEvents() []CallEvent           { return slices.Clone(r.calls) }
func (r *Result) FieldEvents() []FieldEvent         { return slices.Clone(r.fields) }
func (r *Result) StringEvents() []StringEvent       { return slices.Clone(r.stringsSeen) }
func (r *Result) ExceptionEvents() []ExceptionEvent { return slices.Clone(r.exceptions) }
func (r *Result) BranchEvents() []BranchEvent       { return slices.Clone(r.branches) }

// AllocationCount returns how many objects of typeName were allocated.
func (r *Result) AllocationCount(typeName string) int {
	return r.allocations[typeName]
}

// HasCallTo reports whether a call event targets name on an owner
// containing owner. Empty arguments match any.
func (r *Result) HasCallTo(owner, name string) bool {
	for _, ce := range r.calls {
		if (owner == "" || strings.Contains(ce.TargetOwner, owner)) &&
			(name == "" || ce.TargetName == name) {
			return true
		}
	}
	return false
}

// BranchCoverage is the fraction of branch outcomes observed: each distinct
// branch site has two outcomes. A result without branches has coverage 0.
func (r *Result) BranchCoverage() float64 {
	type outcome struct {
		from  int
		taken bool
	}
	sites := map[int]bool{}
	seen := map[outcome]bool{}
	for _, b := range r.branches {
		sites[b.FromPC] = true
		seen[outcome{b.FromPC, b.Taken}] = true
	}
	if len(sites) == 0 {
		return 0
	}
	return float64(len(seen)) / float64(2*len(sites))
}

// ReachedBlock reports whether any branch landed on the block id, given as
// a decimal pc.
func (r *Result) ReachedBlock(blockID string) bool {
	for _, b := range r.branches {
		if fmt.Sprint(b.ToPC) == blockID {
			return true
		}
	}
	return false
}

// ToMethodRows projects the result as one method row with call evidence.
func (r *Result) ToMethodRows() []result.Row {
	evidence := make([]result.Evidence, 0, len(r.calls))
	for _, ce := range r.calls {
		evidence = append(evidence, result.CallEvidence(ce.Sequence, r.methodSignature, ce.PC,
			ce.TargetOwner+"."+ce.TargetName+ce.TargetDesc))
	}
	return []result.Row{
		result.NewRow(r.methodSignature).
			Target(result.ParseMethodTarget(r.methodSignature)).
			Column("instructionCount", r.instructionCount).
			Column("allocations", r.Allocations()).
			Evidence(evidence).
			Build(),
	}
}

// ToClassRows projects the result as one row for the declaring class.
func (r *Result) ToClassRows() []result.Row {
	class := result.ClassOf(r.methodSignature)
	return []result.Row{
		result.NewRow(class).
			Target(result.ClassTarget{Class: class}).
			Column("methods", 1).
			Column("allocations", r.Allocations()).
			Build(),
	}
}

// ToPathRows projects execution paths. Path reconstruction is not captured
// by the runtime, so there are none.
func (r *Result) ToPathRows() []result.Row {
	return nil
}

// ToEventRows projects call events followed by field events.
func (r *Result) ToEventRows() []result.Row {
	rows := make([]result.Row, 0, len(r.calls)+len(r.fields))
	for _, ce := range r.calls {
		rows = append(rows, result.NewRow("CALL "+ce.TargetOwner+"."+ce.TargetName).
			Target(result.ParsePCTarget(r.methodSignature, ce.PC)).
			Column("sequence", ce.Sequence).
			Column("pc", ce.PC).
			Build())
	}
	for _, fe := range r.fields {
		verb := "READ "
		if fe.IsWrite {
			verb = "WRITE "
		}
		rows = append(rows, result.NewRow(verb+fe.Field).
			Target(result.ParsePCTarget(r.methodSignature, fe.PC)).
			Column("sequence", fe.Sequence).
			Column("pc", fe.PC).
			Build())
	}
	return rows
}

const stringRowLimit = 100

// ToStringRows projects one row per captured string.
func (r *Result) ToStringRows() []result.Row {
	rows := make([]result.Row, 0, len(r.stringsSeen))
	for _, se := range r.stringsSeen {
		rows = append(rows, result.NewRow(result.Truncate(se.Value, stringRowLimit)).
			Target(result.ParsePCTarget(r.methodSignature, se.PC)).
			Column("sequence", se.Sequence).
			Column("pc", se.PC).
			Column("origin", se.Origin).
			Build())
	}
	return rows
}

// ToObjectRows projects one row per allocated type, sorted by type name.
func (r *Result) ToObjectRows() []result.Row {
	types := slices.Sorted(maps.Keys(r.allocations))
	rows := make([]result.Row, 0, len(types))
	for _, t := range types {
		rows = append(rows, result.NewRow(t).Column("count", r.allocations[t]).Build())
	}
	return rows
}

// ResultBuilder records evidence for one execution.
type ResultBuilder struct {
	r Result
}

// NewResultBuilder starts a result for the executed method.
func NewResultBuilder(methodSignature string) *ResultBuilder {
	return &ResultBuilder{r: Result{methodSignature: methodSignature, allocations: map[string]int{}}}
}

func (b *ResultBuilder) InstructionCount(n int64) *ResultBuilder {
	b.r.instructionCount = n
	return b
}

func (b *ResultBuilder) ExecutionTime(ns int64) *ResultBuilder {
	b.r.executionTimeNs = ns
	return b
}

func (b *ResultBuilder) RecordAllocation(typeName string) *ResultBuilder {
	b.r.allocations[typeName]++
	return b
}

func (b *ResultBuilder) RecordCall(seq int64, pc int, owner, name, desc string) *ResultBuilder {
	b.r.calls = append(b.r.calls, CallEvent{seq, pc, owner, name, desc})
	return b
}

func (b *ResultBuilder) RecordFieldAccess(seq int64, pc int, owner, name, desc string, isWrite bool) *ResultBuilder {
	b.r.fields = append(b.r.fields, FieldEvent{Sequence: seq, PC: pc, Owner: owner, Field: name, Desc: desc, IsWrite: isWrite})
	return b
}

// RecordFieldWrite records a write together with the written value.
func (b *ResultBuilder) RecordFieldWrite(seq int64, pc int, owner, name, desc, value string) *ResultBuilder {
	b.r.fields = append(b.r.fields, FieldEvent{Sequence: seq, PC: pc, Owner: owner, Field: name, Desc: desc, IsWrite: true, Value: value})
	return b
}

func (b *ResultBuilder) RecordString(seq int64, pc int, value, origin string) *ResultBuilder {
	b.r.stringsSeen = append(b.r.stringsSeen, StringEvent{seq, pc, value, origin})
	return b
}

func (b *ResultBuilder) RecordException(seq int64, pc int, typeName string, caught bool) *ResultBuilder {
	b.r.exceptions = append(b.r.exceptions, ExceptionEvent{seq, pc, typeName, caught})
	return b
}

func (b *ResultBuilder) RecordBranch(seq int64, from, to int, taken bool) *ResultBuilder {
	b.r.branches = append(b.r.branches, BranchEvent{seq, from, to, taken})
	return b
}

// Build returns an independent copy of the recorded result.
func (b *ResultBuilder) Build() *Result {
	r := b.r
	r.allocations = maps.Clone(b.r.allocations)
	r.calls = slices.Clone(b.r.calls)
	r.fields = slices.Clone(b.r.fields)
	r.stringsSeen = slices.Clone(b.r.stringsSeen)
	r.exceptions = slices.Clone(b.r.exceptions)
	r.branches = slices.Clone(b.r.branches)
	return &r
}

// resultJSON is the wire form exchanged with the execution runtime.
type resultJSON struct {
	MethodSignature  string           `json:"method"`
	InstructionCount int64            `json:"instructionCount"`
	ExecutionTimeNs  int64            `json:"executionTimeNs"`
	Allocations      map[string]int   `json:"allocations,omitempty"`
	Calls            []CallEvent      `json:"calls,omitempty"`
	Fields           []FieldEvent     `json:"fields,omitempty"`
	Strings          []StringEvent    `json:"strings,omitempty"`
	Exceptions       []ExceptionEvent `json:"exceptions,omitempty"`
	Branches         []BranchEvent    `json:"branches,omitempty"`
}

func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		MethodSignature:  r.methodSignature,
		InstructionCount: r.instructionCount,
		ExecutionTimeNs:  r.executionTimeNs,
		Allocations:      r.allocations,
		Calls:            r.calls,
		Fields:           r.fields,
		Strings:          r.stringsSeen,
		Exceptions:       r.exceptions,
		Branches:         r.branches,
	})
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.MethodSignature == "" {
		return fmt.Errorf("probe result: missing method signature")
	}
	*r = Result{
		methodSignature:  in.MethodSignature,
		instructionCount: in.InstructionCount,
		executionTimeNs:  in.ExecutionTimeNs,
		allocations:      in.Allocations,
		calls:            in.Calls,
		fields:           in.Fields,
		stringsSeen:      in.Strings,
		exceptions:       in.Exceptions,
		branches:         in.Branches,
	}
	if r.allocations == nil {
		r.allocations = map[string]int{}
	}
	return nil
}

// ReadResults decodes captured evidence: a JSON array of results or a
// single result object.
func ReadResults(rd io.Reader) ([]*Result, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '[' {
		var out []*Result
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
		return out, nil
	}
	var one Result
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return []*Result{&one}, nil
}
