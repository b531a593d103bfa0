// Package staticfilter narrows the pool of candidate methods and classes
// using only indexed facts: names, string constants and cross references.
package staticfilter

import (
	"context"
	"fmt"
	"slices"

	"github.com/jward/probeql/internal/ast"
)

// Method identifies one method in the index.
type Method struct {
	Owner string
	Name  string
	Desc  string
}

// Signature returns "owner.name(desc)".
func (m Method) Signature() string {
	return m.Owner + "." + m.Name + m.Desc
}

// Class is one indexed class with its declared methods.
type Class struct {
	Name    string
	Methods []Method
}

// Kind classifies a cross reference.
type Kind string

const (
	KindCall       Kind = "call"
	KindFieldRead  Kind = "field_read"
	KindFieldWrite Kind = "field_write"
)

// Xref is one reference from a source method to a target member. PC is the
// ordinal of the reference within the source method.
type Xref struct {
	SourceClass  string
	SourceMethod string
	SourceDesc   string
	TargetOwner  string
	TargetName   string
	TargetDesc   string
	Kind         Kind
	PC           int
	Line         int
	ArgKinds     []ast.ArgumentType
}

// SourceSignature returns the signature of the referencing method.
func (x Xref) SourceSignature() string {
	return x.SourceClass + "." + x.SourceMethod + x.SourceDesc
}

// TargetString renders the referenced member.
func (x Xref) TargetString() string {
	if x.Kind == KindCall {
		return x.TargetOwner + "." + x.TargetName + x.TargetDesc
	}
	return x.TargetOwner + "." + x.TargetName + ":" + x.TargetDesc
}

// HasArgumentOfType reports whether any argument at the site satisfies want.
// ANY is satisfied by every site, including sites without arguments.
func (x Xref) HasArgumentOfType(want ast.ArgumentType) bool {
	if want == ast.ArgAny {
		return true
	}
	return slices.ContainsFunc(x.ArgKinds, want.Matches)
}

type siteKey struct {
	source, target string
	kind           Kind
	pc, line       int
}

func (x Xref) key() siteKey {
	return siteKey{x.SourceSignature(), x.TargetString(), x.Kind, x.PC, x.Line}
}

// Candidate is a method that survived filtering, with the sites that
// justified it. Name and constant filters leave Sites empty.
type Candidate struct {
	Method Method
	Sites  []Xref
}

// Index is the read side of the cross-reference store.
type Index interface {
	Methods(ctx context.Context) ([]Method, error)
	Classes(ctx context.Context) ([]Class, error)
	// RefsToMethod returns call sites of ref. An empty Desc matches by name.
	RefsToMethod(ctx context.Context, ref ast.MemberRef) ([]Xref, error)
	// RefsToField returns reads and writes of ref.
	RefsToField(ctx context.Context, ref ast.MemberRef) ([]Xref, error)
	ClassStrings(ctx context.Context, class string) ([]string, error)
}

// Filter narrows methods and classes. Results keep input order.
type Filter interface {
	FilterMethods(ctx context.Context, methods []Method) ([]Candidate, error)
	FilterClasses(ctx context.Context, classes []Class) ([]Class, error)
	String() string
}

func asCandidates(methods []Method) []Candidate {
	out := make([]Candidate, len(methods))
	for i, m := range methods {
		out[i] = Candidate{Method: m}
	}
	return out
}

type allFilter struct{}

func (allFilter) FilterMethods(_ context.Context, methods []Method) ([]Candidate, error) {
	return asCandidates(methods), nil
}

func (allFilter) FilterClasses(_ context.Context, classes []Class) ([]Class, error) {
	return slices.Clone(classes), nil
}

func (allFilter) String() string { return "all" }

type noneFilter struct{}

func (noneFilter) FilterMethods(context.Context, []Method) ([]Candidate, error) { return nil, nil }
func (noneFilter) FilterClasses(context.Context, []Class) ([]Class, error)      { return nil, nil }
func (noneFilter) String() string                                               { return "none" }

// All keeps everything.
func All() Filter { return allFilter{} }

// None keeps nothing.
func None() Filter { return noneFilter{} }

// IsAll reports whether f is the All filter.
func IsAll(f Filter) bool {
	_, ok := f.(allFilter)
	return ok
}

type op int

const (
	opAnd op = iota
	opOr
)

type composite struct {
	left, right Filter
	op          op
}

// And keeps what both filters keep. All is the identity.
func And(left, right Filter) Filter {
	switch {
	case IsAll(left):
		return right
	case IsAll(right):
		return left
	}
	return &composite{left: left, right: right, op: opAnd}
}

// Or keeps what either filter keeps.
func Or(left, right Filter) Filter {
	if IsAll(left) || IsAll(right) {
		return All()
	}
	return &composite{left: left, right: right, op: opOr}
}

func (c *composite) String() string {
	name := "and"
	if c.op == opOr {
		name = "or"
	}
	return fmt.Sprintf("%s(%s, %s)", name, c.left, c.right)
}

func (c *composite) FilterMethods(ctx context.Context, methods []Method) ([]Candidate, error) {
	left, err := c.left.FilterMethods(ctx, methods)
	if err != nil {
		return nil, err
	}
	right, err := c.right.FilterMethods(ctx, methods)
	if err != nil {
		return nil, err
	}
	l := indexCandidates(left)
	r := indexCandidates(right)

	var out []Candidate
	for _, m := range methods {
		lc, inLeft := l[m]
		rc, inRight := r[m]
		switch {
		case inLeft && inRight:
			out = append(out, Candidate{Method: m, Sites: mergeSites(lc.Sites, rc.Sites)})
		case c.op == opOr && inLeft:
			out = append(out, lc)
		case c.op == opOr && inRight:
			out = append(out, rc)
		}
	}
	return out, nil
}

func (c *composite) FilterClasses(ctx context.Context, classes []Class) ([]Class, error) {
	left, err := c.left.FilterClasses(ctx, classes)
	if err != nil {
		return nil, err
	}
	right, err := c.right.FilterClasses(ctx, classes)
	if err != nil {
		return nil, err
	}
	inLeft := classNames(left)
	inRight := classNames(right)

	var out []Class
	for _, cl := range classes {
		l, r := inLeft[cl.Name], inRight[cl.Name]
		if (c.op == opAnd && l && r) || (c.op == opOr && (l || r)) {
			out = append(out, cl)
		}
	}
	return out, nil
}

func indexCandidates(cs []Candidate) map[Method]Candidate {
	out := make(map[Method]Candidate, len(cs))
	for _, c := range cs {
		if prev, ok := out[c.Method]; ok {
			c.Sites = mergeSites(prev.Sites, c.Sites)
		}
		out[c.Method] = c
	}
	return out
}

func mergeSites(a, b []Xref) []Xref {
	if len(b) == 0 {
		return a
	}
	seen := make(map[siteKey]bool, len(a))
	out := slices.Clone(a)
	for _, x := range a {
		seen[x.key()] = true
	}
	for _, x := range b {
		if !seen[x.key()] {
			seen[x.key()] = true
			out = append(out, x)
		}
	}
	return out
}

func classNames(cs []Class) map[string]bool {
	out := make(map[string]bool, len(cs))
	for _, c := range cs {
		out[c.Name] = true
	}
	return out
}
