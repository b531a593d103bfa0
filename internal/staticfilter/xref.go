package staticfilter

import (
	"context"
	"fmt"

	"github.com/jward/probeql/internal/ast"
)

// XrefFilter keeps methods that reference a target member. Each surviving
// candidate carries the references that matched.
type XrefFilter struct {
	idx  Index
	ref  ast.MemberRef
	kind Kind
	args ast.ArgumentType
}

// CallsMethod keeps callers of ref with at least one argument of kind args
// at the call site.
func CallsMethod(idx Index, ref ast.MemberRef, args ast.ArgumentType) *XrefFilter {
	return &XrefFilter{idx: idx, ref: ref, kind: KindCall, args: args}
}

// ReadsField keeps methods that read ref.
func ReadsField(idx Index, ref ast.MemberRef) *XrefFilter {
	return &XrefFilter{idx: idx, ref: ref, kind: KindFieldRead}
}

// WritesField keeps methods that write ref.
func WritesField(idx Index, ref ast.MemberRef) *XrefFilter {
	return &XrefFilter{idx: idx, ref: ref, kind: KindFieldWrite}
}

func (f *XrefFilter) refs(ctx context.Context) ([]Xref, error) {
	if f.kind == KindCall {
		refs, err := f.idx.RefsToMethod(ctx, f.ref)
		if err != nil {
			return nil, fmt.Errorf("refs to method %s: %w", f.ref, err)
		}
		return refs, nil
	}
	refs, err := f.idx.RefsToField(ctx, f.ref)
	if err != nil {
		return nil, fmt.Errorf("refs to field %s: %w", f.ref, err)
	}
	return refs, nil
}

// FilterMethods with no index keeps every method.
func (f *XrefFilter) FilterMethods(ctx context.Context, methods []Method) ([]Candidate, error) {
	if f.idx == nil {
		return asCandidates(methods), nil
	}
	refs, err := f.refs(ctx)
	if err != nil {
		return nil, err
	}

	bySource := map[string][]Xref{}
	for _, x := range refs {
		if x.Kind != f.kind || !x.HasArgumentOfType(f.args) {
			continue
		}
		sig := x.SourceSignature()
		bySource[sig] = append(bySource[sig], x)
	}

	var out []Candidate
	for _, m := range methods {
		if sites, ok := bySource[m.Signature()]; ok {
			out = append(out, Candidate{Method: m, Sites: sites})
			delete(bySource, m.Signature())
		}
	}
	return out, nil
}

// FilterClasses keeps classes declaring at least one matching method.
func (f *XrefFilter) FilterClasses(ctx context.Context, classes []Class) ([]Class, error) {
	var pool []Method
	for _, c := range classes {
		pool = append(pool, c.Methods...)
	}
	kept, err := f.FilterMethods(ctx, pool)
	if err != nil {
		return nil, err
	}
	owners := map[string]bool{}
	for _, c := range kept {
		owners[c.Method.Owner] = true
	}
	var out []Class
	for _, c := range classes {
		if owners[c.Name] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *XrefFilter) String() string {
	s := fmt.Sprintf("xref(%s %s", f.kind, f.ref)
	if f.args != ast.ArgAny {
		s += " args=" + f.args.String()
	}
	return s + ")"
}
