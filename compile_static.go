package probeql

import (
	"fmt"

	"github.com/jward/probeql/internal/ast"
	"github.com/jward/probeql/internal/staticfilter"
)

// buildPredicateStaticFilter returns the index-backed filter for pred. The
// bool is false when nothing about pred can be decided without running code.
func (p *QueryPlanner) buildPredicateStaticFilter(pred ast.Predicate) (staticfilter.Filter, bool, error) {
	if pred == nil {
		return nil, false, nil
	}
	switch pred := pred.(type) {
	case *ast.Calls:
		if p.idx == nil {
			return nil, false, nil
		}
		return staticfilter.CallsMethod(p.idx, pred.Ref, pred.Args), true, nil

	case *ast.ReadsField:
		if p.idx == nil {
			return nil, false, nil
		}
		return staticfilter.ReadsField(p.idx, pred.Ref), true, nil

	case *ast.WritesField:
		if p.idx == nil {
			return nil, false, nil
		}
		return staticfilter.WritesField(p.idx, pred.Ref), true, nil

	case *ast.ContainsString:
		if p.idx == nil {
			return nil, false, nil
		}
		var (
			f   *staticfilter.ConstPool
			err error
		)
		if pred.Regex {
			f, err = staticfilter.MatchesString(p.idx, pred.Pattern, pred.CaseInsensitive)
		} else {
			f, err = staticfilter.ContainsString(p.idx, pred.Pattern, pred.CaseInsensitive)
		}
		if err != nil {
			return nil, false, err
		}
		return f, true, nil

	case *ast.Before:
		return p.buildPredicateStaticFilter(pred.Event)

	case *ast.After:
		return p.buildPredicateStaticFilter(pred.Event)

	case *ast.And:
		left, okL, err := p.buildPredicateStaticFilter(pred.Left)
		if err != nil {
			return nil, false, err
		}
		right, okR, err := p.buildPredicateStaticFilter(pred.Right)
		if err != nil {
			return nil, false, err
		}
		switch {
		case okL && okR:
			return staticfilter.And(left, right), true, nil
		case okL:
			return left, true, nil
		case okR:
			return right, true, nil
		}
		return nil, false, nil

	case *ast.Or:
		left, okL, err := p.buildPredicateStaticFilter(pred.Left)
		if err != nil {
			return nil, false, err
		}
		right, okR, err := p.buildPredicateStaticFilter(pred.Right)
		if err != nil {
			return nil, false, err
		}
		// A disjunct the index cannot decide may hold anywhere, so pruning by
		// the other disjunct alone would drop true matches.
		if okL && okR {
			return staticfilter.Or(left, right), true, nil
		}
		return nil, false, nil

	case *ast.FieldBecomes, *ast.AllocCount, *ast.InstructionCount, *ast.Coverage,
		*ast.Throws, *ast.Not, *ast.Script:
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("%w: %T", ErrUnknownPredicate, pred)
}

// buildScopeFilter returns the name-based filter for s.
func (p *QueryPlanner) buildScopeFilter(s ast.Scope) (staticfilter.Filter, error) {
	if ast.IsAll(s) {
		return staticfilter.All(), nil
	}
	switch s := s.(type) {
	case *ast.ClassScope:
		return staticfilter.ClassMatching(s.Regexp())

	case *ast.MethodScope:
		return staticfilter.MethodMatching(s.Regexp())

	case *ast.DuringScope:
		if !s.Clinit {
			return staticfilter.MethodMatching(s.MethodPattern)
		}
		clinit := staticfilter.ClinitMethods()
		if s.Class == nil {
			return clinit, nil
		}
		class, err := staticfilter.ClassMatching(s.Class.Regexp())
		if err != nil {
			return nil, err
		}
		return staticfilter.And(clinit, class), nil

	case *ast.BetweenScope:
		start, okS, err := p.buildPredicateStaticFilter(s.Start)
		if err != nil {
			return nil, err
		}
		end, okE, err := p.buildPredicateStaticFilter(s.End)
		if err != nil {
			return nil, err
		}
		if okS && okE {
			return staticfilter.Or(start, end), nil
		}
		return staticfilter.All(), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownScope, s)
}
