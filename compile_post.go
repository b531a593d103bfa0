package probeql

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jward/probeql/internal/ast"
	"github.com/jward/probeql/internal/postfilter"
	"github.com/jward/probeql/internal/probe"
)

// buildPostFilter compiles pred into a check against captured evidence.
func (p *QueryPlanner) buildPostFilter(pred ast.Predicate) (postfilter.Filter, error) {
	switch pred := pred.(type) {
	case nil:
		return postfilter.AlwaysTrue(), nil

	case *ast.Calls:
		owner, name := pred.Ref.Owner, pred.Ref.Name
		return postfilter.FromPredicate(func(r *probe.Result) bool {
			return r.HasCallTo(owner, name)
		}), nil

	case *ast.ReadsField:
		return fieldAccessFilter(pred.Ref, false), nil

	case *ast.WritesField:
		return fieldAccessFilter(pred.Ref, true), nil

	case *ast.FieldBecomes:
		return fieldBecomesFilter(pred.Ref, pred.Transition)

	case *ast.AllocCount:
		typeName, op, threshold := pred.Type, pred.Op, float64(pred.Threshold)
		return postfilter.FromPredicate(func(r *probe.Result) bool {
			return op.Test(float64(r.AllocationCount(typeName)), threshold)
		}), nil

	case *ast.InstructionCount:
		op, threshold := pred.Op, float64(pred.Threshold)
		return postfilter.FromPredicate(func(r *probe.Result) bool {
			return op.Test(float64(r.InstructionCount()), threshold)
		}), nil

	case *ast.Coverage:
		return coverageFilter(pred), nil

	case *ast.ContainsString:
		match, err := stringMatcher(pred)
		if err != nil {
			return nil, err
		}
		return postfilter.FromPredicate(func(r *probe.Result) bool {
			for _, e := range r.StringEvents() {
				if match(e.Value) {
					return true
				}
			}
			return false
		}), nil

	case *ast.Throws:
		typeName := pred.Type
		return postfilter.FromPredicate(func(r *probe.Result) bool {
			for _, e := range r.ExceptionEvents() {
				if strings.Contains(e.Type, typeName) {
					return true
				}
			}
			return false
		}), nil

	case *ast.Before:
		return p.buildPostFilter(pred.Event)

	case *ast.After:
		return p.buildPostFilter(pred.Event)

	case *ast.And:
		left, err := p.buildPostFilter(pred.Left)
		if err != nil {
			return nil, err
		}
		right, err := p.buildPostFilter(pred.Right)
		if err != nil {
			return nil, err
		}
		return postfilter.And(left, right), nil

	case *ast.Or:
		left, err := p.buildPostFilter(pred.Left)
		if err != nil {
			return nil, err
		}
		right, err := p.buildPostFilter(pred.Right)
		if err != nil {
			return nil, err
		}
		return postfilter.Or(left, right), nil

	case *ast.Not:
		return p.buildNegatedPostFilter(pred.Inner)

	case *ast.Script:
		return p.scriptFilter(pred, false), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownPredicate, pred)
}

// buildNegatedPostFilter compiles NOT pred, pushing the negation down to the
// leaves so a failing script still rejects the result.
func (p *QueryPlanner) buildNegatedPostFilter(pred ast.Predicate) (postfilter.Filter, error) {
	switch pred := pred.(type) {
	case *ast.And:
		left, err := p.buildNegatedPostFilter(pred.Left)
		if err != nil {
			return nil, err
		}
		right, err := p.buildNegatedPostFilter(pred.Right)
		if err != nil {
			return nil, err
		}
		return postfilter.Or(left, right), nil

	case *ast.Or:
		left, err := p.buildNegatedPostFilter(pred.Left)
		if err != nil {
			return nil, err
		}
		right, err := p.buildNegatedPostFilter(pred.Right)
		if err != nil {
			return nil, err
		}
		return postfilter.And(left, right), nil

	case *ast.Not:
		return p.buildPostFilter(pred.Inner)

	case *ast.Before:
		return p.buildNegatedPostFilter(pred.Event)

	case *ast.After:
		return p.buildNegatedPostFilter(pred.Event)

	case *ast.Script:
		return p.scriptFilter(pred, true), nil
	}
	f, err := p.buildPostFilter(pred)
	if err != nil {
		return nil, err
	}
	return postfilter.Negate(f), nil
}

func fieldAccessFilter(ref ast.MemberRef, write bool) postfilter.Filter {
	return postfilter.FromPredicate(func(r *probe.Result) bool {
		for _, e := range r.FieldEvents() {
			if e.IsWrite == write && ref.Matches(e.Owner, e.Field, e.Desc) {
				return true
			}
		}
		return false
	})
}

const nullValue = "null"

func fieldBecomesFilter(ref ast.MemberRef, t ast.Transition) (postfilter.Filter, error) {
	switch t {
	case ast.BecomesNonNull, ast.BecomesNull:
		wantNull := t == ast.BecomesNull
		return postfilter.FromPredicate(func(r *probe.Result) bool {
			for _, e := range r.FieldEvents() {
				if e.IsWrite && ref.Matches(e.Owner, e.Field, e.Desc) && (e.Value == nullValue) == wantNull {
					return true
				}
			}
			return false
		}), nil
	case ast.Changed:
		return postfilter.FromPredicate(func(r *probe.Result) bool {
			first, seen := "", false
			for _, e := range r.FieldEvents() {
				if !e.IsWrite || !ref.Matches(e.Owner, e.Field, e.Desc) {
					continue
				}
				if !seen {
					first, seen = e.Value, true
					continue
				}
				if e.Value != first {
					return true
				}
			}
			return false
		}), nil
	}
	return nil, fmt.Errorf("%w: field transition %s", ErrUnknownPredicate, t)
}

func coverageFilter(c *ast.Coverage) postfilter.Filter {
	op, threshold, block := c.Op, c.Threshold, c.BlockID
	if block == "" {
		return postfilter.FromPredicate(func(r *probe.Result) bool {
			return op.Test(r.BranchCoverage(), threshold)
		})
	}
	return postfilter.FromPredicate(func(r *probe.Result) bool {
		reached := 0.0
		if r.ReachedBlock(block) {
			reached = 1
		}
		return op.Test(reached, threshold)
	})
}

// stringMatcher compiles a ContainsString predicate into a value test.
// Regex patterns match anywhere in the value.
func stringMatcher(c *ast.ContainsString) (func(string) bool, error) {
	if c.Regex {
		expr := c.Pattern
		if c.CaseInsensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("string pattern %q: %w", c.Pattern, err)
		}
		return re.MatchString, nil
	}
	if c.CaseInsensitive {
		needle := strings.ToLower(c.Pattern)
		return func(v string) bool { return strings.Contains(strings.ToLower(v), needle) }, nil
	}
	needle := c.Pattern
	return func(v string) bool { return strings.Contains(v, needle) }, nil
}

// scriptFilter evaluates a script per result, inverting its verdict when
// negated. Errors and non-bool results reject the result either way and are
// logged.
func (p *QueryPlanner) scriptFilter(s *ast.Script, negated bool) postfilter.Filter {
	scripts, logger := p.scripts, p.logger
	name, source := s.Name, s.Source
	return postfilter.FromPredicate(func(r *probe.Result) bool {
		ok, err := scripts.EvalPredicate(context.Background(), source, r)
		if err != nil {
			logger.Warn("script predicate failed",
				"script", name, "method", r.MethodSignature(), "error", err)
			return false
		}
		return ok != negated
	})
}
