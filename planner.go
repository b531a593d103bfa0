package probeql

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jward/probeql/internal/ast"
	"github.com/jward/probeql/internal/logging"
	"github.com/jward/probeql/internal/probe"
	"github.com/jward/probeql/internal/runtime"
	"github.com/jward/probeql/internal/staticfilter"
)

// ScriptEvaluator decides a script predicate against one execution result.
type ScriptEvaluator interface {
	EvalPredicate(ctx context.Context, source string, r *probe.Result) (bool, error)
}

// QueryPlanner compiles queries into ProbePlans. It reads the xref index
// but never mutates it.
type QueryPlanner struct {
	idx     staticfilter.Index
	logger  *slog.Logger
	scripts ScriptEvaluator
}

// PlannerOption configures a QueryPlanner.
type PlannerOption func(*QueryPlanner)

// WithLogger sets the planner's logger.
func WithLogger(l *slog.Logger) PlannerOption {
	return func(p *QueryPlanner) {
		p.logger = l
	}
}

// WithScriptEvaluator replaces the Risor runtime used for script predicates.
func WithScriptEvaluator(e ScriptEvaluator) PlannerOption {
	return func(p *QueryPlanner) {
		p.scripts = e
	}
}

// NewQueryPlanner creates a planner over idx. A nil idx means no xref index
// is available, so call and field predicates are decided at runtime only.
func NewQueryPlanner(idx staticfilter.Index, opts ...PlannerOption) *QueryPlanner {
	p := &QueryPlanner{idx: idx, logger: logging.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	if p.scripts == nil {
		p.scripts = runtime.NewRuntime(runtime.WithLogger(p.logger))
	}
	p.logger = p.logger.With("component", "planner")
	return p
}

// Plan compiles q.
func (p *QueryPlanner) Plan(q *ast.Query) (*ProbePlan, error) {
	if q == nil {
		return nil, ErrNilQuery
	}
	projector, err := ProjectorFor(q.Target)
	if err != nil {
		return nil, err
	}

	b := NewPlanBuilder(q)

	var predFilter staticfilter.Filter
	hasPred := false
	if q.Predicate != nil {
		predFilter, hasPred, err = p.buildPredicateStaticFilter(q.Predicate)
		if err != nil {
			return nil, fmt.Errorf("plan: static filter: %w", err)
		}
	}
	b.HasXrefBackedFilter(hasPred)

	scopeFilter, err := p.buildScopeFilter(q.Scope)
	if err != nil {
		return nil, fmt.Errorf("plan: scope filter: %w", err)
	}
	if hasPred {
		b.StaticFilter(staticfilter.And(scopeFilter, predFilter))
	} else {
		b.StaticFilter(scopeFilter)
	}

	probes := probe.NewSetBuilder()
	if q.Predicate != nil {
		if err := collectProbes(q.Predicate, probes); err != nil {
			return nil, fmt.Errorf("plan: probes: %w", err)
		}
	}
	if q.Scope != nil {
		if err := collectScopeProbes(q.Scope, probes); err != nil {
			return nil, fmt.Errorf("plan: scope probes: %w", err)
		}
	}
	switch q.Target {
	case ast.TargetStrings:
		probes.AddStringProbe()
	case ast.TargetObjects:
		probes.AddAllAllocsProbe()
	}
	b.Probes(probes.Build())

	if q.Predicate != nil {
		post, err := p.buildPostFilter(q.Predicate)
		if err != nil {
			return nil, fmt.Errorf("plan: post filter: %w", err)
		}
		b.PostFilter(post)
	}

	b.Projector(projector)
	if q.RunSpec != nil {
		b.RunSpec(*q.RunSpec)
	}

	plan, err := b.Build()
	if err != nil {
		return nil, err
	}
	p.logger.Debug("planned query",
		"target", q.Target,
		"static_filter", plan.StaticFilter().String(),
		"xref_backed", plan.HasXrefBackedFilter(),
		"probes", plan.Probes().Len())
	return plan, nil
}
