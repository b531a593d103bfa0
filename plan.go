package probeql

import (
	"fmt"

	"github.com/jward/probeql/internal/ast"
	"github.com/jward/probeql/internal/postfilter"
	"github.com/jward/probeql/internal/probe"
	"github.com/jward/probeql/internal/staticfilter"
)

// ProbePlan is the compiled form of a query: how to prune candidates, what
// to instrument, how to re-check captured evidence and how to shape rows.
// A plan is immutable and safe to share between goroutines.
type ProbePlan struct {
	query        *ast.Query
	staticFilter staticfilter.Filter
	runSpec      ast.RunSpec
	probes       probe.Set
	postFilter   postfilter.Filter
	projector    ResultProjector
	xrefBacked   bool
}

// OriginalQuery returns the query the plan was compiled from.
func (p *ProbePlan) OriginalQuery() *ast.Query { return p.query }

// StaticFilter prunes candidates using the index alone.
func (p *ProbePlan) StaticFilter() staticfilter.Filter { return p.staticFilter }

// RunSpec is the execution budget.
func (p *ProbePlan) RunSpec() ast.RunSpec { return p.runSpec }

// Probes is the instrumentation the runtime must install.
func (p *ProbePlan) Probes() probe.Set { return p.probes }

// PostFilter re-checks captured evidence.
func (p *ProbePlan) PostFilter() postfilter.Filter { return p.postFilter }

// Projector shapes accepted results into rows.
func (p *ProbePlan) Projector() ResultProjector { return p.projector }

// HasXrefBackedFilter reports whether the static filter consults xrefs.
func (p *ProbePlan) HasXrefBackedFilter() bool { return p.xrefBacked }

// PlanBuilder accumulates the parts of a ProbePlan. Unset parts take their
// defaults in Build.
type PlanBuilder struct {
	query        *ast.Query
	staticFilter staticfilter.Filter
	runSpec      *ast.RunSpec
	probes       *probe.Set
	postFilter   postfilter.Filter
	projector    ResultProjector
	xrefBacked   bool
}

// NewPlanBuilder starts a plan for q.
func NewPlanBuilder(q *ast.Query) *PlanBuilder {
	return &PlanBuilder{query: q}
}

// StaticFilter sets the candidate filter. Default: All.
func (b *PlanBuilder) StaticFilter(f staticfilter.Filter) *PlanBuilder {
	b.staticFilter = f
	return b
}

// RunSpec sets the execution budget. Default: ast.DefaultRunSpec.
func (b *PlanBuilder) RunSpec(rs ast.RunSpec) *PlanBuilder {
	b.runSpec = &rs
	return b
}

// Probes sets the probe set. Default: empty.
func (b *PlanBuilder) Probes(s probe.Set) *PlanBuilder {
	b.probes = &s
	return b
}

// PostFilter sets the evidence check. Default: AlwaysTrue.
func (b *PlanBuilder) PostFilter(f postfilter.Filter) *PlanBuilder {
	b.postFilter = f
	return b
}

// Projector sets the row shaper. Default: ProjectorFor(target).
func (b *PlanBuilder) Projector(p ResultProjector) *PlanBuilder {
	b.projector = p
	return b
}

// HasXrefBackedFilter marks the static filter as xref backed.
func (b *PlanBuilder) HasXrefBackedFilter(v bool) *PlanBuilder {
	b.xrefBacked = v
	return b
}

// Build returns the plan. It fails when the builder has no query or the
// query's target has no projector.
func (b *PlanBuilder) Build() (*ProbePlan, error) {
	if b.query == nil {
		return nil, ErrNilQuery
	}
	p := &ProbePlan{
		query:        b.query,
		staticFilter: b.staticFilter,
		runSpec:      ast.DefaultRunSpec(),
		probes:       probe.EmptySet(),
		postFilter:   b.postFilter,
		projector:    b.projector,
		xrefBacked:   b.xrefBacked,
	}
	if p.staticFilter == nil {
		p.staticFilter = staticfilter.All()
	}
	if b.runSpec != nil {
		p.runSpec = *b.runSpec
	}
	if b.probes != nil {
		p.probes = *b.probes
	}
	if p.postFilter == nil {
		p.postFilter = postfilter.AlwaysTrue()
	}
	if p.projector == nil {
		proj, err := ProjectorFor(b.query.Target)
		if err != nil {
			return nil, fmt.Errorf("build plan: %w", err)
		}
		p.projector = proj
	}
	return p, nil
}
