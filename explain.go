package probeql

import (
	"github.com/jward/probeql/internal/postfilter"
	"github.com/jward/probeql/internal/probe"
)

// PlanSummary describes a plan for display and JSON output.
type PlanSummary struct {
	Target            string             `json:"target"`
	Predicate         string             `json:"predicate,omitempty"`
	Scope             string             `json:"scope,omitempty"`
	RunSpec           RunSpecSummary     `json:"run_spec"`
	StaticFilter      string             `json:"static_filter"`
	XrefBacked        bool               `json:"xref_backed"`
	StaticOnly        bool               `json:"static_only"`
	Probes            []string           `json:"probes"`
	Capabilities      []probe.Capability `json:"capabilities"`
	PostFilterTrivial bool               `json:"post_filter_trivial"`
	Limit             int                `json:"limit,omitempty"`
}

// RunSpecSummary is the execution budget of a plan.
type RunSpecSummary struct {
	Seeds           int    `json:"seeds"`
	MaxInstructions int    `json:"max_instructions"`
	MaxDepth        int    `json:"max_depth"`
	TraceMode       string `json:"trace_mode"`
	TimeBudgetMs    int    `json:"time_budget_ms"`
}

// Explain summarises plan.
func Explain(plan *ProbePlan) PlanSummary {
	q := plan.OriginalQuery()
	rs := plan.RunSpec()
	s := PlanSummary{
		Target: q.Target.String(),
		RunSpec: RunSpecSummary{
			Seeds:           rs.Seeds,
			MaxInstructions: rs.MaxInstructions,
			MaxDepth:        rs.MaxDepth,
			TraceMode:       rs.TraceMode.String(),
			TimeBudgetMs:    rs.TimeBudgetMs,
		},
		StaticFilter:      plan.StaticFilter().String(),
		XrefBacked:        plan.HasXrefBackedFilter(),
		StaticOnly:        StaticOnly(plan),
		Probes:            []string{},
		Capabilities:      plan.Probes().Capabilities(),
		PostFilterTrivial: postfilter.IsAlwaysTrue(plan.PostFilter()),
		Limit:             q.Limit,
	}
	if q.Predicate != nil {
		s.Predicate = q.Predicate.String()
	}
	if q.Scope != nil {
		s.Scope = q.Scope.String()
	}
	for _, p := range plan.Probes().Probes() {
		s.Probes = append(s.Probes, p.Describe())
	}
	return s
}
