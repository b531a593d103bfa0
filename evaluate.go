package probeql

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/jward/probeql/internal/ast"
	"github.com/jward/probeql/internal/probe"
	"github.com/jward/probeql/internal/result"
	"github.com/jward/probeql/internal/staticfilter"
)

// Evaluate applies plan's post filter to results, projects the survivors in
// input order, then applies the query's ordering and limit.
func Evaluate(plan *ProbePlan, results []*probe.Result) []result.Row {
	var rows []result.Row
	for _, r := range results {
		if r == nil || !plan.PostFilter().Test(r) {
			continue
		}
		rows = append(rows, plan.Projector().Project(r)...)
	}
	return shapeRows(plan.OriginalQuery(), rows)
}

func shapeRows(q *ast.Query, rows []result.Row) []result.Row {
	if q.OrderBy != nil && q.OrderBy.Key != "" {
		orderRows(rows, q.OrderBy.Key, q.OrderBy.Ascending)
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows
}

// orderRows sorts stably by the named column. Numeric values compare as
// numbers, everything else by its printed form. Rows without the column
// sort last in either direction.
func orderRows(rows []result.Row, key string, ascending bool) {
	slices.SortStableFunc(rows, func(a, b result.Row) int {
		av, aok := a.Column(key)
		bv, bok := b.Column(key)
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		c := compareValues(av, bv)
		if !ascending {
			c = -c
		}
		return c
	})
}

func compareValues(a, b any) int {
	af, aNum := numeric(a)
	bf, bNum := numeric(b)
	if aNum && bNum {
		return cmp.Compare(af, bf)
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func numeric(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// Candidates runs plan's static filter over every method in idx. Each
// candidate carries the index sites that justified it.
func Candidates(ctx context.Context, plan *ProbePlan, idx staticfilter.Index) ([]staticfilter.Candidate, error) {
	if idx == nil {
		return nil, fmt.Errorf("candidates: %w", staticfilter.ErrNoIndex)
	}
	methods, err := idx.Methods(ctx)
	if err != nil {
		return nil, fmt.Errorf("candidates: list methods: %w", err)
	}
	cands, err := plan.StaticFilter().FilterMethods(ctx, methods)
	if err != nil {
		return nil, fmt.Errorf("candidates: %w", err)
	}
	return cands, nil
}

// StaticOnly reports whether the index fully decides plan, so its results
// need no execution. A between scope is only located at runtime.
func StaticOnly(plan *ProbePlan) bool {
	q := plan.OriginalQuery()
	if _, ok := q.Scope.(*ast.BetweenScope); ok {
		return false
	}
	return q.Predicate != nil && ast.StaticallyResolvable(q.Predicate) && plan.HasXrefBackedFilter()
}

// StaticRows answers plan from the index alone: one row per candidate with
// a child row per matching site.
func StaticRows(ctx context.Context, plan *ProbePlan, idx staticfilter.Index) ([]result.Row, error) {
	cands, err := Candidates(ctx, plan, idx)
	if err != nil {
		return nil, err
	}
	rows := make([]result.Row, 0, len(cands))
	for _, c := range cands {
		rows = append(rows, candidateRow(c))
	}
	return shapeRows(plan.OriginalQuery(), rows), nil
}

func candidateRow(c staticfilter.Candidate) result.Row {
	m := c.Method
	children := make([]result.Row, 0, len(c.Sites))
	for _, x := range c.Sites {
		var label string
		var line any = "-"
		if x.Line > 0 {
			label = fmt.Sprintf("line %d -> %s", x.Line, x.TargetString())
			line = x.Line
		} else {
			label = fmt.Sprintf("pc %d -> %s", x.PC, x.TargetString())
		}
		children = append(children, result.NewRow(label).
			Target(result.PCTarget{Class: m.Owner, Method: m.Name, Descriptor: m.Desc, PC: x.PC}).
			Column("line", line).
			Column("pc", x.PC).
			Column("target", x.TargetString()).
			AsChild().
			Build())
	}

	plural := "s"
	if len(c.Sites) == 1 {
		plural = ""
	}
	return result.NewRow(fmt.Sprintf("%s (%d call site%s)", m.Signature(), len(c.Sites), plural)).
		Target(result.MethodTarget{Class: m.Owner, Method: m.Name, Descriptor: m.Desc}).
		Column("class", m.Owner).
		Column("method", m.Name).
		Column("sites", len(c.Sites)).
		Children(children).
		Build()
}
