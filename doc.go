// Package probeql compiles declarative queries over Java code into hybrid
// static/dynamic probe plans.
//
// # Pipeline
//
// A query ("find all methods such that P") becomes a [ProbePlan] in four
// parts:
//
//  1. Static filter: prunes candidate methods using the xref index alone,
//     without running code.
//  2. Probe set: the minimal runtime instrumentation needed for what the
//     index cannot decide.
//  3. Post filter: re-checks the predicate against captured evidence.
//  4. Projector: shapes surviving evidence into navigable rows.
//
// # Usage
//
// Build an index, plan a query, then list candidates or evaluate captured
// results:
//
//	e, err := probeql.New(".probeql/index.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	_, err = e.IndexDirectory(ctx, "path/to/project")
//
//	q, err := ast.LoadQueryFile("query.yaml")
//	plan, err := e.Planner().Plan(q)
//
//	if probeql.StaticOnly(plan) {
//		rows, err := probeql.StaticRows(ctx, plan, e.Store())
//	}
//	rows := probeql.Evaluate(plan, results)
//
// # Indexing
//
// [Engine.IndexFiles] skips unchanged files via content hashing. Changed
// files are re-extracted with tree-sitter on a worker pool and committed by
// a single SQLite writer. [Engine.IndexDirectory] also prunes files that no
// longer exist.
//
// # Scripts
//
// Script predicates are Risor programs evaluated against each execution
// result. See the internal/runtime package for the globals they receive.
package probeql
