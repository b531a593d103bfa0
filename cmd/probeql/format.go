package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jward/probeql"
	"github.com/jward/probeql/internal/result"
)

// formatStatsText formats an index summary as readable text.
func formatStatsText(w io.Writer, s CLIIndexStats) {
	fmt.Fprintf(w, "Database: %s\n", s.Database)
	fmt.Fprintf(w, "Indexed: %d\n", s.Indexed)
	fmt.Fprintf(w, "Unchanged: %d\n", s.Unchanged)
	fmt.Fprintf(w, "Removed: %d\n", s.Removed)
	fmt.Fprintf(w, "Failed: %d\n", s.Failed)
	fmt.Fprintf(w, "Declarations changed: %d\n", s.DeclarationsChanged)
}

// formatPlanText formats a plan summary as readable text.
func formatPlanText(w io.Writer, p probeql.PlanSummary) {
	fmt.Fprintf(w, "Target: %s\n", p.Target)
	if p.Predicate != "" {
		fmt.Fprintf(w, "Predicate: %s\n", p.Predicate)
	}
	if p.Scope != "" {
		fmt.Fprintf(w, "Scope: %s\n", p.Scope)
	}
	fmt.Fprintf(w, "Static filter: %s\n", p.StaticFilter)
	fmt.Fprintf(w, "Xref backed: %t\n", p.XrefBacked)
	fmt.Fprintf(w, "Static only: %t\n", p.StaticOnly)
	fmt.Fprintf(w, "Post filter trivial: %t\n", p.PostFilterTrivial)
	fmt.Fprintf(w, "Run: seeds=%d max_instructions=%d max_depth=%d trace=%s time_budget_ms=%d\n",
		p.RunSpec.Seeds, p.RunSpec.MaxInstructions, p.RunSpec.MaxDepth, p.RunSpec.TraceMode, p.RunSpec.TimeBudgetMs)
	if p.Limit > 0 {
		fmt.Fprintf(w, "Limit: %d\n", p.Limit)
	}
	fmt.Fprintln(w)

	if len(p.Probes) > 0 {
		fmt.Fprintln(w, "Probes:")
		for _, pr := range p.Probes {
			fmt.Fprintf(w, "  %s\n", pr)
		}
	}
	if len(p.Capabilities) > 0 {
		caps := make([]string, len(p.Capabilities))
		for i, c := range p.Capabilities {
			caps[i] = c.String()
		}
		fmt.Fprintf(w, "Capabilities: %s\n", strings.Join(caps, ", "))
	}
}

// formatCandidatesText formats candidates as aligned columns, one line per
// site.
func formatCandidatesText(w io.Writer, cands []CLICandidate) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tKIND\tTARGET\tLINE")
	for _, c := range cands {
		if len(c.Sites) == 0 {
			fmt.Fprintf(tw, "%s\t-\t-\t-\n", c.Method)
			continue
		}
		for _, s := range c.Sites {
			line := "-"
			if s.Line > 0 {
				line = fmt.Sprint(s.Line)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Method, s.Kind, s.Target, line)
		}
	}
	tw.Flush()
}

// formatRowsText formats result rows as an indented tree with their columns.
func formatRowsText(w io.Writer, rows []result.Row) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		writeRow(tw, r, 0)
	}
	tw.Flush()
}

func writeRow(w io.Writer, r result.Row, depth int) {
	cols := r.Columns()
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s=%v", c.Name, c.Value)
	}
	fmt.Fprintf(w, "%s%s\t%s\n", strings.Repeat("  ", depth), r.Label(), strings.Join(parts, " "))
	for _, child := range r.Children() {
		writeRow(w, child, depth+1)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(res CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := res.Results.(type) {
	case CLIIndexStats:
		formatStatsText(w, v)
	case probeql.PlanSummary:
		formatPlanText(w, v)
	case []CLICandidate:
		formatCandidatesText(w, v)
	case []result.Row:
		formatRowsText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if res.TotalCount != nil {
		count := *res.TotalCount
		shown := resultLen(res.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLICandidate:
		return len(r)
	case []result.Row:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
