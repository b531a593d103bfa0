package main

import (
	"github.com/jward/probeql"
	"github.com/jward/probeql/internal/staticfilter"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIIndexStats is a JSON-friendly summary of one index run.
type CLIIndexStats struct {
	Database            string `json:"database"`
	Indexed             int    `json:"indexed"`
	Unchanged           int    `json:"unchanged"`
	Removed             int    `json:"removed"`
	Failed              int    `json:"failed"`
	DeclarationsChanged int    `json:"declarations_changed"`
}

// CLICandidate is a method that survived the static filter.
type CLICandidate struct {
	Method string    `json:"method"`
	Sites  []CLISite `json:"sites,omitempty"`
}

// CLISite is one index reference that justified a candidate.
type CLISite struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
	PC     int    `json:"pc"`
	Line   int    `json:"line,omitempty"`
}

func statsToCLI(s probeql.IndexStats, dbPath string) CLIIndexStats {
	return CLIIndexStats{
		Database:            dbPath,
		Indexed:             s.Indexed,
		Unchanged:           s.Unchanged,
		Removed:             s.Removed,
		Failed:              s.Failed,
		DeclarationsChanged: s.DeclarationsChanged,
	}
}

func candidateToCLI(c staticfilter.Candidate) CLICandidate {
	out := CLICandidate{Method: c.Method.Signature()}
	for _, x := range c.Sites {
		out.Sites = append(out.Sites, CLISite{
			Kind:   string(x.Kind),
			Target: x.TargetString(),
			PC:     x.PC,
			Line:   x.Line,
		})
	}
	return out
}
