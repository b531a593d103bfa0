package probeql

import (
	"github.com/jward/probeql/internal/ast"
	"github.com/jward/probeql/internal/probe"
	"github.com/jward/probeql/internal/result"
	"github.com/jward/probeql/internal/staticfilter"
	"github.com/jward/probeql/internal/store"
)

// Public type aliases for the internal types that appear in the planner and
// engine APIs. They are identical to the internal types; no conversion is
// needed.

type Query = ast.Query
type Target = ast.Target
type RunSpec = ast.RunSpec
type ProbeResult = probe.Result
type ProbeSet = probe.Set
type Row = result.Row
type Evidence = result.Evidence
type Candidate = staticfilter.Candidate
type Index = staticfilter.Index
type Store = store.Store
