package probeql

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/probeql/internal/ast"
	"github.com/jward/probeql/internal/postfilter"
	"github.com/jward/probeql/internal/probe"
	"github.com/jward/probeql/internal/staticfilter"
	"github.com/jward/probeql/internal/store"
)

// newTestIndex returns a store holding a small hand-built index:
//
//	com/x/App.main    calls MessageDigest.digest([B)[B with a local
//	com/x/App.hash    calls MessageDigest.getInstance with a literal
//	com/x/Config.<clinit> writes Config.key
//	com/x/Util.log    references nothing
func newTestIndex(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate())

	fi := store.NewFileIndex("/src/App.java")
	fi.AddClass("com/x/App", "java/lang/Object")
	fi.AddMethod("com/x/App", store.MethodDecl{Name: "main", Descriptor: "([Ljava/lang/String;)V", StartLine: 3, EndLine: 9})
	fi.AddMethod("com/x/App", store.MethodDecl{Name: "hash", Descriptor: "()V", StartLine: 10, EndLine: 14})
	fi.AddString("com/x/App", "SHA-256")
	fi.AddClass("com/x/Config", "java/lang/Object")
	fi.AddMethod("com/x/Config", store.MethodDecl{Name: "<clinit>", Descriptor: "()V", StartLine: 1, EndLine: 5})
	fi.AddField("com/x/Config", store.FieldDecl{Name: "key", Descriptor: "Ljava/lang/String;"})
	fi.AddClass("com/x/Util", "java/lang/Object")
	fi.AddMethod("com/x/Util", store.MethodDecl{Name: "log", Descriptor: "(Ljava/lang/String;)V", StartLine: 2, EndLine: 4})

	fi.AddXref(staticfilter.Xref{
		SourceClass: "com/x/App", SourceMethod: "main", SourceDesc: "([Ljava/lang/String;)V",
		TargetOwner: "java/security/MessageDigest", TargetName: "digest", TargetDesc: "([B)[B",
		Kind: staticfilter.KindCall, PC: 2, Line: 6, ArgKinds: []ast.ArgumentType{ast.ArgLocal},
	})
	fi.AddXref(staticfilter.Xref{
		SourceClass: "com/x/App", SourceMethod: "hash", SourceDesc: "()V",
		TargetOwner: "java/security/MessageDigest", TargetName: "getInstance", TargetDesc: "(Ljava/lang/String;)Ljava/security/MessageDigest;",
		Kind: staticfilter.KindCall, PC: 0, Line: 11, ArgKinds: []ast.ArgumentType{ast.ArgLiteral},
	})
	fi.AddXref(staticfilter.Xref{
		SourceClass: "com/x/Config", SourceMethod: "<clinit>", SourceDesc: "()V",
		TargetOwner: "com/x/Config", TargetName: "key", TargetDesc: "Ljava/lang/String;",
		Kind: staticfilter.KindFieldWrite, PC: 0, Line: 2,
	})

	id, err := s.InsertFile(&store.File{Path: fi.Path, Hash: "h", LastIndexed: time.Now()})
	require.NoError(t, err)
	require.NoError(t, s.CommitFileIndex(id, fi))
	return s
}

func candidateSigs(t *testing.T, plan *ProbePlan, idx staticfilter.Index) []string {
	t.Helper()
	cands, err := Candidates(context.Background(), plan, idx)
	require.NoError(t, err)
	var out []string
	for _, c := range cands {
		out = append(out, c.Method.Signature())
	}
	return out
}

func calls(ref string) *ast.Calls {
	return &ast.Calls{Ref: ast.ParseMethodRef(ref)}
}

// =============================================================================
// Plan: failure modes
// =============================================================================

func TestPlan_NilQuery(t *testing.T) {
	t.Parallel()
	_, err := NewQueryPlanner(nil).Plan(nil)
	assert.ErrorIs(t, err, ErrNilQuery)
}

func TestPlan_UnknownTarget(t *testing.T) {
	t.Parallel()
	_, err := NewQueryPlanner(nil).Plan(&ast.Query{Target: ast.Target(42)})
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestPlan_InvalidPatternsFailImmediately(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	p := NewQueryPlanner(idx)

	_, err := p.Plan(&ast.Query{Predicate: &ast.ContainsString{Pattern: "(", Regex: true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"("`)

	_, err = p.Plan(&ast.Query{Scope: &ast.ClassScope{Pattern: "[", Regex: true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"["`)
}

// =============================================================================
// Plan: static filter
// =============================================================================

func TestPlan_NoPredicateNoScope(t *testing.T) {
	t.Parallel()
	plan, err := NewQueryPlanner(nil).Plan(&ast.Query{Target: ast.TargetMethods})
	require.NoError(t, err)

	assert.True(t, staticfilter.IsAll(plan.StaticFilter()))
	assert.False(t, plan.HasXrefBackedFilter())
	assert.True(t, postfilter.IsAlwaysTrue(plan.PostFilter()))
	assert.True(t, plan.Probes().IsEmpty())
	assert.Equal(t, ast.DefaultRunSpec(), plan.RunSpec())
}

func TestPlan_CallsWithoutIndex(t *testing.T) {
	t.Parallel()
	plan, err := NewQueryPlanner(nil).Plan(&ast.Query{Predicate: calls("java/security/MessageDigest.digest")})
	require.NoError(t, err)

	assert.False(t, plan.HasXrefBackedFilter())
	assert.True(t, staticfilter.IsAll(plan.StaticFilter()))
	assert.True(t, plan.Probes().HasProbeType(probe.TypeCall))
	assert.False(t, StaticOnly(plan))
}

func TestPlan_CallsWithIndex(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	plan, err := NewQueryPlanner(idx).Plan(&ast.Query{Predicate: calls("MessageDigest.digest")})
	require.NoError(t, err)

	assert.True(t, plan.HasXrefBackedFilter())
	assert.True(t, StaticOnly(plan))
	assert.Equal(t, []string{"com/x/App.main([Ljava/lang/String;)V"}, candidateSigs(t, plan, idx))
}

func TestPlan_CallsArgumentKind(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	p := NewQueryPlanner(idx)

	lit, err := p.Plan(&ast.Query{Predicate: &ast.Calls{
		Ref: ast.ParseMethodRef("MessageDigest.getInstance"), Args: ast.ArgLiteral,
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"com/x/App.hash()V"}, candidateSigs(t, lit, idx))

	dyn, err := p.Plan(&ast.Query{Predicate: &ast.Calls{
		Ref: ast.ParseMethodRef("MessageDigest.getInstance"), Args: ast.ArgDynamic,
	}})
	require.NoError(t, err)
	assert.Empty(t, candidateSigs(t, dyn, idx))
}

func TestPlan_WritesField(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	plan, err := NewQueryPlanner(idx).Plan(&ast.Query{
		Predicate: &ast.WritesField{Ref: ast.ParseFieldRef("Config.key")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"com/x/Config.<clinit>()V"}, candidateSigs(t, plan, idx))
	assert.True(t, plan.Probes().HasCapability(probe.FieldTracking))
}

func TestPlan_OrWithRuntimeOnlySideHasNoStaticFilter(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	plan, err := NewQueryPlanner(idx).Plan(&ast.Query{Predicate: &ast.Or{
		Left:  calls("MessageDigest.digest"),
		Right: &ast.AllocCount{Type: "[B", Op: ast.OpGT, Threshold: 5},
	}})
	require.NoError(t, err)

	assert.False(t, plan.HasXrefBackedFilter())
	assert.True(t, staticfilter.IsAll(plan.StaticFilter()))
}

func TestPlan_OrOfStaticSidesUnions(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	plan, err := NewQueryPlanner(idx).Plan(&ast.Query{Predicate: &ast.Or{
		Left:  calls("MessageDigest.digest"),
		Right: &ast.WritesField{Ref: ast.ParseFieldRef("Config.key")},
	}})
	require.NoError(t, err)

	assert.True(t, StaticOnly(plan))
	assert.ElementsMatch(t, []string{
		"com/x/App.main([Ljava/lang/String;)V",
		"com/x/Config.<clinit>()V",
	}, candidateSigs(t, plan, idx))
}

func TestPlan_AndKeepsDecidableSide(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	plan, err := NewQueryPlanner(idx).Plan(&ast.Query{Predicate: &ast.And{
		Left:  &ast.InstructionCount{Op: ast.OpGT, Threshold: 100},
		Right: calls("MessageDigest.digest"),
	}})
	require.NoError(t, err)

	assert.True(t, plan.HasXrefBackedFilter())
	assert.False(t, StaticOnly(plan))
	assert.Equal(t, []string{"com/x/App.main([Ljava/lang/String;)V"}, candidateSigs(t, plan, idx))
}

func TestPlan_ContainsStringUsesConstants(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	plan, err := NewQueryPlanner(idx).Plan(&ast.Query{
		Predicate: &ast.ContainsString{Pattern: "sha-", CaseInsensitive: true},
	})
	require.NoError(t, err)

	assert.True(t, plan.HasXrefBackedFilter())
	assert.False(t, StaticOnly(plan))
	assert.ElementsMatch(t, []string{
		"com/x/App.main([Ljava/lang/String;)V",
		"com/x/App.hash()V",
	}, candidateSigs(t, plan, idx))
}

func TestPlan_BeforeAfterUseEventFilter(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	plan, err := NewQueryPlanner(idx).Plan(&ast.Query{
		Predicate: &ast.Before{Event: calls("MessageDigest.digest")},
	})
	require.NoError(t, err)
	assert.True(t, plan.HasXrefBackedFilter())
	assert.Len(t, candidateSigs(t, plan, idx), 1)
}

func TestPlan_NotHasNoStaticFilter(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	plan, err := NewQueryPlanner(idx).Plan(&ast.Query{
		Predicate: &ast.Not{Inner: calls("MessageDigest.digest")},
	})
	require.NoError(t, err)
	assert.False(t, plan.HasXrefBackedFilter())
	assert.True(t, staticfilter.IsAll(plan.StaticFilter()))
}

// =============================================================================
// Plan: scopes
// =============================================================================

func TestPlan_ScopeOnlyStillPrunes(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	plan, err := NewQueryPlanner(idx).Plan(&ast.Query{Scope: &ast.ClassScope{Pattern: "com/x/Util"}})
	require.NoError(t, err)

	assert.False(t, plan.HasXrefBackedFilter())
	assert.True(t, postfilter.IsAlwaysTrue(plan.PostFilter()))
	assert.Equal(t, []string{"com/x/Util.log(Ljava/lang/String;)V"}, candidateSigs(t, plan, idx))
}

func TestPlan_PackageScopeWithoutPredicate(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	scope := ast.PackageScope("com.foo.*")
	plan, err := NewQueryPlanner(idx).Plan(&ast.Query{Target: ast.TargetMethods, Scope: scope})
	require.NoError(t, err)

	want, err := staticfilter.ClassMatching(scope.Regexp())
	require.NoError(t, err)
	assert.Equal(t, want.String(), plan.StaticFilter().String())
	assert.True(t, postfilter.IsAlwaysTrue(plan.PostFilter()))
	assert.True(t, plan.Probes().IsEmpty())
	assert.False(t, plan.HasXrefBackedFilter())
}

func TestPlan_UniversalScopeLeavesPredicateFilter(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	pred := calls("MessageDigest.digest")
	want := staticfilter.CallsMethod(idx, pred.Ref, pred.Args).String()

	for _, scope := range []ast.Scope{nil, &ast.AllScope{}} {
		plan, err := NewQueryPlanner(idx).Plan(&ast.Query{Scope: scope, Predicate: pred})
		require.NoError(t, err)
		assert.Equal(t, want, plan.StaticFilter().String())
		assert.True(t, plan.HasXrefBackedFilter())
	}
}

func TestPlan_ScopeAndPredicateIntersect(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	p := NewQueryPlanner(idx)

	plan, err := p.Plan(&ast.Query{
		Scope:     ast.PackageScope("com.x.*"),
		Predicate: calls("MessageDigest.digest"),
	})
	require.NoError(t, err)
	assert.Len(t, candidateSigs(t, plan, idx), 1)

	plan, err = p.Plan(&ast.Query{
		Scope:     &ast.ClassScope{Pattern: "com/x/Util"},
		Predicate: calls("MessageDigest.digest"),
	})
	require.NoError(t, err)
	assert.Empty(t, candidateSigs(t, plan, idx))
}

func TestPlan_MethodAndDuringScopes(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	p := NewQueryPlanner(idx)

	plan, err := p.Plan(&ast.Query{Scope: &ast.MethodScope{Pattern: "hash"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"com/x/App.hash()V"}, candidateSigs(t, plan, idx))

	plan, err = p.Plan(&ast.Query{Scope: ast.ClinitScope(nil)})
	require.NoError(t, err)
	assert.Equal(t, []string{"com/x/Config.<clinit>()V"}, candidateSigs(t, plan, idx))

	plan, err = p.Plan(&ast.Query{Scope: ast.ClinitScope(&ast.ClassScope{Pattern: "com/x/App"})})
	require.NoError(t, err)
	assert.Empty(t, candidateSigs(t, plan, idx))

	plan, err = p.Plan(&ast.Query{Scope: &ast.DuringScope{MethodPattern: "^main$"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"com/x/App.main([Ljava/lang/String;)V"}, candidateSigs(t, plan, idx))
}

func TestPlan_BetweenScope(t *testing.T) {
	t.Parallel()
	idx := newTestIndex(t)
	p := NewQueryPlanner(idx)

	plan, err := p.Plan(&ast.Query{Scope: &ast.BetweenScope{
		Start: calls("MessageDigest.getInstance"),
		End:   calls("MessageDigest.digest"),
	}})
	require.NoError(t, err)
	assert.Len(t, candidateSigs(t, plan, idx), 2)
	assert.Len(t, plan.Probes().ProbesOfType(probe.TypeCall), 2)

	plan, err = p.Plan(&ast.Query{Scope: &ast.BetweenScope{
		Start: calls("MessageDigest.getInstance"),
		End:   &ast.Throws{Type: "IOException"},
	}})
	require.NoError(t, err)
	assert.True(t, staticfilter.IsAll(plan.StaticFilter()))
	assert.True(t, plan.Probes().HasProbeType(probe.TypeException))
}

// =============================================================================
// Plan: probes and run spec
// =============================================================================

func TestPlan_TargetProbes(t *testing.T) {
	t.Parallel()
	p := NewQueryPlanner(nil)

	strs, err := p.Plan(&ast.Query{Target: ast.TargetStrings})
	require.NoError(t, err)
	assert.True(t, strs.Probes().HasProbeType(probe.TypeString))
	assert.False(t, strs.HasXrefBackedFilter())
	assert.Equal(t, ast.TargetStrings, strs.Projector().TargetType())

	objs, err := p.Plan(&ast.Query{Target: ast.TargetObjects})
	require.NoError(t, err)
	assert.True(t, objs.Probes().HasProbeType(probe.TypeAllocation))

	methods, err := p.Plan(&ast.Query{Target: ast.TargetMethods})
	require.NoError(t, err)
	assert.True(t, methods.Probes().IsEmpty())
}

func TestPlan_ProbesFromPredicateTree(t *testing.T) {
	t.Parallel()
	plan, err := NewQueryPlanner(nil).Plan(&ast.Query{Predicate: &ast.And{
		Left: &ast.Or{
			Left:  calls("Cipher.init"),
			Right: &ast.Not{Inner: &ast.Throws{Type: "java/io/IOException"}},
		},
		Right: &ast.And{
			Left:  &ast.Coverage{Op: ast.OpGTE, Threshold: 0.5},
			Right: &ast.FieldBecomes{Ref: ast.ParseFieldRef("Session.token"), Transition: ast.BecomesNull},
		},
	}})
	require.NoError(t, err)

	set := plan.Probes()
	for _, typ := range []probe.Type{probe.TypeCall, probe.TypeException, probe.TypeBranch, probe.TypeField} {
		assert.True(t, set.HasProbeType(typ), typ.String())
	}
	fields := set.ProbesOfType(probe.TypeField)
	require.Len(t, fields, 1)
	assert.True(t, fields[0].(probe.FieldProbe).Transitions)
}

func TestPlan_RunSpecOverride(t *testing.T) {
	t.Parallel()
	rs := ast.RunSpec{Seeds: 3, MaxInstructions: 10, MaxDepth: 2, TraceMode: ast.TraceFull, TimeBudgetMs: 5}
	plan, err := NewQueryPlanner(nil).Plan(&ast.Query{RunSpec: &rs})
	require.NoError(t, err)
	assert.Equal(t, rs, plan.RunSpec())
}

// =============================================================================
// Post filters
// =============================================================================

func cryptoRun() *probe.Result {
	return probe.NewResultBuilder("com/x/App.main([Ljava/lang/String;)V").
		InstructionCount(250).
		RecordAllocation("[B").
		RecordAllocation("[B").
		RecordCall(1, 3, "java/security/MessageDigest", "digest", "([B)[B").
		RecordFieldAccess(2, 5, "com/x/Config", "key", "Ljava/lang/String;", false).
		RecordFieldWrite(3, 7, "com/x/Session", "token", "Ljava/lang/String;", "abc").
		RecordFieldWrite(4, 9, "com/x/Session", "token", "Ljava/lang/String;", "null").
		RecordString(5, 1, "Password: hunter2", "concat").
		RecordException(6, 12, "java/lang/IllegalStateException", false).
		RecordBranch(7, 10, 14, true).
		RecordBranch(8, 20, 22, false).
		Build()
}

func TestPostFilter_PredicateSemantics(t *testing.T) {
	t.Parallel()
	p := NewQueryPlanner(nil)
	run := cryptoRun()

	tests := []struct {
		name string
		pred ast.Predicate
		want bool
	}{
		{"calls by owner substring", calls("MessageDigest.digest"), true},
		{"calls other name", calls("MessageDigest.update"), false},
		{"reads field", &ast.ReadsField{Ref: ast.ParseFieldRef("Config.key")}, true},
		{"reads is not a write", &ast.WritesField{Ref: ast.ParseFieldRef("Config.key")}, false},
		{"writes field", &ast.WritesField{Ref: ast.ParseFieldRef("Session.token")}, true},
		{"becomes null", &ast.FieldBecomes{Ref: ast.ParseFieldRef("Session.token"), Transition: ast.BecomesNull}, true},
		{"becomes non-null", &ast.FieldBecomes{Ref: ast.ParseFieldRef("Session.token"), Transition: ast.BecomesNonNull}, true},
		{"changed", &ast.FieldBecomes{Ref: ast.ParseFieldRef("Session.token"), Transition: ast.Changed}, true},
		{"unwritten field never changes", &ast.FieldBecomes{Ref: ast.ParseFieldRef("Config.key"), Transition: ast.Changed}, false},
		{"alloc count", &ast.AllocCount{Type: "[B", Op: ast.OpEQ, Threshold: 2}, true},
		{"alloc count other type", &ast.AllocCount{Type: "java/lang/String", Op: ast.OpGT, Threshold: 0}, false},
		{"instruction count", &ast.InstructionCount{Op: ast.OpLT, Threshold: 1000}, true},
		{"coverage overall", &ast.Coverage{Op: ast.OpEQ, Threshold: 0.5}, true},
		{"coverage block reached", &ast.Coverage{BlockID: "14", Op: ast.OpEQ, Threshold: 1}, true},
		{"coverage block missed", &ast.Coverage{BlockID: "99", Op: ast.OpGTE, Threshold: 1}, false},
		{"string literal", &ast.ContainsString{Pattern: "Password"}, true},
		{"string case folded", &ast.ContainsString{Pattern: "password", CaseInsensitive: true}, true},
		{"string case sensitive", &ast.ContainsString{Pattern: "password"}, false},
		{"string regex", &ast.ContainsString{Pattern: `hunter\d`, Regex: true}, true},
		{"throws", &ast.Throws{Type: "IllegalStateException"}, true},
		{"throws other", &ast.Throws{Type: "IOException"}, false},
		{"before event", &ast.Before{Event: calls("MessageDigest.digest")}, true},
		{"after event", &ast.After{Event: &ast.Throws{Type: "IOException"}}, false},
		{"and", &ast.And{Left: calls("MessageDigest.digest"), Right: &ast.Throws{Type: "IOException"}}, false},
		{"or", &ast.Or{Left: calls("MessageDigest.update"), Right: &ast.Throws{Type: "IllegalState"}}, true},
		{"not", &ast.Not{Inner: &ast.Throws{Type: "IOException"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			plan, err := p.Plan(&ast.Query{Predicate: tt.pred})
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan.PostFilter().Test(run))
		})
	}
}

type stubEvaluator struct {
	ok  bool
	err error
}

func (s stubEvaluator) EvalPredicate(context.Context, string, *probe.Result) (bool, error) {
	return s.ok, s.err
}

func TestPostFilter_Script(t *testing.T) {
	t.Parallel()
	run := cryptoRun()

	plan, err := NewQueryPlanner(nil).Plan(&ast.Query{Predicate: &ast.Script{
		Name:   "hot",
		Source: `instruction_count > 200 && has_call("MessageDigest", "digest")`,
	}})
	require.NoError(t, err)
	assert.True(t, plan.PostFilter().Test(run))
	assert.True(t, plan.Probes().HasProbeType(probe.TypeCall))

	failing := NewQueryPlanner(nil, WithScriptEvaluator(stubEvaluator{ok: true, err: errors.New("boom")}))
	plan, err = failing.Plan(&ast.Query{Predicate: &ast.Script{Name: "broken", Source: "x"}})
	require.NoError(t, err)
	assert.False(t, plan.PostFilter().Test(run))

	plan, err = failing.Plan(&ast.Query{Predicate: &ast.Not{Inner: &ast.Script{Name: "broken", Source: "x"}}})
	require.NoError(t, err)
	assert.False(t, plan.PostFilter().Test(run))

	plan, err = failing.Plan(&ast.Query{Predicate: &ast.Not{Inner: &ast.And{
		Left:  &ast.InstructionCount{Op: ast.OpGT, Threshold: 1_000_000},
		Right: &ast.Script{Name: "broken", Source: "x"},
	}}})
	require.NoError(t, err)
	assert.True(t, plan.PostFilter().Test(run), "the failing branch is not needed when the other side decides")

	plan, err = failing.Plan(&ast.Query{Predicate: &ast.Not{Inner: &ast.Or{
		Left:  &ast.InstructionCount{Op: ast.OpGT, Threshold: 1_000_000},
		Right: &ast.Script{Name: "broken", Source: "x"},
	}}})
	require.NoError(t, err)
	assert.False(t, plan.PostFilter().Test(run))

	rejecting := NewQueryPlanner(nil, WithScriptEvaluator(stubEvaluator{ok: false}))
	plan, err = rejecting.Plan(&ast.Query{Predicate: &ast.Not{Inner: &ast.Not{Inner: &ast.Script{Source: "x"}}}})
	require.NoError(t, err)
	assert.False(t, plan.PostFilter().Test(run))
	plan, err = rejecting.Plan(&ast.Query{Predicate: &ast.Not{Inner: &ast.Script{Source: "x"}}})
	require.NoError(t, err)
	assert.True(t, plan.PostFilter().Test(run))

	nonBool, err := NewQueryPlanner(nil).Plan(&ast.Query{Predicate: &ast.Script{Source: `instruction_count`}})
	require.NoError(t, err)
	assert.False(t, nonBool.PostFilter().Test(run))
}

// =============================================================================
// PlanBuilder and projectors
// =============================================================================

func TestPlanBuilder_Defaults(t *testing.T) {
	t.Parallel()
	plan, err := NewPlanBuilder(&ast.Query{Target: ast.TargetEvents}).Build()
	require.NoError(t, err)

	assert.True(t, staticfilter.IsAll(plan.StaticFilter()))
	assert.True(t, postfilter.IsAlwaysTrue(plan.PostFilter()))
	assert.True(t, plan.Probes().IsEmpty())
	assert.Equal(t, ast.DefaultRunSpec(), plan.RunSpec())
	assert.Equal(t, ast.TargetEvents, plan.Projector().TargetType())
	assert.False(t, plan.HasXrefBackedFilter())
}

func TestPlanBuilder_Errors(t *testing.T) {
	t.Parallel()
	_, err := NewPlanBuilder(nil).Build()
	assert.ErrorIs(t, err, ErrNilQuery)

	_, err = NewPlanBuilder(&ast.Query{Target: ast.Target(-1)}).Build()
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestProjectorFor_AllTargets(t *testing.T) {
	t.Parallel()
	run := cryptoRun()
	for _, target := range ast.Targets() {
		proj, err := ProjectorFor(target)
		require.NoError(t, err)
		assert.Equal(t, target, proj.TargetType())
		assert.NotPanics(t, func() { proj.Project(run) })
	}

	methods, _ := ProjectorFor(ast.TargetMethods)
	rows := methods.Project(run)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0].Evidence(), 1)

	events, _ := ProjectorFor(ast.TargetEvents)
	assert.Len(t, events.Project(run), 4)

	paths, _ := ProjectorFor(ast.TargetPaths)
	assert.Empty(t, paths.Project(run))
}
