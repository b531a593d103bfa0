package probe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/probeql/internal/result"
)

const sig = "com/x/Crypto.hash([B)[B"

func sampleResult() *Result {
	return NewResultBuilder(sig).
		InstructionCount(420).
		ExecutionTime(1500).
		RecordAllocation("[B").
		RecordAllocation("[B").
		RecordAllocation("java/lang/String").
		RecordCall(1, 3, "java/security/MessageDigest", "getInstance", "(Ljava/lang/String;)Ljava/security/MessageDigest;").
		RecordCall(2, 9, "java/security/MessageDigest", "digest", "([B)[B").
		RecordFieldAccess(3, 12, "com/x/Crypto", "rounds", "I", false).
		RecordFieldWrite(4, 15, "com/x/Crypto", "last", "[B", "null").
		RecordString(5, 1, "SHA-256", "ldc").
		RecordException(6, 20, "java/security/NoSuchAlgorithmException", true).
		RecordBranch(7, 30, 40, true).
		RecordBranch(8, 30, 34, false).
		RecordBranch(9, 50, 60, true).
		Build()
}

// =============================================================================
// Specs & sets
// =============================================================================

func TestCallProbe_Matches(t *testing.T) {
	t.Parallel()
	p := CallProbe{Owner: "MessageDigest", Name: "digest"}
	assert.True(t, p.Matches("java/security/MessageDigest", "digest", "([B)[B"))
	assert.True(t, p.Matches("MessageDigest", "digest", "()[B"))
	assert.False(t, p.Matches("java/security/MessageDigest", "update", "([B)V"))
	assert.True(t, CallProbe{}.Matches("any", "thing", "()V"))
	assert.False(t, CallProbe{Desc: "()V"}.Matches("a", "b", "(I)V"))
}

func TestFieldProbe_Matches(t *testing.T) {
	t.Parallel()
	reads := FieldProbe{Name: "token", Reads: true}
	assert.True(t, reads.Matches("com/x/Auth", "token", "Ljava/lang/String;", false))
	assert.False(t, reads.Matches("com/x/Auth", "token", "Ljava/lang/String;", true))

	transitions := FieldProbe{Owner: "Auth", Name: "token", Writes: true, Transitions: true}
	assert.True(t, transitions.Matches("com/x/Auth", "token", "", true))
	assert.False(t, transitions.Matches("com/x/Auth", "token", "", false))
}

func TestExceptionAndAllocProbe_Matches(t *testing.T) {
	t.Parallel()
	ex := ExceptionProbe{TypeName: "IOException", IncludeSubtypes: true, Throws: true}
	assert.True(t, ex.Matches("java/io/FileNotFoundIOException", false))
	assert.False(t, ex.Matches("java/io/IOException", true), "catches not requested")
	exact := ExceptionProbe{TypeName: "java/io/IOException", Throws: true}
	assert.False(t, exact.Matches("java/io/EOFIOException2", false))

	assert.True(t, AllocProbe{}.Matches("anything"))
	assert.False(t, AllocProbe{TypeName: "[B"}.Matches("[C"))
}

func TestSetBuilder_CollapsesDuplicatesAndReportsCapabilities(t *testing.T) {
	t.Parallel()
	set := NewSetBuilder().
		AddCallProbe("A", "b", "").
		AddCallProbe("A", "b", "").
		AddStringProbe().
		AddAllAllocsProbe().
		AddExceptionProbe("E", true).
		Build()

	assert.Equal(t, 4, set.Len())
	assert.False(t, set.IsEmpty())
	assert.True(t, set.HasProbeType(TypeCall))
	assert.True(t, set.HasProbeType(TypeString))
	assert.False(t, set.HasProbeType(TypeBranch))
	assert.Equal(t, []Spec{StringProbe{CaptureValue: true}}, set.ProbesOfType(TypeString))
	assert.Equal(t, []Capability{CallTracking, AllocationTracking, StringTracking, ExceptionTracking}, set.Capabilities())
	assert.True(t, set.HasCapability(AllocationTracking))
	assert.False(t, set.HasCapability(CoverageTracking))

	assert.True(t, EmptySet().IsEmpty())
	assert.Empty(t, EmptySet().Capabilities())
}

func TestSet_IsImmutable(t *testing.T) {
	t.Parallel()
	b := NewSetBuilder().AddBranchProbe()
	set := b.Build()
	b.AddCoverageProbe()
	probes := set.Probes()
	probes[0] = CoverageProbe{}

	assert.Equal(t, 1, set.Len())
	assert.Equal(t, Spec(BranchProbe{Taken: true, NotTaken: true}), set.Probes()[0])
}

// =============================================================================
// Result queries
// =============================================================================

func TestResult_Queries(t *testing.T) {
	t.Parallel()
	r := sampleResult()

	assert.Equal(t, 2, r.AllocationCount("[B"))
	assert.Equal(t, 0, r.AllocationCount("[C"))
	assert.True(t, r.HasCallTo("MessageDigest", "digest"))
	assert.True(t, r.HasCallTo("", "getInstance"))
	assert.True(t, r.HasCallTo("security", ""))
	assert.False(t, r.HasCallTo("Cipher", ""))
	assert.InDelta(t, 0.75, r.BranchCoverage(), 1e-9)
	assert.True(t, r.ReachedBlock("40"))
	assert.False(t, r.ReachedBlock("41"))

	assert.Zero(t, NewResultBuilder(sig).Build().BranchCoverage())
}

func TestResult_AccessorsReturnCopies(t *testing.T) {
	t.Parallel()
	r := sampleResult()
	allocs := r.Allocations()
	allocs["[B"] = 99
	calls := r.CallEvents()
	calls[0].TargetName = "mutated"

	assert.Equal(t, 2, r.AllocationCount("[B"))
	assert.Equal(t, "getInstance", r.CallEvents()[0].TargetName)
}

// =============================================================================
// Row projection
// =============================================================================

func TestResult_ToMethodRows(t *testing.T) {
	t.Parallel()
	rows := sampleResult().ToMethodRows()
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, sig, row.Label())
	assert.Equal(t, result.ClickTarget(result.MethodTarget{Class: "com/x/Crypto", Method: "hash", Descriptor: "([B)[B"}), row.Target())

	ic, ok := row.Column("instructionCount")
	require.True(t, ok)
	assert.Equal(t, int64(420), ic)

	ev := row.Evidence()
	require.Len(t, ev, 2)
	assert.Equal(t, "Call to java/security/MessageDigest.digest([B)[B", ev[1].Description)
	assert.Equal(t, result.ClickTarget(result.PCTarget{Class: "com/x/Crypto", Method: "hash", Descriptor: "([B)[B", PC: 9}), ev[1].Target)
}

func TestResult_ToClassAndPathRows(t *testing.T) {
	t.Parallel()
	r := sampleResult()
	rows := r.ToClassRows()
	require.Len(t, rows, 1)
	assert.Equal(t, "com/x/Crypto", rows[0].Label())
	assert.Equal(t, result.ClickTarget(result.ClassTarget{Class: "com/x/Crypto"}), rows[0].Target())
	n, _ := rows[0].Column("methods")
	assert.Equal(t, 1, n)

	assert.Empty(t, r.ToPathRows())
}

func TestResult_ToEventRows(t *testing.T) {
	t.Parallel()
	rows := sampleResult().ToEventRows()
	require.Len(t, rows, 4)
	assert.Equal(t, "CALL java/security/MessageDigest.getInstance", rows[0].Label())
	assert.Equal(t, "READ rounds", rows[2].Label())
	assert.Equal(t, "WRITE last", rows[3].Label())
	pc, _ := rows[3].Column("pc")
	assert.Equal(t, 15, pc)
}

func TestResult_ToStringRows_TruncatesLongValues(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 120)
	r := NewResultBuilder(sig).RecordString(1, 2, long, "concat").RecordString(2, 3, "short", "ldc").Build()
	rows := r.ToStringRows()
	require.Len(t, rows, 2)
	assert.Equal(t, strings.Repeat("x", 97)+"...", rows[0].Label())
	assert.Equal(t, "short", rows[1].Label())
	origin, _ := rows[0].Column("origin")
	assert.Equal(t, "concat", origin)
}

func TestResult_ToObjectRows_SortedByType(t *testing.T) {
	t.Parallel()
	rows := sampleResult().ToObjectRows()
	require.Len(t, rows, 2)
	assert.Equal(t, "[B", rows[0].Label())
	assert.Equal(t, "java/lang/String", rows[1].Label())
	count, _ := rows[0].Column("count")
	assert.Equal(t, 2, count)
}

// =============================================================================
// Wire format
// =============================================================================

func TestReadResults(t *testing.T) {
	t.Parallel()
	doc := `[
	  {"method": "A.m()V", "instructionCount": 10,
	   "allocations": {"[B": 3},
	   "calls": [{"sequence": 1, "pc": 2, "owner": "B", "name": "n", "desc": "()V"}],
	   "fields": [{"sequence": 2, "pc": 4, "owner": "A", "field": "f", "desc": "I", "write": true, "value": "7"}]},
	  {"method": "A.k()V"}
	]`
	results, err := ReadResults(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(10), results[0].InstructionCount())
	assert.Equal(t, 3, results[0].AllocationCount("[B"))
	assert.True(t, results[0].HasCallTo("B", "n"))
	assert.Equal(t, "7", results[0].FieldEvents()[0].Value)
	assert.Empty(t, results[1].ToObjectRows())

	single, err := ReadResults(strings.NewReader(`{"method": "A.m()V"}`))
	require.NoError(t, err)
	require.Len(t, single, 1)

	empty, err := ReadResults(strings.NewReader("  "))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ReadResults(strings.NewReader(`{"instructionCount": 1}`))
	assert.Error(t, err)
}
