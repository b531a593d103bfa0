package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/probeql/internal/ast"
	"github.com/jward/probeql/internal/staticfilter"
	"github.com/jward/probeql/internal/store"
)

const cryptoSrc = `package com.x;

import java.security.MessageDigest;
import java.util.*;

public class Crypto {
    private static final String ALGO = "SHA-256";
    private int rounds = 3;
    private byte[] last;

    public Crypto() {
        this(5);
    }

    public Crypto(int rounds) {
        this.rounds = rounds;
    }

    public byte[] hash(byte[] input) throws Exception {
        MessageDigest md = MessageDigest.getInstance(ALGO);
        List<String> names = new ArrayList<>();
        names.add("x");
        last = md.digest(input);
        rounds++;
        System.out.println(rounds);
        return last;
    }

    static class Box {
        void open(Crypto c, String... labels) {
            c.hash(new byte[0]);
        }
    }
}
`

func extract(t *testing.T, src string) *store.FileIndex {
	t.Helper()
	fi, err := ExtractJava(context.Background(), "/src/Test.java", []byte(src))
	require.NoError(t, err)
	return fi
}

func methodNames(c store.ClassDecl) []string {
	var out []string
	for _, m := range c.Methods {
		out = append(out, m.Name+m.Descriptor)
	}
	return out
}

// refsFrom returns the xrefs recorded in one source method, in order.
func refsFrom(fi *store.FileIndex, sourceSig string) []staticfilter.Xref {
	var out []staticfilter.Xref
	for _, x := range fi.Xrefs {
		if x.SourceSignature() == sourceSig {
			out = append(out, x)
		}
	}
	return out
}

func findRef(t *testing.T, refs []staticfilter.Xref, kind staticfilter.Kind, name string) staticfilter.Xref {
	t.Helper()
	for _, x := range refs {
		if x.Kind == kind && x.TargetName == name {
			return x
		}
	}
	require.Failf(t, "missing xref", "%s %s", kind, name)
	return staticfilter.Xref{}
}

// =============================================================================
// Declarations
// =============================================================================

func TestExtractJava_ClassesAndDescriptors(t *testing.T) {
	t.Parallel()
	fi := extract(t, cryptoSrc)

	crypto, ok := fi.Class("com/x/Crypto")
	require.True(t, ok)
	assert.Equal(t, "java/lang/Object", crypto.SuperName)
	assert.ElementsMatch(t, []string{"<init>()V", "<init>(I)V", "hash([B)[B", "<clinit>()V"}, methodNames(crypto))
	assert.ElementsMatch(t, []store.FieldDecl{
		{Name: "ALGO", Descriptor: "Ljava/lang/String;"},
		{Name: "rounds", Descriptor: "I"},
		{Name: "last", Descriptor: "[B"},
	}, crypto.Fields)
	assert.ElementsMatch(t, []string{"SHA-256", "x"}, crypto.Strings)

	box, ok := fi.Class("com/x/Crypto$Box")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"open(Lcom/x/Crypto;[Ljava/lang/String;)V", "<init>()V"}, methodNames(box))
}

func TestExtractJava_MethodLines(t *testing.T) {
	t.Parallel()
	fi := extract(t, cryptoSrc)
	crypto, _ := fi.Class("com/x/Crypto")
	for _, m := range crypto.Methods {
		if m.Name == "hash" {
			assert.Equal(t, 19, m.StartLine)
			assert.Equal(t, 27, m.EndLine)
			return
		}
	}
	t.Fatal("hash not found")
}

// =============================================================================
// References
// =============================================================================

func TestExtractJava_CallSites(t *testing.T) {
	t.Parallel()
	fi := extract(t, cryptoSrc)
	refs := refsFrom(fi, "com/x/Crypto.hash([B)[B")

	getInstance := findRef(t, refs, staticfilter.KindCall, "getInstance")
	assert.Equal(t, "java/security/MessageDigest", getInstance.TargetOwner)
	assert.Equal(t, []ast.ArgumentType{ast.ArgField}, getInstance.ArgKinds)
	assert.Equal(t, 20, getInstance.Line)

	digest := findRef(t, refs, staticfilter.KindCall, "digest")
	assert.Equal(t, "java/security/MessageDigest", digest.TargetOwner)
	assert.Equal(t, []ast.ArgumentType{ast.ArgLocal}, digest.ArgKinds)

	add := findRef(t, refs, staticfilter.KindCall, "add")
	assert.Equal(t, "java/util/List", add.TargetOwner)
	assert.Equal(t, []ast.ArgumentType{ast.ArgLiteral}, add.ArgKinds)

	ctor := findRef(t, refs, staticfilter.KindCall, "<init>")
	assert.Equal(t, "java/util/ArrayList", ctor.TargetOwner)

	printCall := findRef(t, refs, staticfilter.KindCall, "println")
	assert.Equal(t, "java/io/PrintStream", printCall.TargetOwner)
	assert.Equal(t, []ast.ArgumentType{ast.ArgField}, printCall.ArgKinds)

	assert.Less(t, getInstance.PC, digest.PC, "ordinals follow source order")

	open := refsFrom(fi, "com/x/Crypto$Box.open(Lcom/x/Crypto;[Ljava/lang/String;)V")
	hash := findRef(t, open, staticfilter.KindCall, "hash")
	assert.Equal(t, "com/x/Crypto", hash.TargetOwner)
	assert.Equal(t, "([B)[B", hash.TargetDesc, "in-file methods resolve their descriptor")
	assert.Equal(t, []ast.ArgumentType{ast.ArgDynamic}, hash.ArgKinds)
}

func TestExtractJava_ConstructorChaining(t *testing.T) {
	t.Parallel()
	fi := extract(t, cryptoSrc)
	refs := refsFrom(fi, "com/x/Crypto.<init>()V")

	this := findRef(t, refs, staticfilter.KindCall, "<init>")
	assert.Equal(t, "com/x/Crypto", this.TargetOwner)
	assert.Equal(t, "(I)V", this.TargetDesc)
	assert.Equal(t, []ast.ArgumentType{ast.ArgLiteral}, this.ArgKinds)

	init := findRef(t, refs, staticfilter.KindFieldWrite, "rounds")
	assert.Equal(t, []ast.ArgumentType{ast.ArgLiteral}, init.ArgKinds, "instance initialisers run in the constructor")
}

func TestExtractJava_FieldAccess(t *testing.T) {
	t.Parallel()
	fi := extract(t, cryptoSrc)

	ctor := refsFrom(fi, "com/x/Crypto.<init>(I)V")
	write := findRef(t, ctor, staticfilter.KindFieldWrite, "rounds")
	assert.Equal(t, "com/x/Crypto", write.TargetOwner)
	assert.Equal(t, "I", write.TargetDesc)
	assert.Equal(t, []ast.ArgumentType{ast.ArgLocal}, write.ArgKinds)
	for _, x := range ctor {
		assert.NotEqual(t, staticfilter.KindFieldRead, x.Kind, "the parameter shadows the field")
	}

	hash := refsFrom(fi, "com/x/Crypto.hash([B)[B")
	last := findRef(t, hash, staticfilter.KindFieldWrite, "last")
	assert.Equal(t, "[B", last.TargetDesc)
	assert.Equal(t, []ast.ArgumentType{ast.ArgCall}, last.ArgKinds)

	var roundsReads, roundsWrites int
	for _, x := range hash {
		if x.TargetName == "rounds" {
			switch x.Kind {
			case staticfilter.KindFieldRead:
				roundsReads++
			case staticfilter.KindFieldWrite:
				roundsWrites++
			}
		}
	}
	assert.Equal(t, 2, roundsReads, "rounds++ and println(rounds)")
	assert.Equal(t, 1, roundsWrites)

	out := findRef(t, hash, staticfilter.KindFieldRead, "out")
	assert.Equal(t, "java/lang/System", out.TargetOwner)
	assert.Equal(t, "Ljava/io/PrintStream;", out.TargetDesc)

	clinit := refsFrom(fi, "com/x/Crypto.<clinit>()V")
	algo := findRef(t, clinit, staticfilter.KindFieldWrite, "ALGO")
	assert.Equal(t, "Ljava/lang/String;", algo.TargetDesc)
}

func TestExtractJava_AnonymousClasses(t *testing.T) {
	t.Parallel()
	fi := extract(t, `package com.x;

public class Auth {
    private String token;

    public void login(String user) {
        Runnable r = new Runnable() {
            public void run() { token = "t"; }
        };
        r.run();
    }
}
`)
	anon, ok := fi.Class("com/x/Auth$1")
	require.True(t, ok)
	assert.Equal(t, "java/lang/Runnable", anon.SuperName)
	assert.Contains(t, methodNames(anon), "run()V")
	assert.Contains(t, anon.Strings, "t")

	login := refsFrom(fi, "com/x/Auth.login(Ljava/lang/String;)V")
	assert.Equal(t, "com/x/Auth$1", findRef(t, login, staticfilter.KindCall, "<init>").TargetOwner)
	assert.Equal(t, "java/lang/Runnable", findRef(t, login, staticfilter.KindCall, "run").TargetOwner)

	run := refsFrom(fi, "com/x/Auth$1.run()V")
	assert.Equal(t, "com/x/Auth", findRef(t, run, staticfilter.KindFieldWrite, "token").TargetOwner)
}

func TestExtractJava_EnumsAndStaticImports(t *testing.T) {
	t.Parallel()
	fi := extract(t, `package com.x;

import static java.util.Objects.requireNonNull;

enum Mode {
    FAST("f"), SLOW("s");

    private final String code;

    Mode(String code) {
        this.code = requireNonNull(code);
    }
}
`)
	mode, ok := fi.Class("com/x/Mode")
	require.True(t, ok)
	assert.Equal(t, "java/lang/Enum", mode.SuperName)
	assert.Contains(t, methodNames(mode), "<clinit>()V")
	assert.Contains(t, methodNames(mode), "<init>(Ljava/lang/String;)V")
	assert.Contains(t, mode.Fields, store.FieldDecl{Name: "FAST", Descriptor: "Lcom/x/Mode;"})

	clinit := refsFrom(fi, "com/x/Mode.<clinit>()V")
	ctor := findRef(t, clinit, staticfilter.KindCall, "<init>")
	assert.Equal(t, "com/x/Mode", ctor.TargetOwner)
	assert.Equal(t, []ast.ArgumentType{ast.ArgLiteral}, ctor.ArgKinds)

	init := refsFrom(fi, "com/x/Mode.<init>(Ljava/lang/String;)V")
	assert.Equal(t, "java/util/Objects", findRef(t, init, staticfilter.KindCall, "requireNonNull").TargetOwner)
}

func TestExtractJava_GenericsErase(t *testing.T) {
	t.Parallel()
	fi := extract(t, `package p;

import java.util.Map;

class Cache<K, V> {
    <T extends Comparable<T>> T pick(Map<K, V> in, T fallback, int[][] grid) { return fallback; }
}
`)
	cache, ok := fi.Class("p/Cache")
	require.True(t, ok)
	assert.Contains(t, methodNames(cache), "pick(Ljava/util/Map;Ljava/lang/Object;[[I)Ljava/lang/Object;")
}

// =============================================================================
// Helpers
// =============================================================================

func TestHelpers(t *testing.T) {
	t.Parallel()
	assert.True(t, Supported("src/A.java"))
	assert.False(t, Supported("src/A.kt"))

	assert.Equal(t, "java/util/Map$Entry", qualifiedInternal("java.util.Map.Entry"))
	assert.Equal(t, "com/foo", qualifiedInternal("com.foo"))
	assert.Equal(t, "Outer$Inner", qualifiedInternal("Outer.Inner"))

	assert.Equal(t, 3, paramCount("(I[Ljava/lang/String;J)V"))
	assert.Equal(t, 0, paramCount("()V"))
	assert.Equal(t, "com/x/A", ownerOf("Lcom/x/A;"))
	assert.Empty(t, ownerOf("[B"))

	assert.Equal(t, "a\"b", stringValue(`"a\"b"`))
	assert.Equal(t, "line\n", stringValue("\"\"\"\nline\n\"\"\""))
	assert.Equal(t, "Map", stripTypeArgs("Map<String, List<Integer>>"))
}
