package indexer

import (
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

var primitiveDescriptors = map[string]string{
	"byte":    "B",
	"char":    "C",
	"double":  "D",
	"float":   "F",
	"int":     "I",
	"long":    "J",
	"short":   "S",
	"boolean": "Z",
	"void":    "V",
}

const objectDescriptor = "Ljava/lang/Object;"

func isTypeNode(n *sitter.Node) bool {
	switch n.Type() {
	case "integral_type", "floating_point_type", "boolean_type", "void_type",
		"type_identifier", "scoped_type_identifier", "generic_type", "array_type", "annotated_type":
		return true
	}
	return false
}

// descriptor renders a type node as a JVM field descriptor. Type variables
// erase to Object.
func (x *extractor) descriptor(n *sitter.Node, t *typeDecl, tv map[string]bool) string {
	if n == nil {
		return objectDescriptor
	}
	switch n.Type() {
	case "integral_type", "floating_point_type", "boolean_type", "void_type":
		return primitiveDescriptors[x.text(n)]
	case "array_type":
		return withDims(x.descriptor(n.ChildByFieldName("element"), t, tv), x.text(n.ChildByFieldName("dimensions")))
	case "generic_type":
		for _, c := range namedChildren(n) {
			if isTypeNode(c) {
				return x.descriptor(c, t, tv)
			}
		}
		return objectDescriptor
	case "annotated_type":
		kids := namedChildren(n)
		if len(kids) == 0 {
			return objectDescriptor
		}
		return x.descriptor(kids[len(kids)-1], t, tv)
	case "type_identifier", "scoped_type_identifier":
		name := stripTypeArgs(x.text(n))
		if !strings.Contains(name, ".") && isTypeVar(t, tv, name) {
			return objectDescriptor
		}
		return "L" + x.resolve(t, name) + ";"
	}
	return objectDescriptor
}

func isTypeVar(t *typeDecl, tv map[string]bool, name string) bool {
	if tv[name] {
		return true
	}
	for ; t != nil; t = t.outer {
		if t.typeParams[name] {
			return true
		}
	}
	return false
}

// resolve maps a source type name to an internal class name. Unknown simple
// names are assumed to live in the current package.
func (x *extractor) resolve(t *typeDecl, name string) string {
	if head, rest, ok := strings.Cut(name, "."); ok {
		if owner := x.lookup(t, head); owner != "" {
			return owner + "$" + strings.ReplaceAll(rest, ".", "$")
		}
		return qualifiedInternal(name)
	}
	if owner := x.lookup(t, name); owner != "" {
		return owner
	}
	if x.pkg != "" {
		return x.pkg + "/" + name
	}
	return name
}

// lookup resolves a simple type name through member types of the enclosing
// classes, types declared in the file, single-type imports, java.lang and
// well-known members of wildcard-imported packages.
func (x *extractor) lookup(t *typeDecl, name string) string {
	for c := t; c != nil; c = c.outer {
		for _, s := range x.lineage(c.name) {
			if _, ok := x.byName[s.name+"$"+name]; ok {
				return s.name + "$" + name
			}
		}
	}
	if owner, ok := x.simple[name]; ok {
		return owner
	}
	if owner, ok := x.imports[name]; ok {
		return owner
	}
	if javaLang[name] {
		return "java/lang/" + name
	}
	if pkg, ok := wellKnownTypes[name]; ok && slices.Contains(x.wildcards, pkg) {
		return pkg + "/" + name
	}
	return ""
}

// qualifiedInternal converts a dotted name to an internal name. Segments
// from the first capitalised one onward are nested classes.
func qualifiedInternal(name string) string {
	parts := strings.Split(name, ".")
	i := slices.IndexFunc(parts, func(p string) bool { return p != "" && p[0] >= 'A' && p[0] <= 'Z' })
	switch {
	case i < 0:
		return strings.Join(parts, "/")
	case i == 0:
		return strings.Join(parts, "$")
	}
	return strings.Join(parts[:i], "/") + "/" + strings.Join(parts[i:], "$")
}

func stripTypeArgs(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			depth--
		case depth == 0 && r != ' ' && r != '\t' && r != '\n':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// withDims prefixes desc with one '[' per "[]" in dims.
func withDims(desc, dims string) string {
	return strings.Repeat("[", strings.Count(dims, "[")) + desc
}

func methodDescriptor(params []param, ret string) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range params {
		b.WriteString(p.desc)
	}
	b.WriteByte(')')
	b.WriteString(ret)
	return b.String()
}

// paramCount counts the parameters of a method descriptor.
func paramCount(desc string) int {
	open := strings.IndexByte(desc, '(')
	end := strings.IndexByte(desc, ')')
	if open < 0 || end < open {
		return 0
	}
	n := 0
	for i := open + 1; i < end; i++ {
		switch desc[i] {
		case '[':
			continue
		case 'L':
			semi := strings.IndexByte(desc[i:], ';')
			if semi < 0 {
				return n
			}
			i += semi
		}
		n++
	}
	return n
}

// ownerOf returns the class named by an object descriptor, or "" for
// primitives and arrays.
func ownerOf(desc string) string {
	if len(desc) > 2 && desc[0] == 'L' && desc[len(desc)-1] == ';' {
		return desc[1 : len(desc)-1]
	}
	return ""
}

var javaLang = map[string]bool{
	"Appendable": true, "ArithmeticException": true, "AutoCloseable": true, "Boolean": true,
	"Byte": true, "CharSequence": true, "Character": true, "Class": true, "ClassCastException": true,
	"ClassLoader": true, "Cloneable": true, "Comparable": true, "Deprecated": true, "Double": true,
	"Enum": true, "Error": true, "Exception": true, "Float": true, "FunctionalInterface": true,
	"IllegalArgumentException": true, "IllegalStateException": true, "IndexOutOfBoundsException": true,
	"Integer": true, "InterruptedException": true, "Iterable": true, "Long": true, "Math": true,
	"NullPointerException": true, "Number": true, "NumberFormatException": true, "Object": true,
	"Override": true, "Process": true, "ProcessBuilder": true, "Record": true, "Runnable": true,
	"Runtime": true, "RuntimeException": true, "SafeVarargs": true, "SecurityException": true,
	"Short": true, "StackTraceElement": true, "StrictMath": true, "String": true, "StringBuffer": true,
	"StringBuilder": true, "SuppressWarnings": true, "System": true, "Thread": true, "ThreadLocal": true,
	"Throwable": true, "UnsupportedOperationException": true, "Void": true,
}

// wellKnownTypes places common JDK types for files that only wildcard-import
// their package.
var wellKnownTypes = map[string]string{
	"ArrayDeque": "java/util", "ArrayList": "java/util", "Arrays": "java/util", "Base64": "java/util",
	"Collection": "java/util", "Collections": "java/util", "Deque": "java/util", "HashMap": "java/util",
	"HashSet": "java/util", "Iterator": "java/util", "LinkedHashMap": "java/util", "LinkedList": "java/util",
	"List": "java/util", "Map": "java/util", "Objects": "java/util", "Optional": "java/util",
	"Properties": "java/util", "Queue": "java/util", "Random": "java/util", "Scanner": "java/util",
	"Set": "java/util", "TreeMap": "java/util", "UUID": "java/util",

	"BufferedReader": "java/io", "ByteArrayInputStream": "java/io", "ByteArrayOutputStream": "java/io",
	"File": "java/io", "FileInputStream": "java/io", "FileOutputStream": "java/io",
	"IOException": "java/io", "InputStream": "java/io", "InputStreamReader": "java/io",
	"OutputStream": "java/io", "PrintStream": "java/io", "Reader": "java/io", "Serializable": "java/io",
	"UncheckedIOException": "java/io", "Writer": "java/io",

	"MessageDigest": "java/security", "NoSuchAlgorithmException": "java/security",
	"SecureRandom": "java/security",
}

var wellKnownFields = map[string]string{
	"java/lang/System.out": "Ljava/io/PrintStream;",
	"java/lang/System.err": "Ljava/io/PrintStream;",
	"java/lang/System.in":  "Ljava/io/InputStream;",
}
