// Package indexer extracts classes, members, string constants and cross
// references from Java sources into store.FileIndex buffers.
//
// Extraction runs in three passes over one tree-sitter parse: type names are
// registered first so references can resolve to types declared later in the
// file, then member declarations (with JVM descriptors), then method bodies.
package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/jward/probeql/internal/store"
)

// Version identifies the extraction rules. Stored indexes built by another
// version are rebuilt from scratch.
const Version = "java-1"

// Supported reports whether path is a source file the indexer understands.
func Supported(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".java")
}

// ExtractJava parses one compilation unit and returns everything it
// declares and references.
func ExtractJava(ctx context.Context, path string, src []byte) (*store.FileIndex, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	x := &extractor{
		src:           src,
		fi:            store.NewFileIndex(path),
		imports:       map[string]string{},
		staticImports: map[string]string{},
		simple:        map[string]string{},
		byName:        map[string]*typeDecl{},
		pcs:           map[string]int{},
	}
	root := tree.RootNode()
	x.readHeader(root)
	x.declareTypes(root, nil)
	x.process(0)
	return x.fi, nil
}

// typeDecl is one class, interface, enum, record or anonymous class.
type typeDecl struct {
	node       *sitter.Node
	name       string
	super      string
	kind       string
	outer      *typeDecl
	top        *typeDecl
	typeParams map[string]bool
	fields     map[string]string
	methods    []store.MethodDecl
	initDesc   string
	anonCount  int
}

func (t *typeDecl) isInterface() bool {
	return t.kind == "interface_declaration" || t.kind == "annotation_type_declaration"
}

// body returns the node holding the type's members.
func (t *typeDecl) body() *sitter.Node {
	if t.node.Type() == "class_body" {
		return t.node
	}
	return t.node.ChildByFieldName("body")
}

type extractor struct {
	src []byte
	fi  *store.FileIndex

	pkg             string
	imports         map[string]string
	wildcards       []string
	staticImports   map[string]string
	staticWildcards []string

	simple map[string]string
	byName map[string]*typeDecl
	types  []*typeDecl
	pcs    map[string]int
}

func (x *extractor) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(x.src)
}

// =============================================================================
// Header
// =============================================================================

func (x *extractor) readHeader(root *sitter.Node) {
	for _, n := range namedChildren(root) {
		switch n.Type() {
		case "package_declaration":
			for _, c := range namedChildren(n) {
				if c.Type() == "scoped_identifier" || c.Type() == "identifier" {
					x.pkg = strings.ReplaceAll(x.text(c), ".", "/")
				}
			}
		case "import_declaration":
			x.readImport(n)
		}
	}
}

func (x *extractor) readImport(n *sitter.Node) {
	var name string
	static, wildcard := false, false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "static":
			static = true
		case "asterisk":
			wildcard = true
		case "scoped_identifier", "identifier":
			name = x.text(c)
		}
	}
	if name == "" {
		return
	}
	switch {
	case static && wildcard:
		x.staticWildcards = append(x.staticWildcards, qualifiedInternal(name))
	case static:
		dot := strings.LastIndexByte(name, '.')
		if dot > 0 {
			x.staticImports[name[dot+1:]] = qualifiedInternal(name[:dot])
		}
	case wildcard:
		x.wildcards = append(x.wildcards, strings.ReplaceAll(name, ".", "/"))
	default:
		x.imports[name[strings.LastIndexByte(name, '.')+1:]] = qualifiedInternal(name)
	}
}

// =============================================================================
// Type names
// =============================================================================

var typeDeclKinds = map[string]bool{
	"class_declaration":           true,
	"interface_declaration":       true,
	"enum_declaration":            true,
	"record_declaration":          true,
	"annotation_type_declaration": true,
}

// declareTypes registers every named type declared directly under parent.
func (x *extractor) declareTypes(parent *sitter.Node, outer *typeDecl) {
	if parent == nil {
		return
	}
	for _, n := range namedChildren(parent) {
		switch {
		case typeDeclKinds[n.Type()]:
			simple := x.text(n.ChildByFieldName("name"))
			if simple == "" {
				continue
			}
			name := simple
			switch {
			case outer != nil:
				name = outer.name + "$" + simple
			case x.pkg != "":
				name = x.pkg + "/" + simple
			}
			if _, seen := x.simple[simple]; !seen {
				x.simple[simple] = name
			}
			x.declareType(n, name, outer)
		case n.Type() == "enum_body_declarations":
			x.declareTypes(n, outer)
		}
	}
}

func (x *extractor) declareType(n *sitter.Node, name string, outer *typeDecl) *typeDecl {
	t := &typeDecl{
		node:       n,
		name:       name,
		kind:       n.Type(),
		outer:      outer,
		typeParams: map[string]bool{},
		fields:     map[string]string{},
	}
	t.top = t
	if outer != nil {
		t.top = outer.top
	}
	x.byName[name] = t
	x.types = append(x.types, t)
	if t.kind != "class_body" {
		x.declareTypes(t.body(), t)
	}
	return t
}

// process declares members of, then visits, every type registered since
// index from.
func (x *extractor) process(from int) {
	pending := slices.Clone(x.types[from:])
	for _, t := range pending {
		x.declareMembers(t)
	}
	for _, t := range pending {
		x.visitType(t)
	}
}

// =============================================================================
// Members
// =============================================================================

func (x *extractor) declareMembers(t *typeDecl) {
	if tp := t.node.ChildByFieldName("type_parameters"); tp != nil {
		for _, p := range namedChildren(tp) {
			for _, c := range namedChildren(p) {
				if c.Type() == "type_identifier" || c.Type() == "identifier" {
					t.typeParams[x.text(c)] = true
					break
				}
			}
		}
	}

	switch t.kind {
	case "class_declaration":
		t.super = "java/lang/Object"
		if sc := t.node.ChildByFieldName("superclass"); sc != nil {
			for _, c := range namedChildren(sc) {
				if owner := ownerOf(x.descriptor(c, t, nil)); owner != "" {
					t.super = owner
				}
			}
		}
	case "enum_declaration":
		t.super = "java/lang/Enum"
	case "record_declaration":
		t.super = "java/lang/Record"
	case "class_body":
		// Anonymous classes get their supertype from the creation site.
	default:
		t.super = "java/lang/Object"
	}
	x.fi.AddClass(t.name, t.super)

	startLine := int(t.node.StartPoint().Row) + 1
	endLine := int(t.node.EndPoint().Row) + 1
	staticInit, hasCtor := false, false

	var canonical string
	if t.kind == "record_declaration" {
		params := x.params(t.node.ChildByFieldName("parameters"), t, nil)
		for _, p := range params {
			x.addField(t, p.name, p.desc)
		}
		canonical = methodDescriptor(params, "V")
	}

	for _, n := range x.members(t) {
		switch n.Type() {
		case "field_declaration", "constant_declaration":
			desc := x.descriptor(n.ChildByFieldName("type"), t, nil)
			static := t.isInterface() || hasModifier(n, "static")
			for _, d := range namedChildren(n) {
				if d.Type() != "variable_declarator" {
					continue
				}
				x.addField(t, x.text(d.ChildByFieldName("name")), withDims(desc, x.text(d.ChildByFieldName("dimensions"))))
				if static && d.ChildByFieldName("value") != nil {
					staticInit = true
				}
			}
		case "enum_constant":
			x.addField(t, x.text(n.ChildByFieldName("name")), "L"+t.name+";")
			staticInit = true
		case "method_declaration", "annotation_type_element_declaration":
			tv := x.methodTypeParams(n)
			params := x.params(n.ChildByFieldName("parameters"), t, tv)
			ret := withDims(x.descriptor(n.ChildByFieldName("type"), t, tv), x.text(n.ChildByFieldName("dimensions")))
			x.addMethod(t, x.text(n.ChildByFieldName("name")), methodDescriptor(params, ret), n)
		case "constructor_declaration":
			tv := x.methodTypeParams(n)
			desc := methodDescriptor(x.params(n.ChildByFieldName("parameters"), t, tv), "V")
			x.addMethod(t, "<init>", desc, n)
			hasCtor = true
		case "compact_constructor_declaration":
			x.addMethod(t, "<init>", canonical, n)
			hasCtor = true
		case "static_initializer":
			staticInit = true
		}
	}

	if !hasCtor && !t.isInterface() {
		desc := "()V"
		if t.kind == "record_declaration" {
			desc = canonical
		}
		x.addMethodLines(t, store.MethodDecl{Name: "<init>", Descriptor: desc, StartLine: startLine, EndLine: startLine})
	}
	for _, m := range t.methods {
		if m.Name == "<init>" {
			t.initDesc = m.Descriptor
			break
		}
	}
	if staticInit {
		x.addMethodLines(t, store.MethodDecl{Name: "<clinit>", Descriptor: "()V", StartLine: startLine, EndLine: endLine})
	}
}

// members flattens a type body, including the declarations section of an
// enum body.
func (x *extractor) members(t *typeDecl) []*sitter.Node {
	var out []*sitter.Node
	for _, n := range namedChildren(t.body()) {
		if n.Type() == "enum_body_declarations" {
			out = append(out, namedChildren(n)...)
			continue
		}
		out = append(out, n)
	}
	return out
}

func (x *extractor) addField(t *typeDecl, name, desc string) {
	if name == "" {
		return
	}
	t.fields[name] = desc
	x.fi.AddField(t.name, store.FieldDecl{Name: name, Descriptor: desc})
}

func (x *extractor) addMethod(t *typeDecl, name, desc string, n *sitter.Node) {
	x.addMethodLines(t, store.MethodDecl{
		Name:       name,
		Descriptor: desc,
		StartLine:  int(n.StartPoint().Row) + 1,
		EndLine:    int(n.EndPoint().Row) + 1,
	})
}

func (x *extractor) addMethodLines(t *typeDecl, m store.MethodDecl) {
	if m.Name == "" {
		return
	}
	t.methods = append(t.methods, m)
	x.fi.AddMethod(t.name, m)
}

func (x *extractor) methodTypeParams(n *sitter.Node) map[string]bool {
	tp := n.ChildByFieldName("type_parameters")
	if tp == nil {
		return nil
	}
	out := map[string]bool{}
	for _, p := range namedChildren(tp) {
		for _, c := range namedChildren(p) {
			if c.Type() == "type_identifier" || c.Type() == "identifier" {
				out[x.text(c)] = true
				break
			}
		}
	}
	return out
}

type param struct {
	name string
	desc string
}

func (x *extractor) params(n *sitter.Node, t *typeDecl, tv map[string]bool) []param {
	var out []param
	for _, p := range namedChildren(n) {
		switch p.Type() {
		case "formal_parameter":
			desc := x.descriptor(p.ChildByFieldName("type"), t, tv)
			out = append(out, param{
				name: x.text(p.ChildByFieldName("name")),
				desc: withDims(desc, x.text(p.ChildByFieldName("dimensions"))),
			})
		case "spread_parameter":
			var pr param
			for _, c := range namedChildren(p) {
				switch {
				case c.Type() == "variable_declarator":
					pr.name = x.text(c.ChildByFieldName("name"))
				case c.Type() == "identifier":
					pr.name = x.text(c)
				case isTypeNode(c) && pr.desc == "":
					pr.desc = "[" + x.descriptor(c, t, tv)
				}
			}
			out = append(out, pr)
		}
	}
	return out
}

// =============================================================================
// Bodies
// =============================================================================

func (x *extractor) visitType(t *typeDecl) {
	for _, n := range x.members(t) {
		switch n.Type() {
		case "field_declaration", "constant_declaration":
			m := x.initializerCtx(t, t.isInterface() || hasModifier(n, "static"))
			for _, d := range namedChildren(n) {
				if d.Type() != "variable_declarator" {
					continue
				}
				value := d.ChildByFieldName("value")
				if value == nil {
					continue
				}
				m.walk(value)
				name := x.text(d.ChildByFieldName("name"))
				m.addRef(kindWrite, t.name, name, t.fields[name], d, m.argKinds([]*sitter.Node{value}))
			}
		case "enum_constant":
			m := x.initializerCtx(t, true)
			args := namedChildren(n.ChildByFieldName("arguments"))
			for _, a := range args {
				m.walk(a)
			}
			owner := t.name
			if body := n.ChildByFieldName("body"); body != nil {
				owner = x.anonymous(t, body, t.name).name
			}
			m.addRef(kindCall, owner, "<init>", "", n, m.argKinds(args))
			m.addRef(kindWrite, t.name, x.text(n.ChildByFieldName("name")), "L"+t.name+";", n, nil)
		case "method_declaration":
			body := n.ChildByFieldName("body")
			if body == nil {
				continue
			}
			tv := x.methodTypeParams(n)
			params := x.params(n.ChildByFieldName("parameters"), t, tv)
			ret := withDims(x.descriptor(n.ChildByFieldName("type"), t, tv), x.text(n.ChildByFieldName("dimensions")))
			m := x.newMethodCtx(t, x.text(n.ChildByFieldName("name")), methodDescriptor(params, ret), tv)
			m.declareParams(params)
			m.walk(body)
		case "constructor_declaration":
			tv := x.methodTypeParams(n)
			params := x.params(n.ChildByFieldName("parameters"), t, tv)
			m := x.newMethodCtx(t, "<init>", methodDescriptor(params, "V"), tv)
			m.declareParams(params)
			m.walk(n.ChildByFieldName("body"))
		case "compact_constructor_declaration":
			m := x.newMethodCtx(t, "<init>", t.initDesc, nil)
			m.declareParams(x.params(t.node.ChildByFieldName("parameters"), t, nil))
			m.walk(n.ChildByFieldName("body"))
		case "static_initializer":
			x.initializerCtx(t, true).walk(n)
		case "block":
			x.initializerCtx(t, false).walk(n)
		}
	}
}

// initializerCtx is the synthetic method that runs field initialisers and
// initialiser blocks: <clinit> for static ones, the first constructor
// otherwise.
func (x *extractor) initializerCtx(t *typeDecl, static bool) *methodCtx {
	if static {
		return x.newMethodCtx(t, "<clinit>", "()V", nil)
	}
	return x.newMethodCtx(t, "<init>", t.initDesc, nil)
}

// anonymous declares and visits an anonymous class body. Names follow the
// compiler's Outer$N numbering per top-level class.
func (x *extractor) anonymous(enclosing *typeDecl, body *sitter.Node, super string) *typeDecl {
	top := enclosing.top
	top.anonCount++
	from := len(x.types)
	t := x.declareType(body, fmt.Sprintf("%s$%d", top.name, top.anonCount), enclosing)
	t.super = super
	x.declareTypes(body, t)
	x.process(from)
	return t
}

// localClass declares and visits a class declared inside a method body.
func (x *extractor) localClass(enclosing *typeDecl, n *sitter.Node) {
	simple := x.text(n.ChildByFieldName("name"))
	if simple == "" {
		return
	}
	top := enclosing.top
	top.anonCount++
	name := fmt.Sprintf("%s$%d%s", top.name, top.anonCount, simple)
	x.simple[simple] = name
	from := len(x.types)
	x.declareType(n, name, enclosing)
	x.process(from)
}

// =============================================================================
// Lookups
// =============================================================================

// lineage returns owner followed by its superclasses declared in this file.
func (x *extractor) lineage(owner string) []*typeDecl {
	var out []*typeDecl
	for t := x.byName[owner]; t != nil && !slices.Contains(out, t); t = x.byName[t.super] {
		out = append(out, t)
	}
	return out
}

// fieldOf finds a field declared on owner or its in-file superclasses.
func (x *extractor) fieldOf(owner, name string) (string, bool) {
	for _, t := range x.lineage(owner) {
		if d, ok := t.fields[name]; ok {
			return d, true
		}
	}
	if d, ok := wellKnownFields[owner+"."+name]; ok {
		return d, true
	}
	return "", false
}

// declaresMethod reports whether owner or an in-file superclass declares a
// method called name.
func (x *extractor) declaresMethod(owner, name string) bool {
	for _, t := range x.lineage(owner) {
		if slices.ContainsFunc(t.methods, func(m store.MethodDecl) bool { return m.Name == name }) {
			return true
		}
	}
	return false
}

// methodDesc resolves the descriptor of a call when owner is declared in
// this file and exactly one overload takes arity arguments.
func (x *extractor) methodDesc(owner, name string, arity int) string {
	var found []string
	for _, t := range x.lineage(owner) {
		for _, m := range t.methods {
			if m.Name == name && paramCount(m.Descriptor) == arity && !slices.Contains(found, m.Descriptor) {
				found = append(found, m.Descriptor)
			}
		}
		if len(found) > 0 {
			break
		}
	}
	if len(found) == 1 {
		return found[0]
	}
	return ""
}

// =============================================================================
// Tree helpers
// =============================================================================

// namedChildren returns n's named children without comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "line_comment", "block_comment", "comment":
			continue
		}
		out = append(out, c)
	}
	return out
}

func hasModifier(n *sitter.Node, mod string) bool {
	for _, c := range namedChildren(n) {
		if c.Type() != "modifiers" {
			continue
		}
		for i := 0; i < int(c.ChildCount()); i++ {
			if c.Child(i).Type() == mod {
				return true
			}
		}
	}
	return false
}
