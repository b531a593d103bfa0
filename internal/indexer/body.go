package indexer

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/probeql/internal/ast"
	"github.com/jward/probeql/internal/staticfilter"
)

const (
	kindCall  = staticfilter.KindCall
	kindRead  = staticfilter.KindFieldRead
	kindWrite = staticfilter.KindFieldWrite
)

// methodCtx walks one method body (or initialiser) and records the
// references it makes. Locals are tracked flat per method, without block
// scoping.
type methodCtx struct {
	x        *extractor
	t        *typeDecl
	name     string
	desc     string
	typeVars map[string]bool
	locals   map[string]string
}

func (x *extractor) newMethodCtx(t *typeDecl, name, desc string, tv map[string]bool) *methodCtx {
	return &methodCtx{x: x, t: t, name: name, desc: desc, typeVars: tv, locals: map[string]string{}}
}

func (m *methodCtx) declareParams(params []param) {
	for _, p := range params {
		if p.name != "" {
			m.locals[p.name] = p.desc
		}
	}
}

// addRef records one reference. The ordinal stands in for the bytecode
// offset and follows evaluation order: receivers and arguments first.
func (m *methodCtx) addRef(kind staticfilter.Kind, owner, name, desc string, site *sitter.Node, args []ast.ArgumentType) {
	sig := m.t.name + "." + m.name + m.desc
	pc := m.x.pcs[sig]
	m.x.pcs[sig]++
	m.x.fi.AddXref(staticfilter.Xref{
		SourceClass:  m.t.name,
		SourceMethod: m.name,
		SourceDesc:   m.desc,
		TargetOwner:  owner,
		TargetName:   name,
		TargetDesc:   desc,
		Kind:         kind,
		PC:           pc,
		Line:         int(site.StartPoint().Row) + 1,
		ArgKinds:     args,
	})
}

func (m *methodCtx) walk(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "method_invocation":
		m.invocation(n)
		return
	case "object_creation_expression":
		m.creation(n)
		return
	case "explicit_constructor_invocation":
		m.constructorCall(n)
		return
	case "method_reference":
		m.methodReference(n)
		return
	case "assignment_expression":
		m.assignment(n)
		return
	case "update_expression":
		m.update(n)
		return
	case "field_access":
		m.fieldAccess(n, kindRead)
		return
	case "identifier":
		if owner, desc, ok := m.field(m.x.text(n)); ok {
			m.addRef(kindRead, owner, m.x.text(n), desc, n, nil)
		}
		return
	case "string_literal", "text_block":
		m.x.fi.AddString(m.t.name, stringValue(m.x.text(n)))
		return
	case "local_variable_declaration":
		m.localDeclaration(n)
		return
	case "enhanced_for_statement":
		m.walk(n.ChildByFieldName("value"))
		m.declareLocal(n.ChildByFieldName("name"), m.x.descriptor(n.ChildByFieldName("type"), m.t, m.typeVars))
		m.walk(n.ChildByFieldName("body"))
		return
	case "catch_formal_parameter":
		desc := objectDescriptor
		for _, c := range namedChildren(n) {
			if c.Type() == "catch_type" {
				if kids := namedChildren(c); len(kids) > 0 {
					desc = m.x.descriptor(kids[0], m.t, m.typeVars)
				}
			}
		}
		m.declareLocal(n.ChildByFieldName("name"), desc)
		return
	case "resource":
		if typ := n.ChildByFieldName("type"); typ != nil {
			m.walk(n.ChildByFieldName("value"))
			m.declareLocal(n.ChildByFieldName("name"), m.x.descriptor(typ, m.t, m.typeVars))
			return
		}
	case "instanceof_expression":
		m.walk(n.ChildByFieldName("left"))
		if name := n.ChildByFieldName("name"); name != nil {
			m.declareLocal(name, m.x.descriptor(n.ChildByFieldName("right"), m.t, m.typeVars))
		}
		return
	case "lambda_expression":
		m.lambda(n)
		return
	case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
		m.x.localClass(m.t, n)
		return
	case "marker_annotation", "annotation", "class_literal", "break_statement", "continue_statement":
		return
	case "labeled_statement":
		// The first child is the label.
		for i, c := range namedChildren(n) {
			if i > 0 {
				m.walk(c)
			}
		}
		return
	}
	for _, c := range namedChildren(n) {
		m.walk(c)
	}
}

func (m *methodCtx) declareLocal(name *sitter.Node, desc string) {
	if name != nil {
		m.locals[m.x.text(name)] = desc
	}
}

func (m *methodCtx) localDeclaration(n *sitter.Node) {
	typ := n.ChildByFieldName("type")
	inferred := m.x.text(typ) == "var"
	desc := ""
	if !inferred {
		desc = m.x.descriptor(typ, m.t, m.typeVars)
	}
	for _, d := range namedChildren(n) {
		if d.Type() != "variable_declarator" {
			continue
		}
		value := d.ChildByFieldName("value")
		m.walk(value)
		local := withDims(desc, m.x.text(d.ChildByFieldName("dimensions")))
		if inferred {
			local = ""
			if owner := m.typeOf(value); owner != "" {
				local = "L" + owner + ";"
			}
		}
		m.declareLocal(d.ChildByFieldName("name"), local)
	}
}

func (m *methodCtx) lambda(n *sitter.Node) {
	switch params := n.ChildByFieldName("parameters"); {
	case params == nil:
	case params.Type() == "identifier":
		m.declareLocal(params, "")
	case params.Type() == "formal_parameters":
		m.declareParams(m.x.params(params, m.t, m.typeVars))
	default:
		for _, c := range namedChildren(params) {
			if c.Type() == "identifier" {
				m.declareLocal(c, "")
			}
		}
	}
	m.walk(n.ChildByFieldName("body"))
}

// =============================================================================
// Calls
// =============================================================================

func (m *methodCtx) invocation(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	name := m.x.text(nameNode)
	obj := n.ChildByFieldName("object")
	args := namedChildren(n.ChildByFieldName("arguments"))

	var owner string
	if obj == nil {
		owner = m.implicitOwner(name)
	} else {
		owner = m.typeOf(obj)
		m.walkReceiver(obj)
	}
	for _, a := range args {
		m.walk(a)
	}
	site := nameNode
	if site == nil {
		site = n
	}
	m.addRef(kindCall, owner, name, m.x.methodDesc(owner, name, len(args)), site, m.argKinds(args))
}

// implicitOwner resolves an unqualified call: a method of an enclosing class,
// then static imports, then the current class.
func (m *methodCtx) implicitOwner(name string) string {
	for c := m.t; c != nil; c = c.outer {
		if m.x.declaresMethod(c.name, name) {
			return c.name
		}
	}
	if owner, ok := m.x.staticImports[name]; ok {
		return owner
	}
	if len(m.x.staticWildcards) == 1 {
		return m.x.staticWildcards[0]
	}
	return m.t.name
}

func (m *methodCtx) creation(n *sitter.Node) {
	owner := ownerOf(m.x.descriptor(n.ChildByFieldName("type"), m.t, m.typeVars))
	args := namedChildren(n.ChildByFieldName("arguments"))
	for _, a := range args {
		m.walk(a)
	}
	desc := m.x.methodDesc(owner, "<init>", len(args))
	for _, c := range namedChildren(n) {
		if c.Type() == "class_body" {
			owner = m.x.anonymous(m.t, c, owner).name
			desc = ""
		}
	}
	m.addRef(kindCall, owner, "<init>", desc, n, m.argKinds(args))
}

func (m *methodCtx) constructorCall(n *sitter.Node) {
	owner := m.t.name
	if c := n.ChildByFieldName("constructor"); c != nil && c.Type() == "super" {
		owner = m.t.super
	}
	args := namedChildren(n.ChildByFieldName("arguments"))
	for _, a := range args {
		m.walk(a)
	}
	m.addRef(kindCall, owner, "<init>", m.x.methodDesc(owner, "<init>", len(args)), n, m.argKinds(args))
}

func (m *methodCtx) methodReference(n *sitter.Node) {
	kids := namedChildren(n)
	if len(kids) == 0 {
		return
	}
	lhs := kids[0]
	owner, isType := m.typeRef(lhs)
	if !isType {
		owner = m.typeOf(lhs)
		m.walkReceiver(lhs)
	}
	name := "<init>"
	if last := kids[len(kids)-1]; last != lhs && last.Type() == "identifier" {
		name = m.x.text(last)
	}
	m.addRef(kindCall, owner, name, "", n, nil)
}

// walkReceiver walks a call or field receiver unless it only names a type
// or the current instance.
func (m *methodCtx) walkReceiver(obj *sitter.Node) {
	switch obj.Type() {
	case "this", "super":
		return
	}
	if _, isType := m.typeRef(obj); isType {
		return
	}
	m.walk(obj)
}

// =============================================================================
// Fields
// =============================================================================

func (m *methodCtx) fieldAccess(n *sitter.Node, kind staticfilter.Kind) {
	obj := n.ChildByFieldName("object")
	fieldNode := n.ChildByFieldName("field")
	if _, isType := m.typeRef(n); isType || fieldNode == nil {
		return
	}
	owner := m.typeOf(obj)
	m.walkReceiver(obj)
	name := m.x.text(fieldNode)
	desc, _ := m.x.fieldOf(owner, name)
	m.addRef(kind, owner, name, desc, fieldNode, nil)
}

func (m *methodCtx) assignment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	op := m.x.text(n.ChildByFieldName("operator"))
	compound := op != "" && op != "="

	switch left.Type() {
	case "identifier":
		m.walk(right)
		name := m.x.text(left)
		if owner, desc, ok := m.field(name); ok {
			if compound {
				m.addRef(kindRead, owner, name, desc, left, nil)
			}
			m.addRef(kindWrite, owner, name, desc, left, m.argKinds([]*sitter.Node{right}))
		}
	case "field_access":
		obj := left.ChildByFieldName("object")
		fieldNode := left.ChildByFieldName("field")
		owner := m.typeOf(obj)
		m.walkReceiver(obj)
		m.walk(right)
		name := m.x.text(fieldNode)
		desc, _ := m.x.fieldOf(owner, name)
		if compound {
			m.addRef(kindRead, owner, name, desc, fieldNode, nil)
		}
		m.addRef(kindWrite, owner, name, desc, fieldNode, m.argKinds([]*sitter.Node{right}))
	default:
		m.walk(left)
		m.walk(right)
	}
}

func (m *methodCtx) update(n *sitter.Node) {
	kids := namedChildren(n)
	if len(kids) == 0 {
		return
	}
	target := kids[0]
	switch target.Type() {
	case "identifier":
		name := m.x.text(target)
		if owner, desc, ok := m.field(name); ok {
			m.addRef(kindRead, owner, name, desc, target, nil)
			m.addRef(kindWrite, owner, name, desc, target, nil)
		}
	case "field_access":
		m.fieldAccess(target, kindRead)
		m.fieldAccess(target, kindWrite)
	default:
		m.walk(target)
	}
}

// field resolves a bare name to a field when no local shadows it.
func (m *methodCtx) field(name string) (owner, desc string, ok bool) {
	if _, local := m.locals[name]; local {
		return "", "", false
	}
	for c := m.t; c != nil; c = c.outer {
		if d, found := m.x.fieldOf(c.name, name); found {
			return c.name, d, true
		}
	}
	if owner, found := m.x.staticImports[name]; found {
		d, _ := m.x.fieldOf(owner, name)
		return owner, d, true
	}
	return "", "", false
}

// =============================================================================
// Expression types
// =============================================================================

// typeRef reports whether n names a type rather than a value, and which.
func (m *methodCtx) typeRef(n *sitter.Node) (string, bool) {
	switch n.Type() {
	case "identifier", "type_identifier":
		name := m.x.text(n)
		if _, _, isField := m.field(name); isField {
			return "", false
		}
		if _, local := m.locals[name]; local {
			return "", false
		}
		if owner := m.x.lookup(m.t, name); owner != "" {
			return owner, true
		}
		// Capitalised names are types; all-caps ones are constants.
		if name != "" && name[0] >= 'A' && name[0] <= 'Z' && strings.ToUpper(name) != name {
			return m.x.resolve(m.t, name), true
		}
	case "field_access", "scoped_identifier", "scoped_type_identifier", "generic_type":
		text := stripTypeArgs(m.x.text(n))
		head, _, _ := strings.Cut(text, ".")
		if !isDottedName(text) || head == "" {
			return "", false
		}
		if _, local := m.locals[head]; local {
			return "", false
		}
		if _, _, isField := m.field(head); isField {
			return "", false
		}
		if m.x.lookup(m.t, head) != "" {
			last := text[strings.LastIndexByte(text, '.')+1:]
			if last[0] >= 'A' && last[0] <= 'Z' {
				return m.x.resolve(m.t, text), true
			}
			return "", false
		}
		if head[0] >= 'a' && head[0] <= 'z' && strings.ContainsAny(text, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
			last := text[strings.LastIndexByte(text, '.')+1:]
			if last[0] >= 'A' && last[0] <= 'Z' {
				return qualifiedInternal(text), true
			}
		}
	}
	return "", false
}

// typeOf returns the class an expression evaluates to, or "" when it cannot
// be told from source.
func (m *methodCtx) typeOf(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "this":
		return m.t.name
	case "super":
		return m.t.super
	case "string_literal", "text_block":
		return "java/lang/String"
	case "parenthesized_expression":
		if kids := namedChildren(n); len(kids) > 0 {
			return m.typeOf(kids[0])
		}
	case "cast_expression":
		return ownerOf(m.x.descriptor(n.ChildByFieldName("type"), m.t, m.typeVars))
	case "object_creation_expression":
		return ownerOf(m.x.descriptor(n.ChildByFieldName("type"), m.t, m.typeVars))
	case "identifier":
		name := m.x.text(n)
		if d, ok := m.locals[name]; ok {
			return ownerOf(d)
		}
		if _, d, ok := m.field(name); ok {
			return ownerOf(d)
		}
		if owner, ok := m.typeRef(n); ok {
			return owner
		}
	case "field_access":
		if owner, ok := m.typeRef(n); ok {
			return owner
		}
		owner := m.typeOf(n.ChildByFieldName("object"))
		d, _ := m.x.fieldOf(owner, m.x.text(n.ChildByFieldName("field")))
		return ownerOf(d)
	case "method_invocation":
		var owner string
		if obj := n.ChildByFieldName("object"); obj != nil {
			owner = m.typeOf(obj)
		} else {
			owner = m.implicitOwner(m.x.text(n.ChildByFieldName("name")))
		}
		desc := m.x.methodDesc(owner, m.x.text(n.ChildByFieldName("name")), len(namedChildren(n.ChildByFieldName("arguments"))))
		if i := strings.IndexByte(desc, ')'); i >= 0 {
			return ownerOf(desc[i+1:])
		}
	}
	return ""
}

func isDottedName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r == '.', r == '_', r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// =============================================================================
// Argument kinds
// =============================================================================

var literalKinds = map[string]bool{
	"decimal_integer_literal":        true,
	"hex_integer_literal":            true,
	"octal_integer_literal":          true,
	"binary_integer_literal":         true,
	"decimal_floating_point_literal": true,
	"hex_floating_point_literal":     true,
	"character_literal":              true,
	"string_literal":                 true,
	"text_block":                     true,
	"null_literal":                   true,
	"true":                           true,
	"false":                          true,
}

func (m *methodCtx) argKinds(args []*sitter.Node) []ast.ArgumentType {
	if len(args) == 0 {
		return nil
	}
	out := make([]ast.ArgumentType, len(args))
	for i, a := range args {
		out[i] = m.argKind(a)
	}
	return out
}

// argKind classifies what produces an argument value: a constant, a field,
// a local or parameter, a call, or a computation. Anything else is ANY.
func (m *methodCtx) argKind(n *sitter.Node) ast.ArgumentType {
	switch t := n.Type(); {
	case literalKinds[t]:
		return ast.ArgLiteral
	case t == "this":
		return ast.ArgLocal
	case t == "identifier":
		if _, local := m.locals[m.x.text(n)]; local {
			return ast.ArgLocal
		}
		if _, _, isField := m.field(m.x.text(n)); isField {
			return ast.ArgField
		}
		return ast.ArgLocal
	case t == "field_access":
		return ast.ArgField
	case t == "method_invocation", t == "object_creation_expression":
		return ast.ArgCall
	case t == "parenthesized_expression":
		if kids := namedChildren(n); len(kids) > 0 {
			return m.argKind(kids[0])
		}
	case t == "unary_expression" && literalKinds[firstNamedType(n)]:
		return ast.ArgLiteral
	case t == "binary_expression":
		if m.argKind(n.ChildByFieldName("left")) == ast.ArgLiteral && m.argKind(n.ChildByFieldName("right")) == ast.ArgLiteral {
			return ast.ArgLiteral
		}
		return ast.ArgDynamic
	case t == "cast_expression", t == "unary_expression", t == "array_access",
		t == "array_creation_expression", t == "instanceof_expression":
		return ast.ArgDynamic
	}
	return ast.ArgAny
}

func firstNamedType(n *sitter.Node) string {
	if kids := namedChildren(n); len(kids) > 0 {
		return kids[0].Type()
	}
	return ""
}

// stringValue decodes a string literal or text block.
func stringValue(lit string) string {
	if strings.HasPrefix(lit, `"""`) && strings.HasSuffix(lit, `"""`) && len(lit) >= 6 {
		body := lit[3 : len(lit)-3]
		if i := strings.IndexByte(body, '\n'); i >= 0 {
			body = body[i+1:]
		}
		return body
	}
	if v, err := strconv.Unquote(lit); err == nil {
		return v
	}
	return strings.TrimSuffix(strings.TrimPrefix(lit, `"`), `"`)
}
