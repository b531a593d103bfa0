package ast

import "strings"

// MemberRef names a method or field. Empty components are wildcards.
// Owners use internal class names ("java/lang/String").
type MemberRef struct {
	Owner string
	Name  string
	Desc  string
}

// ParseMethodRef splits "Owner.name(desc)" into its parts. The last '.'
// separates owner from name; the first '(' after it starts the descriptor.
// A string without '.' is a bare method name.
func ParseMethodRef(s string) MemberRef {
	if s == "" || s == "*" {
		return MemberRef{}
	}
	dot := strings.LastIndexByte(s, '.')
	if paren := strings.IndexByte(s, '('); paren >= 0 && dot > paren {
		dot = strings.LastIndexByte(s[:paren], '.')
	}
	if dot < 0 {
		name, desc := splitDesc(s)
		return MemberRef{Name: name, Desc: desc}
	}
	name, desc := splitDesc(s[dot+1:])
	return MemberRef{Owner: s[:dot], Name: name, Desc: desc}
}

func splitDesc(s string) (string, string) {
	if paren := strings.IndexByte(s, '('); paren >= 0 {
		return s[:paren], s[paren:]
	}
	return s, ""
}

// ParseFieldRef splits "Owner.name:desc" (or "Owner.name", or "name").
func ParseFieldRef(s string) MemberRef {
	if s == "" || s == "*" {
		return MemberRef{}
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == ':' })
	switch len(parts) {
	case 1:
		return MemberRef{Name: parts[0]}
	case 2:
		return MemberRef{Owner: parts[0], Name: parts[1]}
	case 3:
		return MemberRef{Owner: parts[0], Name: parts[1], Desc: parts[2]}
	}
	return MemberRef{Name: s}
}

// OwnerMatches reports whether a concrete owner satisfies the ref's owner:
// equal, or ending with "/"+owner so simple names match qualified ones.
func (m MemberRef) OwnerMatches(owner string) bool {
	if m.Owner == "" {
		return true
	}
	return owner == m.Owner || strings.HasSuffix(owner, "/"+m.Owner)
}

// Matches reports whether a concrete member satisfies the ref.
func (m MemberRef) Matches(owner, name, desc string) bool {
	if !m.OwnerMatches(owner) {
		return false
	}
	if m.Name != "" && m.Name != name {
		return false
	}
	return m.Desc == "" || m.Desc == desc
}

// IsWildcard reports whether neither owner nor name is constrained.
func (m MemberRef) IsWildcard() bool {
	return m.Owner == "" && m.Name == ""
}

func (m MemberRef) String() string {
	var b strings.Builder
	if m.Owner != "" {
		b.WriteString(m.Owner)
		b.WriteByte('.')
	}
	if m.Name != "" {
		b.WriteString(m.Name)
	} else {
		b.WriteByte('*')
	}
	b.WriteString(m.Desc)
	return b.String()
}
