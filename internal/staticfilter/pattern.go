package staticfilter

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Pattern filters by class name and method signature. Either regexp may be
// nil. A regexp matches when it finds a match anywhere in the subject.
type Pattern struct {
	class  *regexp.Regexp
	method *regexp.Regexp
}

// ClassMatching keeps methods whose owner, and classes whose name, match.
func ClassMatching(expr string) (*Pattern, error) {
	return ClassAndMethod(expr, "")
}

// MethodMatching keeps methods whose signature or bare name matches.
func MethodMatching(expr string) (*Pattern, error) {
	return ClassAndMethod("", expr)
}

// ClassAndMethod combines a class and a method expression; an empty
// expression leaves that side unconstrained.
func ClassAndMethod(classExpr, methodExpr string) (*Pattern, error) {
	p := &Pattern{}
	var err error
	if classExpr != "" {
		if p.class, err = regexp.Compile(classExpr); err != nil {
			return nil, fmt.Errorf("class pattern %q: %w", classExpr, err)
		}
	}
	if methodExpr != "" {
		if p.method, err = regexp.Compile(methodExpr); err != nil {
			return nil, fmt.Errorf("method pattern %q: %w", methodExpr, err)
		}
	}
	return p, nil
}

var clinitPattern = regexp.MustCompile(`.*\.<clinit>\(\)V`)

// ClinitMethods keeps static initialisers.
func ClinitMethods() *Pattern {
	return &Pattern{method: clinitPattern}
}

func (p *Pattern) keepMethod(m Method) bool {
	if p.class != nil && !p.class.MatchString(m.Owner) {
		return false
	}
	if p.method != nil {
		return p.method.MatchString(m.Signature()) || p.method.MatchString(m.Name)
	}
	return true
}

func (p *Pattern) FilterMethods(_ context.Context, methods []Method) ([]Candidate, error) {
	var out []Candidate
	for _, m := range methods {
		if p.keepMethod(m) {
			out = append(out, Candidate{Method: m})
		}
	}
	return out, nil
}

// FilterClasses applies the class expression only; a method-only pattern
// keeps every class.
func (p *Pattern) FilterClasses(_ context.Context, classes []Class) ([]Class, error) {
	var out []Class
	for _, c := range classes {
		if p.class == nil || p.class.MatchString(c.Name) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (p *Pattern) String() string {
	var parts []string
	if p.class != nil {
		parts = append(parts, "class~"+p.class.String())
	}
	if p.method != nil {
		parts = append(parts, "method~"+p.method.String())
	}
	return "pattern(" + strings.Join(parts, ", ") + ")"
}
