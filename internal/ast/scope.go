package ast

import (
	"fmt"
	"regexp"
	"strings"
)

// Scope structurally restricts which code a query considers.
type Scope interface {
	scope()
	String() string
}

// AllScope places no restriction.
type AllScope struct{}

// ClassScope restricts to classes whose internal name matches Pattern,
// exactly or as a regex.
type ClassScope struct {
	Pattern string
	Regex   bool
}

// MethodScope restricts to methods whose signature or name matches Pattern.
type MethodScope struct {
	Pattern string
	Regex   bool
}

// DuringScope restricts to events raised while a method runs. With Clinit
// set the method is a static initialiser, optionally limited to Class.
type DuringScope struct {
	MethodPattern string
	Clinit        bool
	Class         *ClassScope
}

// BetweenScope restricts to execution between two events.
type BetweenScope struct {
	Start, End Predicate
}

func (*AllScope) scope()     {}
func (*ClassScope) scope()   {}
func (*MethodScope) scope()  {}
func (*DuringScope) scope()  {}
func (*BetweenScope) scope() {}

func (*AllScope) String() string { return "all" }

func (s *ClassScope) String() string {
	if s.Regex {
		return fmt.Sprintf("class /%s/", s.Pattern)
	}
	return fmt.Sprintf("class %q", s.Pattern)
}

func (s *MethodScope) String() string {
	if s.Regex {
		return fmt.Sprintf("method /%s/", s.Pattern)
	}
	return fmt.Sprintf("method %q", s.Pattern)
}

func (s *DuringScope) String() string {
	if s.Clinit {
		if s.Class != nil {
			return "during clinit of " + s.Class.String()
		}
		return "during clinit"
	}
	return fmt.Sprintf("during method %q", s.MethodPattern)
}

func (s *BetweenScope) String() string {
	return fmt.Sprintf("between %s and %s", s.Start, s.End)
}

// IsAll reports whether s places no restriction.
func IsAll(s Scope) bool {
	if s == nil {
		return true
	}
	_, ok := s.(*AllScope)
	return ok
}

// Regexp returns the pattern as a regular expression source. Exact patterns
// are quoted.
func (s *ClassScope) Regexp() string {
	if s.Regex {
		return s.Pattern
	}
	return "^" + regexp.QuoteMeta(s.Pattern) + "$"
}

// Regexp returns the pattern as a regular expression source. Exact patterns
// are quoted.
func (s *MethodScope) Regexp() string {
	if s.Regex {
		return s.Pattern
	}
	return "^" + regexp.QuoteMeta(s.Pattern) + "$"
}

// PackageScope turns "com.foo.*" or "com/foo" into a class scope matching
// every class in that package and its subpackages.
func PackageScope(pkg string) *ClassScope {
	pkg = strings.TrimSuffix(strings.TrimSuffix(pkg, "*"), ".")
	pkg = strings.TrimSuffix(strings.ReplaceAll(pkg, ".", "/"), "/")
	return &ClassScope{Pattern: "^" + regexp.QuoteMeta(pkg) + "/", Regex: true}
}

// ClinitScope is the static-initialiser scope, optionally limited to a class.
func ClinitScope(class *ClassScope) *DuringScope {
	return &DuringScope{MethodPattern: "<clinit>", Clinit: true, Class: class}
}
