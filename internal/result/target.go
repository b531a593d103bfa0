// Package result holds the navigable output of query execution: click
// targets, evidence records and result rows.
package result

import (
	"strconv"
	"strings"
)

// ClickTarget is a navigable program location. The variant set is closed:
// MethodTarget, PCTarget, ClassTarget and FieldTarget. All variants are
// comparable values and may be used as map keys.
type ClickTarget interface {
	clickTarget()
	// Signature is the canonical display and deduplication form.
	Signature() string
	// ClassName is the internal name of the owning class.
	ClassName() string
}

// MethodTarget points at a method.
type MethodTarget struct {
	Class      string
	Method     string
	Descriptor string
}

// PCTarget points at one instruction of a method.
type PCTarget struct {
	Class      string
	Method     string
	Descriptor string
	PC         int
}

// ClassTarget points at a class.
type ClassTarget struct {
	Class string
}

// FieldTarget points at a field.
type FieldTarget struct {
	Class      string
	Field      string
	Descriptor string
}

func (MethodTarget) clickTarget() {}
func (PCTarget) clickTarget()     {}
func (ClassTarget) clickTarget()  {}
func (FieldTarget) clickTarget()  {}

func (t MethodTarget) Signature() string { return t.Class + "." + t.Method + t.Descriptor }
func (t PCTarget) Signature() string {
	return t.Class + "." + t.Method + t.Descriptor + "@" + strconv.Itoa(t.PC)
}
func (t ClassTarget) Signature() string { return t.Class }
func (t FieldTarget) Signature() string { return t.Class + "." + t.Field + ":" + t.Descriptor }

func (t MethodTarget) ClassName() string { return t.Class }
func (t PCTarget) ClassName() string     { return t.Class }
func (t ClassTarget) ClassName() string  { return t.Class }
func (t FieldTarget) ClassName() string  { return t.Class }

// MethodTarget returns the enclosing method as a MethodTarget.
func (t PCTarget) MethodTarget() MethodTarget {
	return MethodTarget{Class: t.Class, Method: t.Method, Descriptor: t.Descriptor}
}

// ParseSignature splits "Owner.method(desc)" at the last '.' before the
// first '(' and at that '('. Without a '.', the whole string is the class
// and method and descriptor are empty. It never fails.
func ParseSignature(sig string) (class, method, desc string) {
	head := sig
	if paren := strings.IndexByte(sig, '('); paren >= 0 {
		head = sig[:paren]
		desc = sig[paren:]
	}
	dot := strings.LastIndexByte(head, '.')
	if dot < 0 {
		return sig, "", ""
	}
	return head[:dot], head[dot+1:], desc
}

// ParseMethodTarget returns the MethodTarget for a well-formed signature
// ("Owner.method(desc)"), or nil.
func ParseMethodTarget(sig string) ClickTarget {
	class, method, desc, ok := splitWellFormed(sig)
	if !ok {
		return nil
	}
	return MethodTarget{Class: class, Method: method, Descriptor: desc}
}

// ParsePCTarget returns the PCTarget for a well-formed signature, or nil.
func ParsePCTarget(sig string, pc int) ClickTarget {
	class, method, desc, ok := splitWellFormed(sig)
	if !ok {
		return nil
	}
	return PCTarget{Class: class, Method: method, Descriptor: desc, PC: pc}
}

func splitWellFormed(sig string) (string, string, string, bool) {
	if !strings.Contains(sig, "(") {
		return "", "", "", false
	}
	class, method, desc := ParseSignature(sig)
	if method == "" && desc == "" {
		return "", "", "", false
	}
	return class, method, desc, true
}

// ClassOf returns the class part of a method signature: everything before
// the last '.' preceding the descriptor.
func ClassOf(sig string) string {
	class, _, _ := ParseSignature(sig)
	return class
}
