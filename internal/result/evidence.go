package result

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EventType is the kind of runtime event an Evidence records.
type EventType int

const (
	EventCall EventType = iota
	EventAllocation
	EventFieldRead
	EventFieldWrite
	EventStringCreate
	EventExceptionThrow
	EventExceptionCatch
	EventBranch
	EventMethodEntry
	EventMethodExit
)

var eventNames = [...]string{
	EventCall:           "CALL",
	EventAllocation:     "ALLOCATION",
	EventFieldRead:      "FIELD_READ",
	EventFieldWrite:     "FIELD_WRITE",
	EventStringCreate:   "STRING_CREATE",
	EventExceptionThrow: "EXCEPTION_THROW",
	EventExceptionCatch: "EXCEPTION_CATCH",
	EventBranch:         "BRANCH",
	EventMethodEntry:    "METHOD_ENTRY",
	EventMethodExit:     "METHOD_EXIT",
}

func (e EventType) String() string {
	if int(e) >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("EventType(%d)", int(e))
}

func (e EventType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// Evidence is one observed runtime event tied to a program location.
// It is a comparable value; equality is structural over every field.
type Evidence struct {
	Sequence        int64
	MethodSignature string
	PC              int
	EventType       EventType
	Description     string
	Target          ClickTarget
}

const stringPreviewLimit = 50

func newEvidence(seq int64, method string, pc int, kind EventType, desc string) Evidence {
	class, name, descriptor := ParseSignature(method)
	return Evidence{
		Sequence:        seq,
		MethodSignature: method,
		PC:              pc,
		EventType:       kind,
		Description:     desc,
		Target:          PCTarget{Class: class, Method: name, Descriptor: descriptor, PC: pc},
	}
}

// CallEvidence records a call from method to targetMethod.
func CallEvidence(seq int64, method string, pc int, targetMethod string) Evidence {
	return newEvidence(seq, method, pc, EventCall, "Call to "+targetMethod)
}

// AllocationEvidence records an allocation of typeName with an object id.
func AllocationEvidence(seq int64, method string, pc int, typeName string, objectID int) Evidence {
	return newEvidence(seq, method, pc, EventAllocation,
		"Allocated "+typeName+" @"+strconv.FormatInt(int64(uint32(objectID)), 16))
}

// FieldReadEvidence records a read of fieldName.
func FieldReadEvidence(seq int64, method string, pc int, fieldName string) Evidence {
	return newEvidence(seq, method, pc, EventFieldRead, "Read "+fieldName)
}

// FieldWriteEvidence records a write of newValue to fieldName.
func FieldWriteEvidence(seq int64, method string, pc int, fieldName, newValue string) Evidence {
	return newEvidence(seq, method, pc, EventFieldWrite, fieldName+" = "+newValue)
}

// StringEvidence records a string creation. Values longer than 50
// characters are shown as their first 47 followed by "...".
func StringEvidence(seq int64, method string, pc int, value string) Evidence {
	return newEvidence(seq, method, pc, EventStringCreate, `String: "`+Truncate(value, stringPreviewLimit)+`"`)
}

// ExceptionThrowEvidence records a throw of exceptionType.
func ExceptionThrowEvidence(seq int64, method string, pc int, exceptionType string) Evidence {
	return newEvidence(seq, method, pc, EventExceptionThrow, "Throw "+exceptionType)
}

// ExceptionCatchEvidence records a catch of exceptionType.
func ExceptionCatchEvidence(seq int64, method string, pc int, exceptionType string) Evidence {
	return newEvidence(seq, method, pc, EventExceptionCatch, "Catch "+exceptionType)
}

// BranchEvidence records a conditional branch at pc toward toPC.
func BranchEvidence(seq int64, method string, pc, toPC int, taken bool) Evidence {
	verb := "not taken"
	if taken {
		verb = "taken"
	}
	return newEvidence(seq, method, pc, EventBranch, fmt.Sprintf("Branch to %d %s", toPC, verb))
}

// Truncate shortens s to limit-3 runes plus "..." when it has more than
// limit runes.
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}

type evidenceJSON struct {
	Sequence        int64     `json:"sequence"`
	MethodSignature string    `json:"methodSignature"`
	PC              int       `json:"pc"`
	EventType       EventType `json:"eventType"`
	Description     string    `json:"description"`
	Target          string    `json:"target,omitempty"`
}

func (e Evidence) MarshalJSON() ([]byte, error) {
	out := evidenceJSON{
		Sequence:        e.Sequence,
		MethodSignature: e.MethodSignature,
		PC:              e.PC,
		EventType:       e.EventType,
		Description:     e.Description,
	}
	if e.Target != nil {
		out.Target = e.Target.Signature()
	}
	return json.Marshal(out)
}
