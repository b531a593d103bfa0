package ast

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// queryDoc is the YAML form of a Query.
type queryDoc struct {
	Kind      string    `yaml:"kind"`
	Target    string    `yaml:"target"`
	Scope     yaml.Node `yaml:"scope"`
	Predicate yaml.Node `yaml:"predicate"`
	Run       *runDoc   `yaml:"run"`
	Limit     int       `yaml:"limit"`
	OrderBy   *orderDoc `yaml:"order_by"`
}

type runDoc struct {
	Seeds           *int   `yaml:"seeds"`
	MaxInstructions *int   `yaml:"max_instructions"`
	MaxDepth        *int   `yaml:"max_depth"`
	Trace           string `yaml:"trace"`
	TimeBudgetMs    *int   `yaml:"time_budget_ms"`
}

type orderDoc struct {
	Key string `yaml:"key"`
	Asc *bool  `yaml:"asc"`
}

// LoadQueryFile reads and decodes a YAML query document.
func LoadQueryFile(path string) (*Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read query file: %w", err)
	}
	q, err := DecodeQuery(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return q, nil
}

// DecodeQuery decodes one YAML query document.
func DecodeQuery(r io.Reader) (*Query, error) {
	var doc queryDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("decode query: empty document")
		}
		return nil, fmt.Errorf("decode query: %w", err)
	}
	return doc.toQuery()
}

func (d *queryDoc) toQuery() (*Query, error) {
	q := &Query{Limit: d.Limit}

	switch strings.ToLower(d.Kind) {
	case "", "find":
		q.Kind = KindFind
	case "show":
		q.Kind = KindShow
	default:
		return nil, fmt.Errorf("decode query: unknown kind %q", d.Kind)
	}

	if d.Target == "" {
		return nil, errors.New("decode query: target is required")
	}
	t, err := ParseTarget(d.Target)
	if err != nil {
		return nil, fmt.Errorf("decode query: %w", err)
	}
	q.Target = t

	if !isEmptyNode(&d.Scope) {
		q.Scope, err = decodeScope(&d.Scope)
		if err != nil {
			return nil, fmt.Errorf("decode scope: %w", err)
		}
	}
	if !isEmptyNode(&d.Predicate) {
		q.Predicate, err = decodePredicate(&d.Predicate)
		if err != nil {
			return nil, fmt.Errorf("decode predicate: %w", err)
		}
	}

	if d.Run != nil {
		rs := DefaultRunSpec()
		if d.Run.Seeds != nil {
			rs.Seeds = *d.Run.Seeds
		}
		if d.Run.MaxInstructions != nil {
			rs.MaxInstructions = *d.Run.MaxInstructions
		}
		if d.Run.MaxDepth != nil {
			rs.MaxDepth = *d.Run.MaxDepth
		}
		if d.Run.TimeBudgetMs != nil {
			rs.TimeBudgetMs = *d.Run.TimeBudgetMs
		}
		if d.Run.Trace != "" {
			rs.TraceMode, err = ParseTraceMode(d.Run.Trace)
			if err != nil {
				return nil, fmt.Errorf("decode run: %w", err)
			}
		}
		q.RunSpec = &rs
	}

	if d.OrderBy != nil {
		if d.OrderBy.Key == "" {
			return nil, errors.New("decode order_by: key is required")
		}
		asc := true
		if d.OrderBy.Asc != nil {
			asc = *d.OrderBy.Asc
		}
		q.OrderBy = &OrderBy{Key: d.OrderBy.Key, Ascending: asc}
	}
	if q.Limit < 0 {
		return nil, fmt.Errorf("decode query: negative limit %d", q.Limit)
	}
	return q, nil
}

func isEmptyNode(n *yaml.Node) bool {
	return n.Kind == 0 || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

// singleKey unpacks a one-entry mapping node into its key and value.
func singleKey(n *yaml.Node) (string, *yaml.Node, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, fmt.Errorf("line %d: expected a mapping with exactly one key", n.Line)
	}
	return n.Content[0].Value, n.Content[1], nil
}

type classScopeDoc struct {
	Class string `yaml:"class"`
	Regex bool   `yaml:"regex"`
}

type duringDoc struct {
	Clinit bool           `yaml:"clinit"`
	Method string         `yaml:"method"`
	Class  *classScopeDoc `yaml:"class_scope"`
}

type betweenDoc struct {
	Start yaml.Node `yaml:"start"`
	End   yaml.Node `yaml:"end"`
}

func decodeScope(n *yaml.Node) (Scope, error) {
	if n.Kind == yaml.ScalarNode {
		if strings.EqualFold(n.Value, "all") {
			return &AllScope{}, nil
		}
		return nil, fmt.Errorf("line %d: unknown scope %q", n.Line, n.Value)
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: scope must be a mapping", n.Line)
	}

	keys := map[string]bool{}
	for i := 0; i < len(n.Content); i += 2 {
		keys[n.Content[i].Value] = true
	}

	switch {
	case keys["class"]:
		var d classScopeDoc
		if err := n.Decode(&d); err != nil {
			return nil, err
		}
		return &ClassScope{Pattern: d.Class, Regex: d.Regex}, nil
	case keys["method"]:
		var d struct {
			Method string `yaml:"method"`
			Regex  bool   `yaml:"regex"`
		}
		if err := n.Decode(&d); err != nil {
			return nil, err
		}
		return &MethodScope{Pattern: d.Method, Regex: d.Regex}, nil
	case keys["package"]:
		var d struct {
			Package string `yaml:"package"`
		}
		if err := n.Decode(&d); err != nil {
			return nil, err
		}
		return PackageScope(d.Package), nil
	case keys["during"]:
		_, v, err := singleKey(n)
		if err != nil {
			return nil, err
		}
		var d duringDoc
		if err := v.Decode(&d); err != nil {
			return nil, err
		}
		if d.Clinit {
			var cs *ClassScope
			if d.Class != nil {
				cs = &ClassScope{Pattern: d.Class.Class, Regex: d.Class.Regex}
			}
			return ClinitScope(cs), nil
		}
		if d.Method == "" {
			return nil, fmt.Errorf("line %d: during needs clinit or method", v.Line)
		}
		return &DuringScope{MethodPattern: d.Method}, nil
	case keys["between"]:
		_, v, err := singleKey(n)
		if err != nil {
			return nil, err
		}
		var d betweenDoc
		if err := v.Decode(&d); err != nil {
			return nil, err
		}
		start, err := decodePredicate(&d.Start)
		if err != nil {
			return nil, fmt.Errorf("between start: %w", err)
		}
		end, err := decodePredicate(&d.End)
		if err != nil {
			return nil, fmt.Errorf("between end: %w", err)
		}
		return &BetweenScope{Start: start, End: end}, nil
	case keys["all"]:
		return &AllScope{}, nil
	}
	return nil, fmt.Errorf("line %d: unknown scope", n.Line)
}

type callsDoc struct {
	Ref  string `yaml:"ref"`
	Args string `yaml:"args"`
}

type becomesDoc struct {
	Field      string `yaml:"field"`
	Transition string `yaml:"transition"`
}

type countDoc struct {
	Type      string  `yaml:"type"`
	Block     string  `yaml:"block"`
	Op        string  `yaml:"op"`
	Threshold float64 `yaml:"threshold"`
}

type stringsDoc struct {
	Pattern    string `yaml:"pattern"`
	Regex      bool   `yaml:"regex"`
	IgnoreCase bool   `yaml:"ignore_case"`
}

type throwsDoc struct {
	Type     string `yaml:"type"`
	Subtypes *bool  `yaml:"subtypes"`
}

type scriptDoc struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
}

func decodePredicate(n *yaml.Node) (Predicate, error) {
	if isEmptyNode(n) {
		return nil, fmt.Errorf("line %d: missing predicate", n.Line)
	}
	key, v, err := singleKey(n)
	if err != nil {
		return nil, err
	}

	switch key {
	case "calls":
		var d callsDoc
		if v.Kind == yaml.ScalarNode {
			d.Ref = v.Value
		} else if err := v.Decode(&d); err != nil {
			return nil, err
		}
		return &Calls{Ref: ParseMethodRef(d.Ref), Args: ParseArgumentType(d.Args)}, nil

	case "reads", "writes":
		var ref string
		if err := v.Decode(&ref); err != nil {
			return nil, fmt.Errorf("line %d: %s takes a field reference: %w", v.Line, key, err)
		}
		if key == "reads" {
			return &ReadsField{Ref: ParseFieldRef(ref)}, nil
		}
		return &WritesField{Ref: ParseFieldRef(ref)}, nil

	case "becomes":
		var d becomesDoc
		if err := v.Decode(&d); err != nil {
			return nil, err
		}
		p := &FieldBecomes{Ref: ParseFieldRef(d.Field)}
		switch strings.ToUpper(strings.ReplaceAll(d.Transition, "-", "_")) {
		case "", "NON_NULL", "NONNULL":
			p.Transition = BecomesNonNull
		case "NULL":
			p.Transition = BecomesNull
		case "CHANGED":
			p.Transition = Changed
		default:
			return nil, fmt.Errorf("line %d: unknown transition %q", v.Line, d.Transition)
		}
		return p, nil

	case "alloc_count", "instructions", "coverage":
		var d countDoc
		if err := v.Decode(&d); err != nil {
			return nil, err
		}
		op := OpGT
		if d.Op != "" {
			if op, err = ParseCompareOp(d.Op); err != nil {
				return nil, fmt.Errorf("line %d: %w", v.Line, err)
			}
		}
		switch key {
		case "alloc_count":
			return &AllocCount{Type: d.Type, Op: op, Threshold: int(d.Threshold)}, nil
		case "instructions":
			return &InstructionCount{Op: op, Threshold: int64(d.Threshold)}, nil
		}
		return &Coverage{BlockID: d.Block, Op: op, Threshold: d.Threshold}, nil

	case "strings":
		var d stringsDoc
		if v.Kind == yaml.ScalarNode {
			d.Pattern = v.Value
		} else if err := v.Decode(&d); err != nil {
			return nil, err
		}
		return &ContainsString{Pattern: d.Pattern, Regex: d.Regex, CaseInsensitive: d.IgnoreCase}, nil

	case "throws":
		var d throwsDoc
		if v.Kind == yaml.ScalarNode {
			d.Type = v.Value
		} else if err := v.Decode(&d); err != nil {
			return nil, err
		}
		sub := true
		if d.Subtypes != nil {
			sub = *d.Subtypes
		}
		return &Throws{Type: d.Type, IncludeSubtypes: sub}, nil

	case "before", "after", "not":
		inner, err := decodePredicate(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		switch key {
		case "before":
			return &Before{Event: inner}, nil
		case "after":
			return &After{Event: inner}, nil
		}
		return &Not{Inner: inner}, nil

	case "and", "or":
		if v.Kind != yaml.SequenceNode || len(v.Content) < 2 {
			return nil, fmt.Errorf("line %d: %s needs a list of at least two predicates", v.Line, key)
		}
		acc, err := decodePredicate(v.Content[0])
		if err != nil {
			return nil, err
		}
		for _, item := range v.Content[1:] {
			next, err := decodePredicate(item)
			if err != nil {
				return nil, err
			}
			if key == "and" {
				acc = &And{Left: acc, Right: next}
			} else {
				acc = &Or{Left: acc, Right: next}
			}
		}
		return acc, nil

	case "script":
		var d scriptDoc
		if v.Kind == yaml.ScalarNode {
			d.Source = v.Value
		} else if err := v.Decode(&d); err != nil {
			return nil, err
		}
		if strings.TrimSpace(d.Source) == "" {
			return nil, fmt.Errorf("line %d: script source is empty", v.Line)
		}
		return &Script{Name: d.Name, Source: d.Source}, nil
	}
	return nil, fmt.Errorf("line %d: unknown predicate %q", n.Line, key)
}
