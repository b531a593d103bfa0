package staticfilter

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrNoIndex is returned when a filter that reads the index has none.
var ErrNoIndex = errors.New("no xref index")

// ConstPool keeps members of classes whose string constants match.
type ConstPool struct {
	idx     Index
	pattern *regexp.Regexp
}

// ContainsString matches constants containing literal.
func ContainsString(idx Index, literal string, caseInsensitive bool) (*ConstPool, error) {
	return newConstPool(idx, regexp.QuoteMeta(literal), caseInsensitive)
}

// MatchesString matches constants in which expr finds a match.
func MatchesString(idx Index, expr string, caseInsensitive bool) (*ConstPool, error) {
	return newConstPool(idx, expr, caseInsensitive)
}

func newConstPool(idx Index, expr string, caseInsensitive bool) (*ConstPool, error) {
	if caseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("string pattern %q: %w", expr, err)
	}
	return &ConstPool{idx: idx, pattern: re}, nil
}

// classMatcher memoises per-class answers for one filtering pass.
type classMatcher struct {
	c    *ConstPool
	seen map[string]bool
}

func (m *classMatcher) matches(ctx context.Context, class string) (bool, error) {
	if hit, ok := m.seen[class]; ok {
		return hit, nil
	}
	strs, err := m.c.idx.ClassStrings(ctx, class)
	if err != nil {
		return false, fmt.Errorf("class strings %s: %w", class, err)
	}
	hit := false
	for _, s := range strs {
		if m.c.pattern.MatchString(s) {
			hit = true
			break
		}
	}
	m.seen[class] = hit
	return hit, nil
}

func (c *ConstPool) matcher() (*classMatcher, error) {
	if c.idx == nil {
		return nil, fmt.Errorf("constant filter: %w", ErrNoIndex)
	}
	return &classMatcher{c: c, seen: map[string]bool{}}, nil
}

func (c *ConstPool) FilterMethods(ctx context.Context, methods []Method) ([]Candidate, error) {
	m, err := c.matcher()
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, method := range methods {
		hit, err := m.matches(ctx, method.Owner)
		if err != nil {
			return nil, err
		}
		if hit {
			out = append(out, Candidate{Method: method})
		}
	}
	return out, nil
}

func (c *ConstPool) FilterClasses(ctx context.Context, classes []Class) ([]Class, error) {
	m, err := c.matcher()
	if err != nil {
		return nil, err
	}
	var out []Class
	for _, class := range classes {
		hit, err := m.matches(ctx, class.Name)
		if err != nil {
			return nil, err
		}
		if hit {
			out = append(out, class)
		}
	}
	return out, nil
}

func (c *ConstPool) String() string {
	return "strings~" + c.pattern.String()
}
