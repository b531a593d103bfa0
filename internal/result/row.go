package result

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Column is one named value of a Row.
type Column struct {
	Name  string
	Value any
}

// Row is an immutable node of the result tree. Accessors return copies.
type Row struct {
	label    string
	target   ClickTarget
	columns  []Column
	evidence []Evidence
	children []Row
	isChild  bool
}

// Label is the primary display text.
func (r Row) Label() string { return r.label }

// Target is the navigation target, or nil.
func (r Row) Target() ClickTarget { return r.target }

// IsChild reports whether the row is nested under another row.
func (r Row) IsChild() bool { return r.isChild }

// HasChildren reports whether the row has nested rows.
func (r Row) HasChildren() bool { return len(r.children) > 0 }

// Columns returns the columns in first-insertion order.
func (r Row) Columns() []Column { return slices.Clone(r.columns) }

// Column returns the value of a named column.
func (r Row) Column(name string) (any, bool) {
	for _, c := range r.columns {
		if c.Name == name {
			return c.Value, true
		}
	}
	return nil, false
}

// Evidence returns the supporting evidence in capture order.
func (r Row) Evidence() []Evidence { return slices.Clone(r.evidence) }

// Children returns the nested rows.
func (r Row) Children() []Row { return slices.Clone(r.children) }

// RowBuilder accumulates the parts of a Row.
type RowBuilder struct {
	label    string
	target   ClickTarget
	columns  []Column
	evidence []Evidence
	children []Row
	isChild  bool
}

// NewRow starts a row with the given primary label.
func NewRow(label string) *RowBuilder {
	return &RowBuilder{label: label}
}

// Target sets the navigation target.
func (b *RowBuilder) Target(t ClickTarget) *RowBuilder {
	b.target = t
	return b
}

// Column sets a column. Setting an existing name replaces its value and
// keeps its original position.
func (b *RowBuilder) Column(name string, value any) *RowBuilder {
	for i := range b.columns {
		if b.columns[i].Name == name {
			b.columns[i].Value = value
			return b
		}
	}
	b.columns = append(b.columns, Column{Name: name, Value: value})
	return b
}

// Evidence sets the supporting evidence.
func (b *RowBuilder) Evidence(ev []Evidence) *RowBuilder {
	b.evidence = ev
	return b
}

// Children sets the nested rows.
func (b *RowBuilder) Children(rows []Row) *RowBuilder {
	b.children = rows
	return b
}

// AsChild marks the row as nested under another.
func (b *RowBuilder) AsChild() *RowBuilder {
	b.isChild = true
	return b
}

// Build copies every collection so later changes to the inputs or the
// builder do not reach the row.
func (b *RowBuilder) Build() Row {
	return Row{
		label:    b.label,
		target:   b.target,
		columns:  slices.Clone(b.columns),
		evidence: slices.Clone(b.evidence),
		children: slices.Clone(b.children),
		isChild:  b.isChild,
	}
}

// orderedColumns marshals as a JSON object preserving column order.
type orderedColumns []Column

func (cols orderedColumns) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(c.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type rowJSON struct {
	Label    string         `json:"label"`
	Target   string         `json:"target,omitempty"`
	Columns  orderedColumns `json:"columns,omitempty"`
	Evidence []Evidence     `json:"evidence,omitempty"`
	Children []Row          `json:"children,omitempty"`
	IsChild  bool           `json:"isChild,omitempty"`
}

func (r Row) MarshalJSON() ([]byte, error) {
	out := rowJSON{
		Label:    r.label,
		Columns:  orderedColumns(r.columns),
		Evidence: r.evidence,
		Children: r.children,
		IsChild:  r.isChild,
	}
	if r.target != nil {
		out.Target = r.target.Signature()
	}
	return json.Marshal(out)
}
