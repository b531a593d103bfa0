package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jward/probeql/internal/ast"
	"github.com/jward/probeql/internal/staticfilter"
)

// Methods returns every indexed method ordered by class then declaration.
func (s *Store) Methods(ctx context.Context) ([]staticfilter.Method, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.name, m.name, m.descriptor FROM methods m
		 JOIN classes c ON c.id = m.class_id
		 ORDER BY c.name, m.id`)
	if err != nil {
		return nil, fmt.Errorf("methods: %w", err)
	}
	defer rows.Close()
	var out []staticfilter.Method
	for rows.Next() {
		var m staticfilter.Method
		if err := rows.Scan(&m.Owner, &m.Name, &m.Desc); err != nil {
			return nil, fmt.Errorf("scan method: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Classes returns every indexed class with its methods, ordered by name.
func (s *Store) Classes(ctx context.Context) ([]staticfilter.Class, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT name FROM classes ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("classes: %w", err)
	}
	var out []staticfilter.Class
	pos := map[string]int{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan class: %w", err)
		}
		pos[name] = len(out)
		out = append(out, staticfilter.Class{Name: name})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("classes: %w", err)
	}
	rows.Close()

	methods, err := s.Methods(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range methods {
		if i, ok := pos[m.Owner]; ok {
			out[i].Methods = append(out[i].Methods, m)
		}
	}
	return out, nil
}

// ClassStrings returns the string constants referenced by class.
func (s *Store) ClassStrings(ctx context.Context, class string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cs.value FROM class_strings cs
		 JOIN classes c ON c.id = cs.class_id
		 WHERE c.name = ? ORDER BY cs.id`, class)
	if err != nil {
		return nil, fmt.Errorf("class strings: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan class string: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// RefsToMethod returns call sites of ref. Empty ref parts match any; an
// owner matches when equal or when the stored owner ends with "/"+owner.
func (s *Store) RefsToMethod(ctx context.Context, ref ast.MemberRef) ([]staticfilter.Xref, error) {
	refs, err := s.queryXrefs(ctx, ref, staticfilter.KindCall)
	if err != nil {
		return nil, fmt.Errorf("refs to method: %w", err)
	}
	return refs, nil
}

// RefsToField returns reads and writes of ref.
func (s *Store) RefsToField(ctx context.Context, ref ast.MemberRef) ([]staticfilter.Xref, error) {
	refs, err := s.queryXrefs(ctx, ref, staticfilter.KindFieldRead, staticfilter.KindFieldWrite)
	if err != nil {
		return nil, fmt.Errorf("refs to field: %w", err)
	}
	return refs, nil
}

func (s *Store) queryXrefs(ctx context.Context, ref ast.MemberRef, kinds ...staticfilter.Kind) ([]staticfilter.Xref, error) {
	var where []string
	var args []any

	kindArgs := make([]any, len(kinds))
	for i, k := range kinds {
		kindArgs[i] = string(k)
	}
	where = append(where, "kind IN ("+placeholderList(len(kinds))+")")
	args = append(args, kindArgs...)

	if ref.Owner != "" {
		suffix := "/" + ref.Owner
		where = append(where, "(target_owner = ? OR substr(target_owner, length(target_owner) - ? + 1) = ?)")
		args = append(args, ref.Owner, len(suffix), suffix)
	}
	if ref.Name != "" {
		where = append(where, "target_name = ?")
		args = append(args, ref.Name)
	}
	// Sites whose descriptor could not be resolved from source store "" and
	// match any requested descriptor.
	if ref.Desc != "" {
		where = append(where, "(target_desc = ? OR target_desc = '')")
		args = append(args, ref.Desc)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source_class, source_method, source_desc, kind, target_owner, target_name,
			target_desc, line, pc, arg_kinds
		 FROM xrefs WHERE `+strings.Join(where, " AND ")+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []staticfilter.Xref
	for rows.Next() {
		var x staticfilter.Xref
		var kind, argKinds string
		if err := rows.Scan(&x.SourceClass, &x.SourceMethod, &x.SourceDesc, &kind,
			&x.TargetOwner, &x.TargetName, &x.TargetDesc, &x.Line, &x.PC, &argKinds); err != nil {
			return nil, fmt.Errorf("scan xref: %w", err)
		}
		x.Kind = staticfilter.Kind(kind)
		x.ArgKinds = unmarshalArgKinds(argKinds)
		out = append(out, x)
	}
	return out, rows.Err()
}
