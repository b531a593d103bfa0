package store

import (
	"encoding/json"
	"strings"

	"github.com/jward/probeql/internal/ast"
)

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// int64sToArgs converts []int64 to []any for use with database/sql.
func int64sToArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// marshalArgKinds converts argument kinds to JSON names for storage.
func marshalArgKinds(kinds []ast.ArgumentType) string {
	if len(kinds) == 0 {
		return "[]"
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	b, _ := json.Marshal(names)
	return string(b)
}

// unmarshalArgKinds converts stored JSON back to argument kinds.
func unmarshalArgKinds(s string) []ast.ArgumentType {
	if s == "" || s == "null" {
		return nil
	}
	var names []string
	_ = json.Unmarshal([]byte(s), &names)
	if len(names) == 0 {
		return nil
	}
	kinds := make([]ast.ArgumentType, len(names))
	for i, n := range names {
		kinds[i] = ast.ParseArgumentType(n)
	}
	return kinds
}
