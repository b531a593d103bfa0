package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// ContentHash returns the hex SHA-256 of a file's bytes. Unchanged files are
// skipped on reindex by comparing this value.
func ContentHash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// DeclarationHash hashes the declared surface of a file index: class names,
// supertypes, method and field signatures. Line numbers, bodies and
// references do not affect it.
func DeclarationHash(fi *FileIndex) string {
	h := sha256.New()
	classes := make([]ClassDecl, len(fi.Classes))
	copy(classes, fi.Classes)
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })

	for _, c := range classes {
		fmt.Fprintf(h, "class:%s:%s\n", c.Name, c.SuperName)

		methods := make([]string, len(c.Methods))
		for i, m := range c.Methods {
			methods[i] = m.Name + m.Descriptor
		}
		sort.Strings(methods)
		fmt.Fprintf(h, "methods:%s\n", strings.Join(methods, ","))

		fields := make([]string, len(c.Fields))
		for i, f := range c.Fields {
			fields[i] = f.Name + ":" + f.Descriptor
		}
		sort.Strings(fields)
		fmt.Fprintf(h, "fields:%s\n", strings.Join(fields, ","))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
