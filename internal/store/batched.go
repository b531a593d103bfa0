package store

import (
	"slices"

	"github.com/jward/probeql/internal/staticfilter"
)

// FileIndex buffers everything extracted from one source file in memory so
// extraction can run on worker goroutines while a single writer commits to
// SQLite.
type FileIndex struct {
	Path    string
	Classes []ClassDecl
	Xrefs   []staticfilter.Xref
}

// NewFileIndex returns an empty buffer for path.
func NewFileIndex(path string) *FileIndex {
	return &FileIndex{Path: path}
}

func (f *FileIndex) classIndex(name string) int {
	return slices.IndexFunc(f.Classes, func(c ClassDecl) bool { return c.Name == name })
}

// AddClass registers a class; registering a known name is a no-op.
func (f *FileIndex) AddClass(name, superName string) {
	if f.classIndex(name) < 0 {
		f.Classes = append(f.Classes, ClassDecl{Name: name, SuperName: superName})
	}
}

// Class returns the buffered class named name.
func (f *FileIndex) Class(name string) (ClassDecl, bool) {
	if i := f.classIndex(name); i >= 0 {
		return f.Classes[i], true
	}
	return ClassDecl{}, false
}

// AddMethod records a method on class, creating the class when needed.
// Duplicate name+descriptor pairs keep the first declaration.
func (f *FileIndex) AddMethod(class string, m MethodDecl) {
	f.AddClass(class, "")
	c := &f.Classes[f.classIndex(class)]
	if !slices.ContainsFunc(c.Methods, func(x MethodDecl) bool {
		return x.Name == m.Name && x.Descriptor == m.Descriptor
	}) {
		c.Methods = append(c.Methods, m)
	}
}

// AddField records a field on class.
func (f *FileIndex) AddField(class string, fd FieldDecl) {
	f.AddClass(class, "")
	c := &f.Classes[f.classIndex(class)]
	if !slices.Contains(c.Fields, fd) {
		c.Fields = append(c.Fields, fd)
	}
}

// AddString records a string constant referenced by class.
func (f *FileIndex) AddString(class, value string) {
	f.AddClass(class, "")
	c := &f.Classes[f.classIndex(class)]
	if !slices.Contains(c.Strings, value) {
		c.Strings = append(c.Strings, value)
	}
}

// AddXref records a reference.
func (f *FileIndex) AddXref(x staticfilter.Xref) {
	f.Xrefs = append(f.Xrefs, x)
}

// MethodCount returns the number of buffered methods.
func (f *FileIndex) MethodCount() int {
	n := 0
	for _, c := range f.Classes {
		n += len(c.Methods)
	}
	return n
}
