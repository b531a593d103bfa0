package store

import "time"

type File struct {
	ID          int64
	Path        string
	Hash        string
	LastIndexed time.Time
}

// ClassDecl is one class declared in a source file. Name is the internal
// form ("com/foo/Bar", nested "com/foo/Bar$Inner").
type ClassDecl struct {
	Name      string
	SuperName string
	Methods   []MethodDecl
	Fields    []FieldDecl
	Strings   []string
}

type MethodDecl struct {
	Name       string
	Descriptor string
	StartLine  int
	EndLine    int
}

type FieldDecl struct {
	Name       string
	Descriptor string
}
