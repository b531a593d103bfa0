package store

import (
	"database/sql"
	"fmt"

	"github.com/jward/probeql/internal/staticfilter"
)

// CommitFileIndex inserts everything buffered in fi for fileID within a
// single transaction.
//
// Insert order respects FK dependencies:
//  1. Classes (depend on file_id only, which is already real)
//  2. Methods, fields and strings (depend on class_id)
//  3. Xrefs (depend on file_id)
func (s *Store) CommitFileIndex(fileID int64, fi *FileIndex) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit file index: begin: %w", err)
	}
	defer tx.Rollback()

	for _, c := range fi.Classes {
		classID, err := insertClassTx(tx, fileID, &c)
		if err != nil {
			return fmt.Errorf("commit file index: class %q: %w", c.Name, err)
		}
		for _, m := range c.Methods {
			if err := insertMethodTx(tx, classID, &m); err != nil {
				return fmt.Errorf("commit file index: method %s.%s: %w", c.Name, m.Name, err)
			}
		}
		for _, f := range c.Fields {
			if err := insertFieldTx(tx, classID, &f); err != nil {
				return fmt.Errorf("commit file index: field %s.%s: %w", c.Name, f.Name, err)
			}
		}
		for _, v := range c.Strings {
			if _, err := tx.Exec("INSERT INTO class_strings (class_id, value) VALUES (?, ?)", classID, v); err != nil {
				return fmt.Errorf("commit file index: string in %s: %w", c.Name, err)
			}
		}
	}

	for _, x := range fi.Xrefs {
		if err := insertXrefTx(tx, fileID, &x); err != nil {
			return fmt.Errorf("commit file index: xref %s -> %s: %w", x.SourceSignature(), x.TargetString(), err)
		}
	}

	return tx.Commit()
}

// --- Transaction-scoped insert helpers ---

func insertClassTx(tx *sql.Tx, fileID int64, c *ClassDecl) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO classes (file_id, name, super_name) VALUES (?, ?, ?)",
		fileID, c.Name, c.SuperName,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertMethodTx(tx *sql.Tx, classID int64, m *MethodDecl) error {
	_, err := tx.Exec(
		`INSERT INTO methods (class_id, name, descriptor, start_line, end_line)
		 VALUES (?, ?, ?, ?, ?)`,
		classID, m.Name, m.Descriptor, m.StartLine, m.EndLine,
	)
	return err
}

func insertFieldTx(tx *sql.Tx, classID int64, f *FieldDecl) error {
	_, err := tx.Exec(
		"INSERT INTO fields (class_id, name, descriptor) VALUES (?, ?, ?)",
		classID, f.Name, f.Descriptor,
	)
	return err
}

func insertXrefTx(tx *sql.Tx, fileID int64, x *staticfilter.Xref) error {
	_, err := tx.Exec(
		`INSERT INTO xrefs (file_id, source_class, source_method, source_desc, kind,
			target_owner, target_name, target_desc, line, pc, arg_kinds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fileID, x.SourceClass, x.SourceMethod, x.SourceDesc, string(x.Kind),
		x.TargetOwner, x.TargetName, x.TargetDesc, x.Line, x.PC, marshalArgKinds(x.ArgKinds),
	)
	return err
}
