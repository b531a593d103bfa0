package store

import "fmt"

// DeleteFileData transactionally removes everything indexed from a file.
// Deletes in reverse-dependency order to respect FK constraints.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT id FROM classes WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("query classes: %w", err)
	}
	var classIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan class id: %w", err)
		}
		classIDs = append(classIDs, id)
	}
	rows.Close()

	if len(classIDs) > 0 {
		placeholders := placeholderList(len(classIDs))
		args := int64sToArgs(classIDs)
		for _, q := range []string{
			"DELETE FROM class_strings WHERE class_id IN (" + placeholders + ")",
			"DELETE FROM fields WHERE class_id IN (" + placeholders + ")",
			"DELETE FROM methods WHERE class_id IN (" + placeholders + ")",
		} {
			if _, err := tx.Exec(q, args...); err != nil {
				return fmt.Errorf("delete class members: %w", err)
			}
		}
	}

	for _, q := range []string{
		"DELETE FROM xrefs WHERE file_id = ?",
		"DELETE FROM classes WHERE file_id = ?",
	} {
		if _, err := tx.Exec(q, fileID); err != nil {
			return fmt.Errorf("delete file data: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteFile removes a file record together with its indexed data.
func (s *Store) DeleteFile(fileID int64) error {
	if err := s.DeleteFileData(fileID); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM files WHERE id = ?", fileID); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	return nil
}

// PruneFiles deletes every indexed file whose path is not in keep and
// returns how many were removed.
func (s *Store) PruneFiles(keep []string) (int, error) {
	files, err := s.Files()
	if err != nil {
		return 0, err
	}
	live := make(map[string]bool, len(keep))
	for _, p := range keep {
		live[p] = true
	}
	removed := 0
	for _, f := range files {
		if live[f.Path] {
			continue
		}
		if err := s.DeleteFile(f.ID); err != nil {
			return removed, fmt.Errorf("prune %s: %w", f.Path, err)
		}
		removed++
	}
	return removed, nil
}
