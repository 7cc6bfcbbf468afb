package engine

import (
	"os"

	"github.com/bobboyms/minidb/pkg/dberrors"
	"github.com/bobboyms/minidb/pkg/schema"
)

// CreateTable validates schema's invariants and creates the table's
// directory, metadata blob and per-column index files.
func (m *DBManager) CreateTable(s *schema.TableSchema, ifNotExists bool) error {
	s.Normalize()
	if err := s.Validate(); err != nil {
		return err
	}

	dir := m.tableDir(s.TableName)
	if _, err := os.Stat(dir); err == nil {
		if ifNotExists {
			return nil
		}
		return &dberrors.TableAlreadyExistsError{Name: s.TableName}
	}

	if err := os.MkdirAll(dir, 0777); err != nil {
		return &dberrors.IOError{Path: dir, Err: err}
	}
	if err := schema.Save(m.metadataPath(s.TableName), s); err != nil {
		return err
	}
	m.schemas[s.TableName] = s

	if _, err := m.loadHeap(s.TableName, s); err != nil {
		return err
	}
	for _, c := range s.Columns {
		if _, err := m.columnIndexFor(s.TableName, s, c); err != nil {
			return err
		}
	}
	return nil
}

// DropTable removes the entire table directory, honoring IF EXISTS.
func (m *DBManager) DropTable(table string, ifExists bool) error {
	table = lowerTable(table)
	dir := m.tableDir(table)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if ifExists {
			return nil
		}
		return &dberrors.TableNotFoundError{Name: table}
	}

	s := m.schemas[table] // may be nil if never loaded this process
	m.invalidateTable(table, s)

	if err := os.RemoveAll(dir); err != nil {
		return &dberrors.IOError{Path: dir, Err: err}
	}
	return nil
}

func lowerTable(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
