package engine

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/bobboyms/minidb/pkg/dberrors"
	"github.com/bobboyms/minidb/pkg/index/isam"
	"github.com/bobboyms/minidb/pkg/schema"
	"github.com/bobboyms/minidb/pkg/sql/ast"
	"github.com/bobboyms/minidb/pkg/types"
)

// CreateIndex builds a fresh index for one column and swaps it in. The
// index is built at a uuid-named temp base and its files are renamed
// into place only once the build succeeds, so a crash mid-build never
// corrupts a previously working index.
func (m *DBManager) CreateIndex(stmt *ast.CreateIndex) error {
	if len(stmt.Columns) != 1 {
		return &dberrors.MultiColumnIndexError{IndexName: stmt.IndexName, Count: len(stmt.Columns)}
	}
	columnName := stmt.Columns[0]

	s, err := m.loadSchema(stmt.Table)
	if err != nil {
		return err
	}
	idx := s.ColumnIndex(columnName)
	if idx < 0 {
		return &dberrors.ColumnNotFoundError{Table: stmt.Table, Column: columnName}
	}
	col := s.Columns[idx]
	if col.IndexType != types.NoIndexType {
		return &dberrors.IndexAlreadyExistsError{Table: stmt.Table, Column: columnName}
	}

	indexType := stmt.Using
	if !stmt.HasUsing {
		// POINT columns default to RTREE, every other type defaults to
		// BTREE.
		if col.DataType == types.Point {
			indexType = types.RTree
		} else {
			indexType = types.BTree
		}
	}
	if col.DataType == types.Point && indexType != types.RTree {
		return &dberrors.InvalidIndexForTypeError{Column: columnName, DataType: col.DataType.String(), IndexType: indexType.String()}
	}
	if indexType == types.RTree && col.DataType != types.Point {
		return &dberrors.InvalidIndexForTypeError{Column: columnName, DataType: col.DataType.String(), IndexType: indexType.String()}
	}
	if indexType == types.NoIndexType || indexType == types.Brin {
		return &dberrors.InvalidIndexForTypeError{Column: columnName, DataType: col.DataType.String(), IndexType: indexType.String()}
	}

	rf, err := m.loadHeap(stmt.Table, s)
	if err != nil {
		return err
	}

	tempCol := col
	tempCol.IndexType = indexType
	tempID, err := uuid.NewV7()
	if err != nil {
		return &dberrors.IOError{Path: m.tableDir(stmt.Table), Err: err}
	}
	tempBase := filepath.Join(m.tableDir(stmt.Table), tempID.String())

	offset := s.ColumnOffset(columnName)

	// ISAM has no incremental build: its (I+1)^2-regular-leaf layout is
	// only correct when Build sees every entry up front, so CREATE INDEX
	// gathers the live (key, slot) pairs and bulk-loads it in one call
	// instead of opening an empty index and inserting slot by slot.
	var ci columnIndex
	if indexType == types.ISAM {
		var entries []isam.Entry
		scanErr := rf.Scan(func(slot int, record []byte) bool {
			key := types.DecodeKey(record[offset:offset+col.Width()], col.DataType)
			entries = append(entries, isam.Entry{Key: key, Slot: slot})
			return true
		})
		if scanErr != nil {
			return scanErr
		}
		built, err := buildISAM(tempBase+".dat", tempCol, entries)
		if err != nil {
			return err
		}
		ci = columnIndex{idx: built}
	} else {
		var err error
		ci, err = openIndex(tempBase, tempCol, rf, offset)
		if err != nil {
			return err
		}
		var insertErr error
		scanErr := rf.Scan(func(slot int, record []byte) bool {
			key := types.DecodeKey(record[offset:offset+col.Width()], col.DataType)
			if insertErr = ci.idx.Insert(slot, key); insertErr != nil {
				return false
			}
			return true
		})
		if scanErr != nil {
			_ = ci.idx.Clear()
			return scanErr
		}
		if insertErr != nil {
			_ = ci.idx.Clear()
			return insertErr
		}
	}

	tempCol.IndexName = stmt.IndexName
	finalBase := m.indexBase(stmt.Table, tempCol)
	for _, src := range indexPaths(tempBase, indexType) {
		dst := finalBaseFile(finalBase, src, tempBase)
		if err := os.Rename(src, dst); err != nil {
			return &dberrors.IOError{Path: src, Err: err}
		}
	}

	s.Columns[idx].IndexType = indexType
	s.Columns[idx].IndexName = stmt.IndexName
	if err := schema.Save(m.metadataPath(stmt.Table), s); err != nil {
		return err
	}
	m.invalidate(stmt.Table, columnName)
	return nil
}

// finalBaseFile maps a temp-base path (tempBase + suffix) onto the
// corresponding final-base path, preserving whatever suffix indexPaths
// appended (".dat", ".trie", ".bkt", ".idx").
func finalBaseFile(finalBase, src, tempBase string) string {
	suffix := src[len(tempBase):]
	return finalBase + suffix
}

// DropIndex clears an index's backing files and demotes the column back
// to NONE. Dropping the primary key's index or an already-NONE column
// is rejected.
func (m *DBManager) DropIndex(stmt *ast.DropIndex) error {
	s, err := m.loadSchema(stmt.Table)
	if err != nil {
		return err
	}

	var target *schema.Column
	var idx int
	for i := range s.Columns {
		if s.Columns[i].IndexName == stmt.IndexName {
			target = &s.Columns[i]
			idx = i
			break
		}
	}
	if target == nil {
		return &dberrors.IndexNotFoundError{Table: stmt.Table, Column: stmt.IndexName}
	}
	if target.IsPrimary {
		return &dberrors.CannotDropIndexError{Table: stmt.Table, Column: target.Name, Reason: "cannot drop the primary key's index"}
	}
	if target.IndexType == types.NoIndexType {
		return &dberrors.CannotDropIndexError{Table: stmt.Table, Column: target.Name, Reason: "column has no index"}
	}

	ci, err := m.columnIndexFor(stmt.Table, s, *target)
	if err != nil {
		return err
	}
	if err := ci.idx.Clear(); err != nil {
		return err
	}

	s.Columns[idx].IndexType = types.NoIndexType
	s.Columns[idx].IndexName = ""
	if err := schema.Save(m.metadataPath(stmt.Table), s); err != nil {
		return err
	}
	m.invalidate(stmt.Table, target.Name)
	return nil
}

// TableStats summarizes one table for introspection.
type TableStats struct {
	Table     string
	RowCount  int
	Columns   []string
	IndexKind map[string]string // column -> index type name
}

// Stats reports the live row count and each column's index kind.
func (m *DBManager) Stats(table string) (*TableStats, error) {
	s, err := m.loadSchema(table)
	if err != nil {
		return nil, err
	}
	rf, err := m.loadHeap(table, s)
	if err != nil {
		return nil, err
	}
	rows := 0
	if err := rf.Scan(func(slot int, record []byte) bool {
		rows++
		return true
	}); err != nil {
		return nil, err
	}

	st := &TableStats{Table: table, RowCount: rows, IndexKind: make(map[string]string, len(s.Columns))}
	for _, c := range s.Columns {
		st.Columns = append(st.Columns, c.Name)
		st.IndexKind[c.Name] = c.IndexType.String()
	}
	return st, nil
}
