// Package engine implements the query executor: table lifecycle,
// insert/select/delete, index creation/drop, and the glue between the
// heap file and each column's index.
//
// DBManager is a process-local registry of tables keyed by name, built
// around a single top-level façade type holding that registry, with a
// table.column -> index handle cache replacing a naive per-query index
// lookup.
package engine

import (
	"os"

	"github.com/bobboyms/minidb/pkg/dberrors"
	"github.com/bobboyms/minidb/pkg/heap"
	"github.com/bobboyms/minidb/pkg/schema"
)

// DBManager is the query executor: an explicit engine value constructed
// once at startup, holding every open table's schema, heap handle and
// per-column index cache.
type DBManager struct {
	baseDir string

	schemas map[string]*schema.TableSchema
	heaps   map[string]*heap.RecordFile
	indexes map[string]columnIndex // "table.column" -> handle
}

// New returns a DBManager rooted at baseDir, creating it if necessary.
// The cache is process-local and not safe for concurrent access from
// multiple goroutines; the engine assumes a single writer.
func New(baseDir string) (*DBManager, error) {
	if err := os.MkdirAll(baseDir, 0777); err != nil {
		return nil, &dberrors.IOError{Path: baseDir, Err: err}
	}
	return &DBManager{
		baseDir: baseDir,
		schemas: make(map[string]*schema.TableSchema),
		heaps:   make(map[string]*heap.RecordFile),
		indexes: make(map[string]columnIndex),
	}, nil
}

// loadSchema returns the cached schema for table, loading it from disk
// the first time it's referenced in this process.
func (m *DBManager) loadSchema(table string) (*schema.TableSchema, error) {
	if s, ok := m.schemas[table]; ok {
		return s, nil
	}
	if _, err := os.Stat(m.tableDir(table)); os.IsNotExist(err) {
		return nil, &dberrors.TableNotFoundError{Name: table}
	}
	s, err := schema.Load(m.metadataPath(table))
	if err != nil {
		return nil, err
	}
	m.schemas[table] = s
	return s, nil
}

// loadHeap returns the cached RecordFile handle for table.
func (m *DBManager) loadHeap(table string, s *schema.TableSchema) (*heap.RecordFile, error) {
	if rf, ok := m.heaps[table]; ok {
		return rf, nil
	}
	rf, err := heap.New(m.heapPath(table), s.RecordWidth())
	if err != nil {
		return nil, err
	}
	m.heaps[table] = rf
	return rf, nil
}

// columnIndexFor returns the cached index handle for table.column,
// opening (and caching) it on first use.
func (m *DBManager) columnIndexFor(table string, s *schema.TableSchema, col schema.Column) (columnIndex, error) {
	key := cacheKey(table, col.Name)
	if ci, ok := m.indexes[key]; ok {
		return ci, nil
	}
	rf, err := m.loadHeap(table, s)
	if err != nil {
		return columnIndex{}, err
	}
	ci, err := openIndex(m.indexBase(table, col), col, rf, s.ColumnOffset(col.Name))
	if err != nil {
		return columnIndex{}, err
	}
	m.indexes[key] = ci
	return ci, nil
}

// invalidate drops table.column's cached index handle (used after
// CREATE INDEX / DROP INDEX swap the backing files out from under it).
func (m *DBManager) invalidate(table, column string) {
	delete(m.indexes, cacheKey(table, column))
}

// invalidateTable drops every cached handle belonging to table (used by
// DROP TABLE).
func (m *DBManager) invalidateTable(table string, s *schema.TableSchema) {
	delete(m.schemas, table)
	delete(m.heaps, table)
	if s != nil {
		for _, c := range s.Columns {
			m.invalidate(table, c.Name)
		}
	}
}
