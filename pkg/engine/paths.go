package engine

import (
	"path/filepath"
	"strings"

	"github.com/bobboyms/minidb/pkg/schema"
	"github.com/bobboyms/minidb/pkg/types"
)

const (
	metadataFile = "metadata.dat"

	// BPlusOrder is this engine's fixed block factor B.
	BPlusOrder = 3
	// HashMaxDepth bounds the extendible hash trie's depth.
	HashMaxDepth = 12
	// RTreeFanOut bounds entries per R-tree node before a split.
	RTreeFanOut = 8
)

func (m *DBManager) tableDir(table string) string {
	return filepath.Join(m.baseDir, table)
}

func (m *DBManager) metadataPath(table string) string {
	return filepath.Join(m.tableDir(table), metadataFile)
}

func (m *DBManager) heapPath(table string) string {
	return filepath.Join(m.tableDir(table), table+".dat")
}

// indexBase returns the index file path without its type-specific
// extension/suffix, e.g. "T_<col>_<idx>" (the index appends ".dat",
// ".trie"/".bkt" or ".idx").
func (m *DBManager) indexBase(table string, col schema.Column) string {
	return filepath.Join(m.tableDir(table), table+"_"+col.Name+"_"+strings.ToLower(col.IndexType.String()))
}

// indexPaths returns every file an index of indexType at base owns, used
// by CREATE INDEX's build-then-swap rename.
func indexPaths(base string, indexType types.IndexType) []string {
	switch indexType {
	case types.Hash:
		return []string{base + ".trie", base + ".bkt"}
	case types.RTree:
		return []string{base + ".idx"}
	default: // AVL, BTree, ISAM
		return []string{base + ".dat"}
	}
}

func cacheKey(table, column string) string { return table + "." + column }
