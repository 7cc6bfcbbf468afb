package engine

import (
	"os"

	"github.com/bobboyms/minidb/pkg/heap"
	"github.com/bobboyms/minidb/pkg/index"
	"github.com/bobboyms/minidb/pkg/index/avl"
	"github.com/bobboyms/minidb/pkg/index/bptree"
	"github.com/bobboyms/minidb/pkg/index/hash"
	"github.com/bobboyms/minidb/pkg/index/isam"
	"github.com/bobboyms/minidb/pkg/index/noindex"
	"github.com/bobboyms/minidb/pkg/index/rtree"
	"github.com/bobboyms/minidb/pkg/schema"
	"github.com/bobboyms/minidb/pkg/types"
)

// columnIndex pairs a column's generic Index handle with its Spatial
// view when the column is RTREE-indexed (nil otherwise).
type columnIndex struct {
	idx     index.Index
	spatial index.Spatial
}

// openIndex opens (creating empty backing files if necessary) the index
// structure for col at base, the table's RecordFile and the column's
// byte offset (needed only for the NONE full-scan fallback).
func openIndex(base string, col schema.Column, rf *heap.RecordFile, offset int) (columnIndex, error) {
	switch col.IndexType {
	case types.NoIndexType:
		return columnIndex{idx: noindex.New(rf, offset, col.Width(), col.DataType)}, nil

	case types.AVL:
		idx, err := avl.New(base+".dat", col.DataType, col.VarcharLength)
		if err != nil {
			return columnIndex{}, err
		}
		return columnIndex{idx: idx}, nil

	case types.BTree:
		idx, err := bptree.New(base+".dat", BPlusOrder, col.DataType, col.VarcharLength)
		if err != nil {
			return columnIndex{}, err
		}
		return columnIndex{idx: idx}, nil

	case types.Hash:
		idx, err := hash.New(base, HashMaxDepth, col.DataType, col.VarcharLength)
		if err != nil {
			return columnIndex{}, err
		}
		return columnIndex{idx: idx}, nil

	case types.ISAM:
		path := base + ".dat"
		var idx *isam.ISAM
		var err error
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			idx, err = isam.Build(path, col.DataType, col.VarcharLength, nil)
		} else {
			idx, err = isam.Open(path, col.DataType, col.VarcharLength)
		}
		if err != nil {
			return columnIndex{}, err
		}
		return columnIndex{idx: idx}, nil

	case types.RTree:
		idx, err := rtree.New(base+".idx", RTreeFanOut)
		if err != nil {
			return columnIndex{}, err
		}
		return columnIndex{idx: idx, spatial: idx}, nil

	default:
		return columnIndex{idx: noindex.New(rf, offset, col.Width(), col.DataType)}, nil
	}
}

// buildISAM bulk-loads a fresh ISAM index from entries, CREATE INDEX's
// dedicated build path for ISAM columns.
func buildISAM(path string, col schema.Column, entries []isam.Entry) (*isam.ISAM, error) {
	return isam.Build(path, col.DataType, col.VarcharLength, entries)
}
