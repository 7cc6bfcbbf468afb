// Package index defines the contract every secondary index structure
// implements so that the executor (pkg/engine) can treat AVL, B+ tree,
// extendible hash, ISAM, R-tree and the full-scan fallback uniformly.
package index

import "github.com/bobboyms/minidb/pkg/types"

// Index is the contract every non-spatial index implements.
type Index interface {
	// Insert records that key maps to slot.
	Insert(slot int, key types.Comparable) error
	// Delete removes one entry for key.
	Delete(key types.Comparable) error
	// Search returns every slot stored under key (exact match).
	Search(key types.Comparable) ([]int, error)
	// RangeSearch returns every slot whose key lies in [lo, hi]. Callers
	// resolve absent bounds to the per-type sentinel (types.NegInf /
	// types.PosInf) before calling.
	RangeSearch(lo, hi types.Comparable) ([]int, error)
	// Clear removes the index's backing files.
	Clear() error
}

// Rect is an axis-aligned minimum bounding rectangle.
type Rect struct {
	Xmin, Ymin, Xmax, Ymax float32
}

// Circle is a center and radius.
type Circle struct {
	X, Y, R float32
}

// Spatial is the additional contract R-tree implements over 2-D points.
type Spatial interface {
	Index
	RangeSearchRect(r Rect) ([]int, error)
	RangeSearchCircle(c Circle) ([]int, error)
	KNNSearch(x, y float32, k int) ([]int, error)
}
