// Package noindex implements the full-scan fallback index, used for
// any column declaring index_type = NONE. It keeps no backing
// file of its own: every operation reads the heap file directly and
// filters on the column's decoded value.
package noindex

import (
	"github.com/bobboyms/minidb/pkg/heap"
	"github.com/bobboyms/minidb/pkg/types"
)

// NoIndex is the column-scan fallback.
type NoIndex struct {
	rf       *heap.RecordFile
	offset   int
	width    int
	dataType types.DataType
}

// New returns a NoIndex reading column [offset, offset+width) of each
// heap record as a value of dataType.
func New(rf *heap.RecordFile, offset, width int, dataType types.DataType) *NoIndex {
	return &NoIndex{rf: rf, offset: offset, width: width, dataType: dataType}
}

func (n *NoIndex) keyOf(record []byte) types.Comparable {
	return types.DecodeKey(record[n.offset:n.offset+n.width], n.dataType)
}

// Insert is a no-op: there is nothing to index.
func (n *NoIndex) Insert(slot int, key types.Comparable) error { return nil }

// Delete is a no-op: there is nothing to index.
func (n *NoIndex) Delete(key types.Comparable) error { return nil }

// Search scans every live record for an exact key match.
func (n *NoIndex) Search(key types.Comparable) ([]int, error) {
	var out []int
	err := n.rf.Scan(func(slot int, record []byte) bool {
		if n.keyOf(record).Compare(key) == 0 {
			out = append(out, slot)
		}
		return true
	})
	return out, err
}

// RangeSearch scans every live record whose key lies in [lo, hi].
func (n *NoIndex) RangeSearch(lo, hi types.Comparable) ([]int, error) {
	var out []int
	err := n.rf.Scan(func(slot int, record []byte) bool {
		k := n.keyOf(record)
		if k.Compare(lo) >= 0 && k.Compare(hi) <= 0 {
			out = append(out, slot)
		}
		return true
	})
	return out, err
}

// Clear has nothing to remove.
func (n *NoIndex) Clear() error { return nil }
