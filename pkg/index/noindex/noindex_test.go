package noindex

import (
	"path/filepath"
	"testing"

	"github.com/bobboyms/minidb/pkg/heap"
	"github.com/bobboyms/minidb/pkg/types"
)

func mustHeap(t *testing.T, width int) *heap.RecordFile {
	t.Helper()
	rf, err := heap.New(filepath.Join(t.TempDir(), "t.dat"), width)
	if err != nil {
		t.Fatalf("heap.New: %v", err)
	}
	return rf
}

func TestSearchAndRangeSearchScanTheHeap(t *testing.T) {
	rf := mustHeap(t, 4)
	for _, v := range []int32{10, 20, 30, 20} {
		rec := make([]byte, 4)
		types.EncodeI32(rec, v)
		if _, err := rf.Append(rec); err != nil {
			t.Fatalf("Append(%d): %v", v, err)
		}
	}

	n := New(rf, 0, 4, types.Int)

	slots, err := n.Search(types.IntKey(20))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("Search(20) = %v, want 2 slots", slots)
	}

	slots, err = n.RangeSearch(types.IntKey(15), types.IntKey(25))
	if err != nil {
		t.Fatalf("RangeSearch: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("RangeSearch(15,25) = %v, want 2 slots", slots)
	}

	if slots, _ := n.Search(types.IntKey(999)); len(slots) != 0 {
		t.Fatalf("Search(999) = %v, want empty", slots)
	}
}

func TestInsertDeleteClearAreNoOps(t *testing.T) {
	rf := mustHeap(t, 4)
	rec := make([]byte, 4)
	types.EncodeI32(rec, 42)
	if _, err := rf.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	n := New(rf, 0, 4, types.Int)
	if err := n.Insert(0, types.IntKey(42)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := n.Delete(types.IntKey(42)); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := n.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	// The record is still there: Delete/Clear never touch the heap itself.
	slots, err := n.Search(types.IntKey(42))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("Search(42) = %v, want 1 slot", slots)
	}
}
