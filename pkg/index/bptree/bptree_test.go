package bptree

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/bobboyms/minidb/pkg/types"
)

func mustNew(t *testing.T) *BPlus {
	t.Helper()
	idx, err := New(filepath.Join(t.TempDir(), "idx.dat"), 4, types.Int, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return idx
}

func TestInsertSearch(t *testing.T) {
	idx := mustNew(t)
	keys := []int32{50, 20, 70, 10, 30, 60, 80, 5, 15, 25, 90, 35, 45, 55, 65}
	for i, k := range keys {
		if err := idx.Insert(i, types.IntKey(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	for i, k := range keys {
		slots, err := idx.Search(types.IntKey(k))
		if err != nil {
			t.Fatalf("Search(%d): %v", k, err)
		}
		if len(slots) != 1 || slots[0] != i {
			t.Fatalf("Search(%d) = %v, want [%d]", k, slots, i)
		}
	}

	if slots, _ := idx.Search(types.IntKey(999)); len(slots) != 0 {
		t.Fatalf("Search(999) = %v, want empty", slots)
	}
}

func TestInsertDuplicates(t *testing.T) {
	idx := mustNew(t)
	for i := 0; i < 6; i++ {
		if err := idx.Insert(i, types.IntKey(42)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	slots, err := idx.Search(types.IntKey(42))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(slots) != 6 {
		t.Fatalf("Search(42) = %v, want 6 slots", slots)
	}
}

func TestRangeSearchOrderedAndComplete(t *testing.T) {
	idx := mustNew(t)
	keys := []int32{50, 20, 70, 10, 30, 60, 80, 5, 15, 25, 90, 35, 45, 55, 65}
	for i, k := range keys {
		if err := idx.Insert(i, types.IntKey(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	got, err := idx.RangeSearch(types.IntKey(15), types.IntKey(60))
	if err != nil {
		t.Fatalf("RangeSearch: %v", err)
	}

	var gotKeys []int
	for _, slot := range got {
		gotKeys = append(gotKeys, int(keys[slot]))
	}
	sort.Ints(gotKeys)

	want := []int{15, 20, 25, 30, 35, 45, 50, 55, 60}
	if len(gotKeys) != len(want) {
		t.Fatalf("RangeSearch returned %v, want %v", gotKeys, want)
	}
	for i := range want {
		if gotKeys[i] != want[i] {
			t.Fatalf("RangeSearch returned %v, want %v", gotKeys, want)
		}
	}
}

func TestDeleteThenSearchIsAbsent(t *testing.T) {
	idx := mustNew(t)
	keys := []int32{50, 20, 70, 10, 30, 60, 80, 5, 15, 25, 90, 35, 45, 55, 65}
	for i, k := range keys {
		idx.Insert(i, types.IntKey(k))
	}

	if err := idx.Delete(types.IntKey(30)); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if slots, _ := idx.Search(types.IntKey(30)); len(slots) != 0 {
		t.Fatalf("Search(30) after delete = %v, want empty", slots)
	}

	for _, k := range keys {
		if k == 30 {
			continue
		}
		if slots, err := idx.Search(types.IntKey(k)); err != nil || len(slots) != 1 {
			t.Fatalf("Search(%d) after unrelated delete = %v, err=%v", k, slots, err)
		}
	}
}

func TestDeleteTriggersMergeAcrossTree(t *testing.T) {
	idx := mustNew(t)
	n := 40
	for i := 0; i < n; i++ {
		if err := idx.Insert(i, types.IntKey(int32(i))); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	for i := 0; i < n; i += 2 {
		if err := idx.Delete(types.IntKey(int32(i))); err != nil {
			t.Fatalf("Delete(%d): %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		slots, err := idx.Search(types.IntKey(int32(i)))
		if err != nil {
			t.Fatalf("Search(%d): %v", i, err)
		}
		if i%2 == 0 {
			if len(slots) != 0 {
				t.Fatalf("Search(%d) = %v, want empty (deleted)", i, slots)
			}
		} else {
			if len(slots) != 1 || slots[0] != i {
				t.Fatalf("Search(%d) = %v, want [%d]", i, slots, i)
			}
		}
	}
}

func TestClearRemovesFile(t *testing.T) {
	idx := mustNew(t)
	idx.Insert(0, types.IntKey(1))
	if err := idx.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
}
